package cursor

// Reader is an attached, read-only cursor over an external byte range. It
// never grows and never writes; it has no methods that could.
type Reader struct {
	view
}

// NewReader attaches a cursor to data. The range is not copied.
func NewReader(data []byte) *Reader {
	return &Reader{view: view{data: data}}
}

// Bytes returns the attached range.
func (r *Reader) Bytes() []byte { return r.data }
