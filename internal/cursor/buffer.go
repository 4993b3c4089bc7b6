package cursor

import (
	"encoding/binary"

	"github.com/quic-go/quic-go/quicvarint"
)

// Buffer is an owned, growable cursor. Writes land at the cursor position,
// overwriting existing bytes and extending the buffer as needed.
type Buffer struct {
	view
	limit int
}

// NewBuffer returns an empty buffer pre-sized for sizeHint bytes. A positive
// limit caps the total size; writes that would exceed it fail with
// ErrGrowDenied.
func NewBuffer(sizeHint, limit int) *Buffer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	if limit > 0 && sizeHint > limit {
		sizeHint = limit
	}
	return &Buffer{view: view{data: make([]byte, 0, sizeHint)}, limit: limit}
}

// Bytes returns the buffer contents. The slice aliases the buffer until the
// next write.
func (b *Buffer) Bytes() []byte { return b.data }

// Reset empties the buffer and rewinds the cursor, keeping capacity.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
}

// Reserve ensures room for n more bytes past the cursor without changing the
// contents.
func (b *Buffer) Reserve(n int) error {
	need := b.pos + n
	if need <= cap(b.data) {
		return nil
	}
	if b.limit > 0 && need > b.limit {
		return ErrGrowDenied
	}
	newCap := 2 * cap(b.data)
	if newCap < need {
		newCap = need
	}
	if b.limit > 0 && newCap > b.limit {
		newCap = b.limit
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
	return nil
}

// claim returns n writable bytes at the cursor and advances past them.
func (b *Buffer) claim(n int) ([]byte, error) {
	if err := b.Reserve(n); err != nil {
		return nil, err
	}
	end := b.pos + n
	if end > len(b.data) {
		b.data = b.data[:end]
	}
	p := b.data[b.pos:end]
	b.pos = end
	return p, nil
}

// WriteBytes pushes a raw byte range.
func (b *Buffer) WriteBytes(p []byte) error {
	dst, err := b.claim(len(p))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}

// WriteU8 writes one byte.
func (b *Buffer) WriteU8(v uint8) error {
	dst, err := b.claim(1)
	if err != nil {
		return err
	}
	dst[0] = v
	return nil
}

// WriteU16LE writes v as a little-endian uint16.
func (b *Buffer) WriteU16LE(v uint16) error {
	dst, err := b.claim(2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(dst, v)
	return nil
}

// WriteU16BE writes v as a big-endian uint16.
func (b *Buffer) WriteU16BE(v uint16) error {
	dst, err := b.claim(2)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(dst, v)
	return nil
}

// WriteU32LE writes v as a little-endian uint32.
func (b *Buffer) WriteU32LE(v uint32) error {
	dst, err := b.claim(4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(dst, v)
	return nil
}

// WriteU32BE writes v as a big-endian uint32.
func (b *Buffer) WriteU32BE(v uint32) error {
	dst, err := b.claim(4)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint32(dst, v)
	return nil
}

// WriteU64LE writes v as a little-endian uint64.
func (b *Buffer) WriteU64LE(v uint64) error {
	dst, err := b.claim(8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(dst, v)
	return nil
}

// WriteU64BE writes v as a big-endian uint64.
func (b *Buffer) WriteU64BE(v uint64) error {
	dst, err := b.claim(8)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dst, v)
	return nil
}

// WriteU128LE writes v low half first.
func (b *Buffer) WriteU128LE(v Uint128) error {
	dst, err := b.claim(16)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(dst[0:8], v.Lo)
	binary.LittleEndian.PutUint64(dst[8:16], v.Hi)
	return nil
}

// WriteU128BE writes v high half first.
func (b *Buffer) WriteU128BE(v Uint128) error {
	dst, err := b.claim(16)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint64(dst[0:8], v.Hi)
	binary.BigEndian.PutUint64(dst[8:16], v.Lo)
	return nil
}

func (b *Buffer) writeCompact(v uint64, n int) error {
	dst, err := b.claim(n)
	if err != nil {
		return err
	}
	appendCompact(dst[:0], v)
	return nil
}

// WriteCompact8 writes v in compact form.
func (b *Buffer) WriteCompact8(v uint8) error {
	return b.writeCompact(uint64(v), CompactLen8(v))
}

// WriteCompact16 writes v in compact form.
func (b *Buffer) WriteCompact16(v uint16) error {
	return b.writeCompact(uint64(v), CompactLen16(v))
}

// WriteCompact32 writes v in compact form.
func (b *Buffer) WriteCompact32(v uint32) error {
	return b.writeCompact(uint64(v), CompactLen32(v))
}

// WriteCompact64 writes v in compact form.
func (b *Buffer) WriteCompact64(v uint64) error {
	return b.writeCompact(v, CompactLen64(v))
}

// WriteVarint writes a QUIC variable-length integer. Values above
// quicvarint.Max fail with ErrOverflow.
func (b *Buffer) WriteVarint(v uint64) error {
	if v > quicvarint.Max {
		return ErrOverflow
	}
	dst, err := b.claim(quicvarint.Len(v))
	if err != nil {
		return err
	}
	quicvarint.Append(dst[:0], v)
	return nil
}

// WriteVarBytes writes a varint-length-prefixed byte string.
func (b *Buffer) WriteVarBytes(p []byte) error {
	if err := b.WriteVarint(uint64(len(p))); err != nil {
		return err
	}
	return b.WriteBytes(p)
}

// VarBytesLen returns the encoded size of a varint-length-prefixed string of
// n bytes.
func VarBytesLen(n int) int {
	return quicvarint.Len(uint64(n)) + n
}
