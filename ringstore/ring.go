package ringstore

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Ring is one handle on a region. The writer handle comes from
// CreateOrOpen, reader handles from Open; each handle keeps its own read
// index. A Ring is not safe for concurrent use.
type Ring struct {
	name    string
	mem     []byte
	geo     geometry
	creator bool
	reader  bool
	log     *slog.Logger

	read     uint32
	overruns uint64

	release   func() error
	closeOnce sync.Once
	closed    bool
}

func newRing(name string, mem []byte, geo geometry, creator, reader bool, log *slog.Logger, release func() error) *Ring {
	r := &Ring{
		name:    name,
		mem:     mem,
		geo:     geo,
		creator: creator,
		reader:  reader,
		log:     log.With("component", "ringstore", "region", name),
		release: release,
	}
	if reader {
		atomic.AddUint32(r.word(offReaders), 1)
		r.read = r.oldest(r.WriteIndex())
	}
	return r
}

func (r *Ring) word(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[off]))
}

// format writes the control block of a fresh region and publishes it.
func format(mem []byte, g geometry, flags uint32) {
	le := binary.LittleEndian
	le.PutUint32(mem[offVersion:], layoutVersion)
	le.PutUint32(mem[offFlags:], flags)
	le.PutUint32(mem[offHeadLen:], uint32(g.headLen))
	le.PutUint32(mem[offItemLen:], uint32(g.itemLen))
	le.PutUint32(mem[offItemCount:], uint32(g.itemCount))
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&mem[offWrite])), 0)
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&mem[offReaders])), 0)
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&mem[offMagic])), magic)
}

// inspect reads the geometry of a published region.
func inspect(mem []byte) (geometry, error) {
	if len(mem) < controlSize {
		return geometry{}, ErrNotInitialized
	}
	if atomic.LoadUint64((*uint64)(unsafe.Pointer(&mem[offMagic]))) != magic {
		return geometry{}, ErrNotInitialized
	}
	le := binary.LittleEndian
	if v := le.Uint32(mem[offVersion:]); v != layoutVersion {
		return geometry{}, fmt.Errorf("%w: layout version %d", ErrGeometry, v)
	}
	g := geometry{
		headLen:   int(le.Uint32(mem[offHeadLen:])),
		itemLen:   int(le.Uint32(mem[offItemLen:])),
		itemCount: int(le.Uint32(mem[offItemCount:])),
	}
	if g.itemCount < 2 || g.itemLen == 0 || g.size() > len(mem) {
		return geometry{}, fmt.Errorf("%w: control block does not match %d mapped bytes", ErrGeometry, len(mem))
	}
	return g, nil
}

// Name returns the region name.
func (r *Ring) Name() string { return r.name }

// Header returns the live header bytes.
func (r *Ring) Header() []byte { return headerOf(r.mem, r.geo) }

// PutHeader copies b into the header at off.
func (r *Ring) PutHeader(off int, b []byte) error {
	if off < 0 || off+len(b) > r.geo.headLen {
		return fmt.Errorf("%w: [%d:%d] of %d", ErrHeaderRange, off, off+len(b), r.geo.headLen)
	}
	copy(r.mem[controlSize+off:], b)
	return nil
}

func (r *Ring) HeadLen() int    { return r.geo.headLen }
func (r *Ring) ItemLen() int    { return r.geo.itemLen }
func (r *Ring) ItemCount() int  { return r.geo.itemCount }
func (r *Ring) ItemOffset() int { return r.geo.itemOffset() }

// Version returns the region layout version.
func (r *Ring) Version() uint32 { return binary.LittleEndian.Uint32(r.mem[offVersion:]) }

// Flags returns the flags given at creation.
func (r *Ring) Flags() uint32 { return binary.LittleEndian.Uint32(r.mem[offFlags:]) }

// IsCreator reports whether this handle created the region.
func (r *Ring) IsCreator() bool { return r.creator }

// WriteIndex returns the absolute index of the next slot to be written.
func (r *Ring) WriteIndex() uint32 { return atomic.LoadUint32(r.word(offWrite)) }

// ReadIndex returns this handle's absolute read index.
func (r *Ring) ReadIndex() uint32 { return r.read }

// oldest is the oldest absolute index not reachable by the writer's next
// slot.
func (r *Ring) oldest(write uint32) uint32 {
	span := uint32(r.geo.itemCount - 1)
	if write < span {
		return 0
	}
	return write - span
}

// SetReadIndex moves the read index, clamped to the readable window.
func (r *Ring) SetReadIndex(abs uint32) {
	w := r.WriteIndex()
	lo := r.oldest(w)
	switch {
	case int32(abs-lo) < 0:
		abs = lo
	case int32(w-abs) < 0:
		abs = w
	}
	r.read = abs
}

// Item returns the slot holding absolute index abs.
func (r *Ring) Item(abs uint32) []byte {
	off := r.geo.itemOffset() + int(abs%uint32(r.geo.itemCount))*r.geo.stride()
	end := off + r.geo.itemLen
	return r.mem[off:end:end]
}

// WriteItem returns the slot the writer fills next.
func (r *Ring) WriteItem() []byte { return r.Item(r.WriteIndex()) }

// Sendable reports whether the writer may fill WriteItem. Slow readers are
// overrun rather than waited for.
func (r *Ring) Sendable() (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	return true, nil
}

// Readable reports whether an item is ready at the read index. A reader
// that fell a full ring behind skips ahead to the oldest intact slot.
func (r *Ring) Readable() (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	w := r.WriteIndex()
	if lo := r.oldest(w); int32(r.read-lo) < 0 {
		r.overruns++
		r.log.Debug("reader overrun", "read", r.read, "write", w, "skipped", lo-r.read)
		r.read = lo
	}
	return r.read != w, nil
}

// FinishWrite publishes the slot at the write index.
func (r *Ring) FinishWrite() error {
	if r.closed {
		return ErrClosed
	}
	atomic.AddUint32(r.word(offWrite), 1)
	return nil
}

// FinishRead advances the read index past the current item.
func (r *Ring) FinishRead() error {
	if r.closed {
		return ErrClosed
	}
	if r.read != r.WriteIndex() {
		r.read++
	}
	return nil
}

// Overruns returns how many times this handle was clamped forward.
func (r *Ring) Overruns() uint64 { return r.overruns }

// Readers returns the number of attached reader handles.
func (r *Ring) Readers() int { return int(atomic.LoadUint32(r.word(offReaders))) }

// HasReaders waits up to timeout for at least one reader to attach. A zero
// timeout checks once.
func (r *Ring) HasReaders(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if r.closed {
			return false
		}
		if r.Readers() > 0 {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// Close detaches the handle. Slices obtained from it must not be used
// afterwards.
func (r *Ring) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.reader {
			atomic.AddUint32(r.word(offReaders), ^uint32(0))
		}
		r.closed = true
		if r.release != nil {
			err = r.release()
		}
		r.log.Debug("ring closed", "reader", r.reader)
	})
	return err
}
