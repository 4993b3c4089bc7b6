// Package session drives one writer and any number of readers over a shared
// ring of media frames.
//
// A Writer publishes the session head into the ring header, encodes frames
// into slots and signals completion to the store. A Reader waits for the
// writer to initialize the header, polls for new slots, decodes them without
// copying and can locate a slot by timecode or presentation timestamp.
//
// Sessions hold no locks. Use one Writer or Reader per goroutine; readers
// that search concurrently each open their own Reader on their own store
// handle.
package session

import "time"

// Store is a named ring of fixed-size slots preceded by a header. Indices are
// absolute and monotonic; the slot for index i is i mod ItemCount. Each
// handle keeps its own read index. ringstore.Ring is the stock
// implementation.
type Store interface {
	Name() string

	// Header returns the live header bytes. Field writes go through
	// PutHeader; flag words are read and written atomically in place.
	Header() []byte
	PutHeader(off int, b []byte) error

	HeadLen() int
	ItemLen() int
	ItemCount() int
	ItemOffset() int

	WriteIndex() uint32
	ReadIndex() uint32
	SetReadIndex(abs uint32)

	// Item returns the slot for absolute index abs; WriteItem the slot for
	// the current write index.
	Item(abs uint32) []byte
	WriteItem() []byte

	Sendable() (bool, error)
	Readable() (bool, error)
	FinishWrite() error
	FinishRead() error

	IsCreator() bool
	HasReaders(timeout time.Duration) bool
	Version() uint32
	Flags() uint32
	Close() error
}
