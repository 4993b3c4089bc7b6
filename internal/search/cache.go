// Package search locates a ring slot by an embedded monotonic value, either a
// cross-domain timecode or a raw presentation timestamp.
//
// Decoded slots are memoized in a Cache keyed by absolute ring index. A Cache
// is owned by one reader session and is not safe for concurrent use; readers
// searching in parallel each open their own session.
package search

import (
	"github.com/zsiec/mediashm/internal/item"
	"github.com/zsiec/mediashm/timecode"
)

// Entry is one decoded slot. Frame data inside Item aliases the ring and is
// only valid until the writer laps the slot; PTS and TC are copies.
type Entry struct {
	Abs    uint32
	Item   item.Decoded
	PTS    int64
	HasPTS bool
	TC     timecode.Timecode
	Err    error

	filled bool
}

// DecodeFunc decodes the slot at absolute index abs.
type DecodeFunc func(abs uint32) (item.Decoded, error)

// Cache is a dense get-or-decode table sized to the ring's item count.
type Cache struct {
	entries []Entry
	decode  DecodeFunc

	hits, misses int
}

// NewCache returns a cache for a ring of count slots.
func NewCache(count int, decode DecodeFunc) *Cache {
	if count < 1 {
		count = 1
	}
	return &Cache{entries: make([]Entry, count), decode: decode}
}

// Get returns the entry for abs, decoding the slot unless the cached entry
// at abs mod count was recorded for the same absolute index.
func (c *Cache) Get(abs uint32) *Entry {
	e := &c.entries[int(abs%uint32(len(c.entries)))]
	if e.filled && e.Abs == abs {
		c.hits++
		return e
	}
	c.misses++
	*e = Entry{Abs: abs, filled: true, TC: timecode.Invalid}
	d, err := c.decode(abs)
	if err != nil {
		e.Err = err
		return e
	}
	e.Item = d
	e.PTS, e.HasPTS = d.Frame.PTS()
	e.TC = d.Timecode()
	return e
}

// Forget drops the entry for abs so the next Get decodes again.
func (c *Cache) Forget(abs uint32) {
	e := &c.entries[int(abs%uint32(len(c.entries)))]
	if e.Abs == abs {
		*e = Entry{}
	}
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int) {
	return c.hits, c.misses
}
