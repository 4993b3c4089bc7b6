// Package ringstore provides named fixed-slot rings for the session layer:
// an in-process registry (Registry) and a memory-mapped file region for
// cross-process use (CreateOrOpen, Open on unix).
//
// A region is laid out as a 64-byte control block, the caller's header, and
// ItemCount slots. Header and slots start on 16-byte boundaries, so an
// alignment relative to a slot base is also an absolute one.
//
//	[0:8]   magic (published last)
//	[8:12]  layout version
//	[12:16] flags
//	[16:20] header length
//	[20:24] item length
//	[24:28] item count
//	[28:32] write index (atomic)
//	[32:36] attached readers (atomic)
package ringstore

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
)

const (
	magic         uint64 = 0x474e4952_4d485353 // "SSHMRING" little-endian
	layoutVersion uint32 = 1

	controlSize = 64
	align       = 16

	offMagic     = 0
	offVersion   = 8
	offFlags     = 12
	offHeadLen   = 16
	offItemLen   = 20
	offItemCount = 24
	offWrite     = 28
	offReaders   = 32

	defaultPerm os.FileMode = 0o600
)

var (
	ErrBadName        = errors.New("ringstore: invalid region name")
	ErrBadGeometry    = errors.New("ringstore: invalid region geometry")
	ErrGeometry       = errors.New("ringstore: existing region has different geometry")
	ErrNotFound       = errors.New("ringstore: region not found")
	ErrNotInitialized = errors.New("ringstore: region not initialized")
	ErrClosed         = errors.New("ringstore: ring closed")
	ErrHeaderRange    = errors.New("ringstore: header write out of range")
)

// Options describe a region to create or join.
type Options struct {
	HeadLen   int
	ItemLen   int
	ItemCount int
	Flags     uint32

	// Perm is the file mode of a mapped region. Zero means 0600.
	Perm os.FileMode
	// Dir holds mapped regions. Empty means /dev/shm when present, else
	// os.TempDir().
	Dir string

	// Stale, when set, is called with the header of an existing region
	// found by CreateOrOpen. Returning true discards and recreates it.
	Stale func(header []byte) bool

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) perm() os.FileMode {
	if o.Perm == 0 {
		return defaultPerm
	}
	return o.Perm
}

func (o Options) dir() string {
	if o.Dir != "" {
		return o.Dir
	}
	if fi, err := os.Stat("/dev/shm"); err == nil && fi.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// geometry is the validated shape of a region.
type geometry struct {
	headLen   int
	itemLen   int
	itemCount int
}

func alignUp(n int) int { return (n + align - 1) &^ (align - 1) }

func (g geometry) itemOffset() int { return controlSize + alignUp(g.headLen) }
func (g geometry) stride() int     { return alignUp(g.itemLen) }
func (g geometry) size() int       { return g.itemOffset() + g.itemCount*g.stride() }

func (o Options) geometry() (geometry, error) {
	g := geometry{headLen: o.HeadLen, itemLen: o.ItemLen, itemCount: o.ItemCount}
	switch {
	case !fitsU32(g.headLen):
		return g, fmt.Errorf("%w: header length %d", ErrBadGeometry, g.headLen)
	case g.itemLen == 0 || !fitsU32(g.itemLen):
		return g, fmt.Errorf("%w: item length %d", ErrBadGeometry, g.itemLen)
	case g.itemCount < 2 || !fitsU32(g.itemCount):
		return g, fmt.Errorf("%w: item count %d", ErrBadGeometry, g.itemCount)
	}
	if uint64(g.itemCount)*uint64(g.stride()) > math.MaxInt32*uint64(64) {
		return g, fmt.Errorf("%w: %d x %d bytes", ErrBadGeometry, g.itemCount, g.itemLen)
	}
	return g, nil
}

func fitsU32(n int) bool { return n >= 0 && uint64(n) <= math.MaxUint32 }

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}
	return nil
}
