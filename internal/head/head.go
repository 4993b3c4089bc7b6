// Package head manages the fixed header at the start of a shared ring: the
// protocol version, the init and close flags, and the published media head.
//
// Layout (little-endian, HeaderSize bytes):
//
//	[0:2]   major version
//	[2:4]   minor version
//	[4:8]   init flag (atomic)
//	[8:12]  close flag (atomic)
//	[12:16] reserved
//	[16:80] head block
//	[80:]   reserved
package head

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/zsiec/mediashm/internal/item"
	"github.com/zsiec/mediashm/media"
)

// HeaderSize is the minimum header length a ring must reserve.
const HeaderSize = 128

const (
	offMajor = 0
	offMinor = 2
	offInit  = 4
	offClose = 8
	offHead  = 16
)

// Protocol version written by this package.
const (
	Major uint16 = 4
	Minor uint16 = 0
)

var (
	ErrInitTimeout  = errors.New("head: timed out waiting for init flag")
	ErrShortHeader  = errors.New("head: header shorter than HeaderSize")
	ErrAlreadyInit  = errors.New("head: header already initialized")
	errUnalignedHdr = errors.New("head: header not 4-byte aligned")
)

// Store is the header access a ring exposes. Header returns the live mapped
// bytes; flag words in it are accessed atomically. Field writes go through
// PutHeader.
type Store interface {
	Header() []byte
	PutHeader(off int, b []byte) error
}

func header(s Store) ([]byte, error) {
	hdr := s.Header()
	if len(hdr) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(hdr))
	}
	if uintptr(unsafe.Pointer(&hdr[0]))%4 != 0 {
		return nil, errUnalignedHdr
	}
	return hdr, nil
}

func flagWord(hdr []byte, off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&hdr[off]))
}

// Init writes the version and then sets the init flag. It fails with
// ErrAlreadyInit if the flag is already set.
func Init(s Store, major, minor uint16) error {
	hdr, err := header(s)
	if err != nil {
		return err
	}
	if atomic.LoadUint32(flagWord(hdr, offInit)) != 0 {
		return ErrAlreadyInit
	}
	var v [4]byte
	binary.LittleEndian.PutUint16(v[0:2], major)
	binary.LittleEndian.PutUint16(v[2:4], minor)
	if err := s.PutHeader(offMajor, v[:]); err != nil {
		return fmt.Errorf("head: write version: %w", err)
	}
	if !atomic.CompareAndSwapUint32(flagWord(hdr, offInit), 0, 1) {
		return ErrAlreadyInit
	}
	return nil
}

// IsInit reports whether the writer has initialized the header.
func IsInit(s Store) bool {
	hdr, err := header(s)
	if err != nil {
		return false
	}
	return atomic.LoadUint32(flagWord(hdr, offInit)) != 0
}

// WaitInit polls the init flag up to retries times, sleeping step between
// attempts. It returns ErrInitTimeout once the retries are exhausted.
func WaitInit(ctx context.Context, s Store, retries int, step time.Duration) error {
	if _, err := header(s); err != nil {
		return err
	}
	for i := 0; ; i++ {
		if IsInit(s) {
			return nil
		}
		if i >= retries {
			return ErrInitTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(step):
		}
	}
}

// SetClosed sets the close flag. It reports whether this call set it; the
// flag is never cleared.
func SetClosed(s Store) (bool, error) {
	hdr, err := header(s)
	if err != nil {
		return false, err
	}
	return atomic.CompareAndSwapUint32(flagWord(hdr, offClose), 0, 1), nil
}

// IsClosed reports whether the writer has set the close flag.
func IsClosed(s Store) bool {
	return Closed(s.Header())
}

// Closed reports whether the close flag is set in raw header bytes. Stores
// use it to recognise a region left behind by a writer that shut down.
func Closed(hdr []byte) bool {
	if len(hdr) < HeaderSize || uintptr(unsafe.Pointer(&hdr[0]))%4 != 0 {
		return false
	}
	return atomic.LoadUint32(flagWord(hdr, offClose)) != 0
}

// Version returns the major and minor version recorded in the header.
func Version(s Store) (major, minor uint16) {
	hdr := s.Header()
	if len(hdr) < HeaderSize {
		return 0, 0
	}
	return binary.LittleEndian.Uint16(hdr[offMajor:]), binary.LittleEndian.Uint16(hdr[offMinor:])
}

// ReadHead returns the head last published in the header.
func ReadHead(s Store) (media.Head, error) {
	hdr := s.Header()
	if len(hdr) < HeaderSize {
		return media.Head{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(hdr))
	}
	return item.ParseHeadBlock(hdr[offHead : offHead+item.HeadBlockSize])
}
