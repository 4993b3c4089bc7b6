package cursor

import (
	"encoding/binary"
	"io"

	"github.com/quic-go/quic-go/quicvarint"
)

var errShort = io.ErrUnexpectedEOF

// Uint128 is an unsigned 128-bit integer split into two 64-bit halves.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// view is the read surface shared by Buffer and Reader.
type view struct {
	data []byte
	pos  int
}

// Pos returns the cursor position.
func (v *view) Pos() int { return v.pos }

// Len returns the number of bytes held.
func (v *view) Len() int { return len(v.data) }

// Remaining returns the number of bytes between the cursor and the end.
func (v *view) Remaining() int {
	if v.pos >= len(v.data) {
		return 0
	}
	return len(v.data) - v.pos
}

// Seek moves the cursor to an absolute position within [0, Len()].
func (v *view) Seek(pos int) error {
	if pos < 0 || pos > len(v.data) {
		return ErrSeek
	}
	v.pos = pos
	return nil
}

// Rewind moves the cursor back to the start.
func (v *view) Rewind() { v.pos = 0 }

// Skip advances the cursor by n bytes without copying. It is used to step
// over trailing fields written by a newer peer.
func (v *view) Skip(n int) error {
	if n < 0 || v.Remaining() < n {
		return errShort
	}
	v.pos += n
	return nil
}

func (v *view) take(n int) ([]byte, error) {
	if n < 0 || v.Remaining() < n {
		return nil, errShort
	}
	b := v.data[v.pos : v.pos+n : v.pos+n]
	v.pos += n
	return b, nil
}

// ReadBytes pops n raw bytes. The returned slice aliases the underlying
// storage.
func (v *view) ReadBytes(n int) ([]byte, error) { return v.take(n) }

// ReadU8 reads one byte.
func (v *view) ReadU8() (uint8, error) {
	b, err := v.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16LE reads a little-endian uint16.
func (v *view) ReadU16LE() (uint16, error) {
	b, err := v.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU16BE reads a big-endian uint16.
func (v *view) ReadU16BE() (uint16, error) {
	b, err := v.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadU32LE reads a little-endian uint32.
func (v *view) ReadU32LE() (uint32, error) {
	b, err := v.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU32BE reads a big-endian uint32.
func (v *view) ReadU32BE() (uint32, error) {
	b, err := v.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadU64LE reads a little-endian uint64.
func (v *view) ReadU64LE() (uint64, error) {
	b, err := v.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadU64BE reads a big-endian uint64.
func (v *view) ReadU64BE() (uint64, error) {
	b, err := v.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// ReadU128LE reads a 128-bit value stored low half first.
func (v *view) ReadU128LE() (Uint128, error) {
	b, err := v.take(16)
	if err != nil {
		return Uint128{}, err
	}
	return Uint128{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// ReadU128BE reads a 128-bit value stored high half first.
func (v *view) ReadU128BE() (Uint128, error) {
	b, err := v.take(16)
	if err != nil {
		return Uint128{}, err
	}
	return Uint128{
		Hi: binary.BigEndian.Uint64(b[0:8]),
		Lo: binary.BigEndian.Uint64(b[8:16]),
	}, nil
}

func (v *view) readCompact(maxLen int, width uint) (uint64, error) {
	if v.pos >= len(v.data) {
		return 0, errShort
	}
	val, n, err := parseCompact(v.data[v.pos:], maxLen, width)
	if err != nil {
		return 0, err
	}
	v.pos += n
	return val, nil
}

// ReadCompact8 reads a compact-encoded uint8.
func (v *view) ReadCompact8() (uint8, error) {
	val, err := v.readCompact(MaxCompactLen8, 8)
	return uint8(val), err
}

// ReadCompact16 reads a compact-encoded uint16.
func (v *view) ReadCompact16() (uint16, error) {
	val, err := v.readCompact(MaxCompactLen16, 16)
	return uint16(val), err
}

// ReadCompact32 reads a compact-encoded uint32.
func (v *view) ReadCompact32() (uint32, error) {
	val, err := v.readCompact(MaxCompactLen32, 32)
	return uint32(val), err
}

// ReadCompact64 reads a compact-encoded uint64.
func (v *view) ReadCompact64() (uint64, error) {
	return v.readCompact(MaxCompactLen64, 64)
}

// ReadVarint reads a QUIC variable-length integer.
func (v *view) ReadVarint() (uint64, error) {
	if v.pos >= len(v.data) {
		return 0, errShort
	}
	val, n, err := quicvarint.Parse(v.data[v.pos:])
	if err != nil {
		return 0, err
	}
	v.pos += n
	return val, nil
}

// ReadVarBytes reads a varint-length-prefixed byte string. The returned
// slice aliases the underlying storage.
func (v *view) ReadVarBytes() ([]byte, error) {
	length, err := v.ReadVarint()
	if err != nil {
		return nil, err
	}
	if length > uint64(v.Remaining()) {
		return nil, errShort
	}
	return v.take(int(length))
}
