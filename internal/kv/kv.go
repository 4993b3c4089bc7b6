// Package kv implements the self-describing key-value side channel: an
// ordered map of small integer keys to typed values, serialized with the
// cursor primitives.
//
// Wire form:
//
//	varint(count) { varint(key) u8(kind) value }*
//
// Unsigned values use the compact codec of their width, 128-bit values are
// 16 bytes little-endian, strings and blobs are varint-length-prefixed.
// Entries are written in ascending key order.
package kv

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/quic-go/quic-go/quicvarint"

	"github.com/zsiec/mediashm/internal/cursor"
)

// Kind identifies the type of a value.
type Kind uint8

const (
	KindU8 Kind = iota + 1
	KindU16
	KindU32
	KindU64
	KindU128
	KindString
	KindBytes
)

func (k Kind) String() string {
	switch k {
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	case KindU128:
		return "u128"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinel errors for side-channel decoding.
var (
	ErrUnknownKind  = errors.New("kv: unknown value kind")
	ErrBadString    = errors.New("kv: string is not valid UTF-8")
	ErrDuplicate    = errors.New("kv: duplicate key")
	ErrUnordered    = errors.New("kv: keys not in ascending order")
	ErrKindMismatch = errors.New("kv: value has a different kind")
)

// DecodeError records which entry failed to decode.
type DecodeError struct {
	Key   uint64
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kv: decode key %d %s: %v", e.Key, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Value is one typed value. Only the field matching Kind is meaningful.
type Value struct {
	Kind Kind
	U    uint64
	U128 cursor.Uint128
	S    string
	B    []byte
}

type entry struct {
	key uint64
	val Value
}

// Map is an ordered key-value map. The zero value is empty and ready to use.
type Map struct {
	entries []entry
}

// Len returns the number of entries.
func (m *Map) Len() int { return len(m.entries) }

// Keys returns the keys in ascending order.
func (m *Map) Keys() []uint64 {
	keys := make([]uint64, len(m.entries))
	for i, e := range m.entries {
		keys[i] = e.key
	}
	return keys
}

func (m *Map) find(key uint64) (int, bool) {
	i := sort.Search(len(m.entries), func(i int) bool { return m.entries[i].key >= key })
	return i, i < len(m.entries) && m.entries[i].key == key
}

// Set stores v under key, replacing any previous value.
func (m *Map) Set(key uint64, v Value) {
	i, ok := m.find(key)
	if ok {
		m.entries[i].val = v
		return
	}
	m.entries = append(m.entries, entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = entry{key: key, val: v}
}

func (m *Map) SetU8(key uint64, v uint8)   { m.Set(key, Value{Kind: KindU8, U: uint64(v)}) }
func (m *Map) SetU16(key uint64, v uint16) { m.Set(key, Value{Kind: KindU16, U: uint64(v)}) }
func (m *Map) SetU32(key uint64, v uint32) { m.Set(key, Value{Kind: KindU32, U: uint64(v)}) }
func (m *Map) SetU64(key uint64, v uint64) { m.Set(key, Value{Kind: KindU64, U: v}) }

func (m *Map) SetU128(key uint64, v cursor.Uint128) {
	m.Set(key, Value{Kind: KindU128, U128: v})
}

func (m *Map) SetString(key uint64, s string) { m.Set(key, Value{Kind: KindString, S: s}) }
func (m *Map) SetBytes(key uint64, b []byte)  { m.Set(key, Value{Kind: KindBytes, B: b}) }

// Get returns the value stored under key.
func (m *Map) Get(key uint64) (Value, bool) {
	i, ok := m.find(key)
	if !ok {
		return Value{}, false
	}
	return m.entries[i].val, true
}

// Uint returns an unsigned value of width up to 64 bits stored under key.
func (m *Map) Uint(key uint64) (uint64, error) {
	v, ok := m.Get(key)
	if !ok {
		return 0, fmt.Errorf("kv: key %d not present", key)
	}
	switch v.Kind {
	case KindU8, KindU16, KindU32, KindU64:
		return v.U, nil
	}
	return 0, fmt.Errorf("key %d is %s: %w", key, v.Kind, ErrKindMismatch)
}

// Delete removes key.
func (m *Map) Delete(key uint64) {
	if i, ok := m.find(key); ok {
		m.entries = append(m.entries[:i], m.entries[i+1:]...)
	}
}

func valueLen(v Value) (int, error) {
	switch v.Kind {
	case KindU8:
		return cursor.CompactLen8(uint8(v.U)), nil
	case KindU16:
		return cursor.CompactLen16(uint16(v.U)), nil
	case KindU32:
		return cursor.CompactLen32(uint32(v.U)), nil
	case KindU64:
		return cursor.CompactLen64(v.U), nil
	case KindU128:
		return 16, nil
	case KindString:
		return cursor.VarBytesLen(len(v.S)), nil
	case KindBytes:
		return cursor.VarBytesLen(len(v.B)), nil
	}
	return 0, ErrUnknownKind
}

// EncodedLen returns the exact number of bytes Encode writes, so callers can
// size a destination before a nested encode.
func (m *Map) EncodedLen() (int, error) {
	n := quicvarint.Len(uint64(len(m.entries)))
	for _, e := range m.entries {
		if e.key > quicvarint.Max {
			return 0, cursor.ErrOverflow
		}
		vl, err := valueLen(e.val)
		if err != nil {
			return 0, err
		}
		n += quicvarint.Len(e.key) + 1 + vl
	}
	return n, nil
}

// Encode writes the map at the buffer cursor.
func (m *Map) Encode(b *cursor.Buffer) error {
	if err := b.WriteVarint(uint64(len(m.entries))); err != nil {
		return err
	}
	for _, e := range m.entries {
		if err := b.WriteVarint(e.key); err != nil {
			return err
		}
		if err := b.WriteU8(uint8(e.val.Kind)); err != nil {
			return err
		}
		if err := encodeValue(b, e.val); err != nil {
			return fmt.Errorf("kv: encode key %d: %w", e.key, err)
		}
	}
	return nil
}

func encodeValue(b *cursor.Buffer, v Value) error {
	switch v.Kind {
	case KindU8:
		return b.WriteCompact8(uint8(v.U))
	case KindU16:
		return b.WriteCompact16(uint16(v.U))
	case KindU32:
		return b.WriteCompact32(uint32(v.U))
	case KindU64:
		return b.WriteCompact64(v.U)
	case KindU128:
		return b.WriteU128LE(v.U128)
	case KindString:
		if !utf8.ValidString(v.S) {
			return ErrBadString
		}
		return b.WriteVarBytes([]byte(v.S))
	case KindBytes:
		return b.WriteVarBytes(v.B)
	}
	return ErrUnknownKind
}

// Marshal encodes the map into a new slice.
func (m *Map) Marshal() ([]byte, error) {
	n, err := m.EncodedLen()
	if err != nil {
		return nil, err
	}
	b := cursor.NewBuffer(n, 0)
	if err := m.Encode(b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Decode reads a map at the reader cursor. Keys must be strictly ascending,
// as Encode writes them. Blob values alias the reader's range.
func Decode(r *cursor.Reader) (*Map, error) {
	count, err := r.ReadVarint()
	if err != nil {
		return nil, &DecodeError{Field: "count", Err: err}
	}
	// Each entry needs at least three bytes.
	if count > uint64(r.Remaining()/3) {
		return nil, &DecodeError{Field: "count", Err: cursor.ErrOverflow}
	}

	m := &Map{entries: make([]entry, 0, count)}
	for i := uint64(0); i < count; i++ {
		key, err := r.ReadVarint()
		if err != nil {
			return nil, &DecodeError{Field: "key", Err: err}
		}
		kind, err := r.ReadU8()
		if err != nil {
			return nil, &DecodeError{Key: key, Field: "kind", Err: err}
		}
		v, err := decodeValue(r, Kind(kind))
		if err != nil {
			return nil, &DecodeError{Key: key, Field: "value", Err: err}
		}
		if n := len(m.entries); n > 0 && key <= m.entries[n-1].key {
			err := ErrUnordered
			if key == m.entries[n-1].key {
				err = ErrDuplicate
			}
			return nil, &DecodeError{Key: key, Field: "key", Err: err}
		}
		m.entries = append(m.entries, entry{key: key, val: v})
	}
	return m, nil
}

func decodeValue(r *cursor.Reader, k Kind) (Value, error) {
	v := Value{Kind: k}
	var err error
	switch k {
	case KindU8:
		var x uint8
		x, err = r.ReadCompact8()
		v.U = uint64(x)
	case KindU16:
		var x uint16
		x, err = r.ReadCompact16()
		v.U = uint64(x)
	case KindU32:
		var x uint32
		x, err = r.ReadCompact32()
		v.U = uint64(x)
	case KindU64:
		v.U, err = r.ReadCompact64()
	case KindU128:
		v.U128, err = r.ReadU128LE()
	case KindString:
		var p []byte
		p, err = r.ReadVarBytes()
		if err == nil && !utf8.Valid(p) {
			err = ErrBadString
		}
		v.S = string(p)
	case KindBytes:
		v.B, err = r.ReadVarBytes()
	default:
		err = ErrUnknownKind
	}
	return v, err
}

// Unmarshal decodes a map from data.
func Unmarshal(data []byte) (*Map, error) {
	return Decode(cursor.NewReader(data))
}
