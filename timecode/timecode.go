// Package timecode packs a clock-domain tag and a domain-local index into a
// single 64-bit value so that frames stamped at different rates can be
// compared directly.
//
// The top 8 bits hold the domain tag, the low 56 bits the index. Tags refer
// to a fixed table of rational (step, scale) pairs: an index i in domain d
// denotes i*step/scale seconds. Comparison normalizes both operands to the
// millisecond domain (tag 0).
package timecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Timecode is a domain-tagged 64-bit timestamp.
type Timecode uint64

const (
	tagShift  = 56
	indexMask = 1<<tagShift - 1
)

// Invalid is returned by operations that cannot produce a timecode. Its tag
// (0xFF) is outside every table.
const Invalid Timecode = math.MaxUint64

// Domain tags of the default table.
const (
	Milliseconds uint8 = iota
	Microseconds
	Hz90k
	Hz270k
	Samples48000
	Samples44100
	FPS25
	FPS24
	FPS23976
	FPS2997
	FPS30
	FPS50
	FPS5994
	FPS60
	FPS48
	FPS4795
	FPS100
	FPS11988
	FPS120
)

// Rational is one clock domain: an index step of Step ticks at Scale ticks
// per second.
type Rational struct {
	Step  uint64
	Scale uint64
}

// Table is an immutable set of clock domains indexed by tag.
type Table struct {
	domains []Rational
}

// NewTable returns a table over a copy of domains. Every entry must have a
// non-zero step and scale.
func NewTable(domains []Rational) (*Table, error) {
	if len(domains) == 0 || len(domains) > 0xFF {
		return nil, fmt.Errorf("timecode: table size %d out of range", len(domains))
	}
	for i, d := range domains {
		if d.Step == 0 || d.Scale == 0 {
			return nil, fmt.Errorf("timecode: domain %d has zero step or scale", i)
		}
	}
	return &Table{domains: append([]Rational(nil), domains...)}, nil
}

// Default is the domain table every mediashm peer uses on the wire. Changing
// it breaks interoperability.
var Default = &Table{domains: []Rational{
	Milliseconds: {1, 1000},
	Microseconds: {1, 1000000},
	Hz90k:        {1, 90000},
	Hz270k:       {1, 270000},
	Samples48000: {1, 48000},
	Samples44100: {1, 44100},
	FPS25:        {1, 25},
	FPS24:        {1, 24},
	FPS23976:     {1001, 24000},
	FPS2997:      {1001, 30000},
	FPS30:        {1, 30},
	FPS50:        {1, 50},
	FPS5994:      {1001, 60000},
	FPS60:        {1, 60},
	FPS48:        {1, 48},
	FPS4795:      {1001, 48000},
	FPS100:       {1, 100},
	FPS11988:     {1001, 120000},
	FPS120:       {1, 120},
}}

// Len returns the number of domains.
func (t *Table) Len() int { return len(t.domains) }

// Domain returns the step/scale pair for tag.
func (t *Table) Domain(tag uint8) (Rational, bool) {
	if int(tag) >= len(t.domains) {
		return Rational{}, false
	}
	return t.domains[tag], true
}

// Tag returns the domain tag.
func (tc Timecode) Tag() uint8 { return uint8(tc >> tagShift) }

// Index returns the domain-local index.
func (tc Timecode) Index() uint64 { return uint64(tc) & indexMask }

// Merge packs index into domain tag. Index bits above 56 are discarded.
func (t *Table) Merge(index uint64, tag uint8) Timecode {
	if int(tag) >= len(t.domains) {
		return Invalid
	}
	return Timecode(uint64(tag)<<tagShift | index&indexMask)
}

// Valid reports whether tc's tag is within the table.
func (t *Table) Valid(tc Timecode) bool {
	return int(tc.Tag()) < len(t.domains)
}

// Transfer converts tc into domain dst. The index is scaled by
// (srcStep*dstScale)/(srcScale*dstStep), rounded to nearest, and masked to
// 56 bits.
func (t *Table) Transfer(tc Timecode, dst uint8) Timecode {
	src, ok := t.Domain(tc.Tag())
	if !ok {
		return Invalid
	}
	to, ok := t.Domain(dst)
	if !ok {
		return Invalid
	}
	if tc.Tag() == dst {
		return tc
	}
	num := float64(src.Step) * float64(to.Scale)
	den := float64(src.Scale) * float64(to.Step)
	idx := math.Round(float64(tc.Index()) * num / den)
	return Timecode(uint64(dst)<<tagShift | uint64(idx)&indexMask)
}

// Compare returns -1, 0 or 1 as a is before, equal to or after b once both
// are expressed in milliseconds. Callers check Valid first; invalid operands
// compare by their raw bits.
func (t *Table) Compare(a, b Timecode) int {
	if !t.Valid(a) || !t.Valid(b) {
		return cmp64(uint64(a), uint64(b))
	}
	return cmp64(t.Transfer(a, Milliseconds).Index(), t.Transfer(b, Milliseconds).Index())
}

// MinusWithMs returns a-b in milliseconds. Intended for diagnostics.
func (t *Table) MinusWithMs(a, b Timecode) int64 {
	am := t.Transfer(a, Milliseconds).Index()
	bm := t.Transfer(b, Milliseconds).Index()
	return int64(am) - int64(bm)
}

func cmp64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Merge packs index into domain tag using the Default table.
func Merge(index uint64, tag uint8) Timecode { return Default.Merge(index, tag) }

// Transfer converts tc into domain dst using the Default table.
func Transfer(tc Timecode, dst uint8) Timecode { return Default.Transfer(tc, dst) }

// Compare compares a and b using the Default table.
func Compare(a, b Timecode) int { return Default.Compare(a, b) }

// MinusWithMs returns a-b in milliseconds using the Default table.
func MinusWithMs(a, b Timecode) int64 { return Default.MinusWithMs(a, b) }

// Valid reports whether tc is valid in the Default table.
func Valid(tc Timecode) bool { return Default.Valid(tc) }

// Size is the length of the binary form.
const Size = 8

// SetBinary writes tc to b[:8] as little-endian, independent of host byte
// order. It panics if b is shorter than Size, like binary.LittleEndian.
func SetBinary(b []byte, tc Timecode) {
	binary.LittleEndian.PutUint64(b, uint64(tc))
}

// AppendBinary appends the 8-byte little-endian form of tc to b.
func AppendBinary(b []byte, tc Timecode) []byte {
	return binary.LittleEndian.AppendUint64(b, uint64(tc))
}

// ParseBinary reads a timecode from the first 8 bytes of b.
func ParseBinary(b []byte) (Timecode, bool) {
	if len(b) < Size {
		return Invalid, false
	}
	return Timecode(binary.LittleEndian.Uint64(b)), true
}

// String formats tc as tag:index.
func (tc Timecode) String() string {
	if tc == Invalid {
		return "invalid"
	}
	return fmt.Sprintf("%d:%d", tc.Tag(), tc.Index())
}
