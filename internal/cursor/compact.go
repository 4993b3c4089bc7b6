package cursor

import "math/bits"

// Compact integers are little-endian base-128: seven value bits per byte,
// low group first, 0x80 set on every byte except the last. Each source width
// has its own read and write path so a value decoded into a narrower width
// than it was written with is rejected instead of truncated.

// Maximum encoded sizes per source width.
const (
	MaxCompactLen8  = 2
	MaxCompactLen16 = 3
	MaxCompactLen32 = 5
	MaxCompactLen64 = 10
)

// CompactLen8 returns the number of bytes the compact form of v occupies.
func CompactLen8(v uint8) int { return CompactLen64(uint64(v)) }

// CompactLen16 returns the number of bytes the compact form of v occupies.
func CompactLen16(v uint16) int { return CompactLen64(uint64(v)) }

// CompactLen32 returns the number of bytes the compact form of v occupies.
func CompactLen32(v uint32) int { return CompactLen64(uint64(v)) }

// CompactLen64 returns the number of bytes the compact form of v occupies.
func CompactLen64(v uint64) int {
	if v == 0 {
		return 1
	}
	return (bits.Len64(v) + 6) / 7
}

// appendCompact appends the compact form of v to dst.
func appendCompact(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// parseCompact decodes a compact integer of at most maxLen bytes whose value
// must fit in width bits. It returns the value and the bytes consumed.
func parseCompact(b []byte, maxLen int, width uint) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < maxLen; i++ {
		if i >= len(b) {
			return 0, 0, errShort
		}
		c := b[i]
		v |= uint64(c&0x7f) << shift
		if c < 0x80 {
			if width < 64 && v>>width != 0 {
				return 0, 0, ErrOverflow
			}
			if width == 64 && i == MaxCompactLen64-1 && c > 1 {
				return 0, 0, ErrOverflow
			}
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrOverflow
}
