package cursor

import (
	"bytes"
	"errors"
	"io"
	"math"
	"testing"
)

func TestFixedWidthRoundTrip(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0, 0)
	steps := []error{
		b.WriteU8(0xAB),
		b.WriteU16LE(0x1234),
		b.WriteU16BE(0x1234),
		b.WriteU32LE(0xDEADBEEF),
		b.WriteU32BE(0xDEADBEEF),
		b.WriteU64LE(0x0102030405060708),
		b.WriteU64BE(0x0102030405060708),
		b.WriteU128LE(Uint128{Hi: 1, Lo: 2}),
		b.WriteU128BE(Uint128{Hi: 3, Lo: 4}),
	}
	for i, err := range steps {
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if b.Len() != 1+2+2+4+4+8+8+16+16 {
		t.Fatalf("Len: got %d", b.Len())
	}

	// Byte order on the wire.
	if !bytes.Equal(b.Bytes()[1:5], []byte{0x34, 0x12, 0x12, 0x34}) {
		t.Errorf("16-bit byte order: %x", b.Bytes()[1:5])
	}

	r := NewReader(b.Bytes())
	if v, err := r.ReadU8(); err != nil || v != 0xAB {
		t.Errorf("ReadU8: got %x, %v", v, err)
	}
	if v, err := r.ReadU16LE(); err != nil || v != 0x1234 {
		t.Errorf("ReadU16LE: got %x, %v", v, err)
	}
	if v, err := r.ReadU16BE(); err != nil || v != 0x1234 {
		t.Errorf("ReadU16BE: got %x, %v", v, err)
	}
	if v, err := r.ReadU32LE(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadU32LE: got %x, %v", v, err)
	}
	if v, err := r.ReadU32BE(); err != nil || v != 0xDEADBEEF {
		t.Errorf("ReadU32BE: got %x, %v", v, err)
	}
	if v, err := r.ReadU64LE(); err != nil || v != 0x0102030405060708 {
		t.Errorf("ReadU64LE: got %x, %v", v, err)
	}
	if v, err := r.ReadU64BE(); err != nil || v != 0x0102030405060708 {
		t.Errorf("ReadU64BE: got %x, %v", v, err)
	}
	if v, err := r.ReadU128LE(); err != nil || v != (Uint128{Hi: 1, Lo: 2}) {
		t.Errorf("ReadU128LE: got %+v, %v", v, err)
	}
	if v, err := r.ReadU128BE(); err != nil || v != (Uint128{Hi: 3, Lo: 4}) {
		t.Errorf("ReadU128BE: got %+v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Errorf("Remaining: got %d, want 0", r.Remaining())
	}
	if _, err := r.ReadU8(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("read past end: got %v", err)
	}
}

func TestCompactRoundTripBoundaries(t *testing.T) {
	t.Parallel()

	t.Run("8", func(t *testing.T) {
		t.Parallel()
		for _, v := range []uint8{0, 1, 0x7f, 0x80, math.MaxUint8} {
			b := NewBuffer(0, 0)
			if err := b.WriteCompact8(v); err != nil {
				t.Fatalf("write %d: %v", v, err)
			}
			if b.Len() != CompactLen8(v) {
				t.Errorf("%d: wrote %d bytes, CompactLen8 says %d", v, b.Len(), CompactLen8(v))
			}
			got, err := NewReader(b.Bytes()).ReadCompact8()
			if err != nil || got != v {
				t.Errorf("%d: got %d, %v", v, got, err)
			}
		}
	})
	t.Run("16", func(t *testing.T) {
		t.Parallel()
		for _, v := range []uint16{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, math.MaxUint16} {
			b := NewBuffer(0, 0)
			if err := b.WriteCompact16(v); err != nil {
				t.Fatalf("write %d: %v", v, err)
			}
			if b.Len() != CompactLen16(v) {
				t.Errorf("%d: wrote %d bytes, CompactLen16 says %d", v, b.Len(), CompactLen16(v))
			}
			got, err := NewReader(b.Bytes()).ReadCompact16()
			if err != nil || got != v {
				t.Errorf("%d: got %d, %v", v, got, err)
			}
		}
	})
	t.Run("32", func(t *testing.T) {
		t.Parallel()
		for _, v := range []uint32{0, 1, 0x80, 1 << 21, 1<<28 - 1, 1 << 28, math.MaxUint32} {
			b := NewBuffer(0, 0)
			if err := b.WriteCompact32(v); err != nil {
				t.Fatalf("write %d: %v", v, err)
			}
			if b.Len() != CompactLen32(v) {
				t.Errorf("%d: wrote %d bytes, CompactLen32 says %d", v, b.Len(), CompactLen32(v))
			}
			got, err := NewReader(b.Bytes()).ReadCompact32()
			if err != nil || got != v {
				t.Errorf("%d: got %d, %v", v, got, err)
			}
		}
	})
	t.Run("64", func(t *testing.T) {
		t.Parallel()
		for _, v := range []uint64{0, 1, 0x80, 1 << 35, 1<<63 - 1, 1 << 63, math.MaxUint64} {
			b := NewBuffer(0, 0)
			if err := b.WriteCompact64(v); err != nil {
				t.Fatalf("write %d: %v", v, err)
			}
			if b.Len() != CompactLen64(v) {
				t.Errorf("%d: wrote %d bytes, CompactLen64 says %d", v, b.Len(), CompactLen64(v))
			}
			got, err := NewReader(b.Bytes()).ReadCompact64()
			if err != nil || got != v {
				t.Errorf("%d: got %d, %v", v, got, err)
			}
		}
	})
}

func TestCompactMaxLengths(t *testing.T) {
	t.Parallel()

	if CompactLen8(math.MaxUint8) != MaxCompactLen8 {
		t.Errorf("CompactLen8(max): got %d", CompactLen8(math.MaxUint8))
	}
	if CompactLen16(math.MaxUint16) != MaxCompactLen16 {
		t.Errorf("CompactLen16(max): got %d", CompactLen16(math.MaxUint16))
	}
	if CompactLen32(math.MaxUint32) != MaxCompactLen32 {
		t.Errorf("CompactLen32(max): got %d", CompactLen32(math.MaxUint32))
	}
	if CompactLen64(math.MaxUint64) != MaxCompactLen64 {
		t.Errorf("CompactLen64(max): got %d", CompactLen64(math.MaxUint64))
	}
}

func TestCompactNarrowingRejected(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0, 0)
	if err := b.WriteCompact16(300); err != nil {
		t.Fatal(err)
	}
	if _, err := NewReader(b.Bytes()).ReadCompact8(); !errors.Is(err, ErrOverflow) {
		t.Errorf("300 as 8-bit: got %v, want ErrOverflow", err)
	}

	// Eleven continuation bytes never terminate within 64 bits.
	long := bytes.Repeat([]byte{0xff}, 11)
	if _, err := NewReader(long).ReadCompact64(); !errors.Is(err, ErrOverflow) {
		t.Errorf("unterminated: got %v, want ErrOverflow", err)
	}

	// Truncated encoding.
	if _, err := NewReader([]byte{0x80}).ReadCompact32(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("truncated: got %v, want ErrUnexpectedEOF", err)
	}
}

func TestVarintAndVarBytes(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0, 0)
	if err := b.WriteVarint(16383); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteVarBytes([]byte("layout")); err != nil {
		t.Fatal(err)
	}
	if err := b.WriteVarint(math.MaxUint64); !errors.Is(err, ErrOverflow) {
		t.Errorf("WriteVarint(max uint64): got %v, want ErrOverflow", err)
	}
	if b.Len() != 2+VarBytesLen(6) {
		t.Errorf("Len: got %d, want %d", b.Len(), 2+VarBytesLen(6))
	}

	r := NewReader(b.Bytes())
	v, err := r.ReadVarint()
	if err != nil || v != 16383 {
		t.Fatalf("ReadVarint: got %d, %v", v, err)
	}
	p, err := r.ReadVarBytes()
	if err != nil || string(p) != "layout" {
		t.Fatalf("ReadVarBytes: got %q, %v", p, err)
	}
}

func TestVarBytesLengthBeyondEnd(t *testing.T) {
	t.Parallel()

	b := NewBuffer(0, 0)
	_ = b.WriteVarint(10)
	_ = b.WriteBytes([]byte{1, 2, 3})
	if _, err := NewReader(b.Bytes()).ReadVarBytes(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("got %v, want ErrUnexpectedEOF", err)
	}
}

func TestBufferGrowthLimit(t *testing.T) {
	t.Parallel()

	b := NewBuffer(2, 4)
	if err := b.WriteU32LE(1); err != nil {
		t.Fatalf("write within limit: %v", err)
	}
	if err := b.WriteU8(1); !errors.Is(err, ErrGrowDenied) {
		t.Errorf("write past limit: got %v, want ErrGrowDenied", err)
	}
}

func TestBufferOverwriteAfterSeek(t *testing.T) {
	t.Parallel()

	b := NewBuffer(16, 0)
	_ = b.WriteU32LE(0)
	_ = b.WriteU32LE(7)
	if err := b.Seek(0); err != nil {
		t.Fatal(err)
	}
	_ = b.WriteU32LE(8)
	if b.Len() != 8 {
		t.Errorf("overwrite changed length: %d", b.Len())
	}
	if b.Pos() != 4 {
		t.Errorf("Pos: got %d, want 4", b.Pos())
	}
	r := NewReader(b.Bytes())
	if v, _ := r.ReadU32LE(); v != 8 {
		t.Errorf("first word: got %d, want 8", v)
	}
	if err := b.Seek(9); !errors.Is(err, ErrSeek) {
		t.Errorf("Seek past end: got %v, want ErrSeek", err)
	}
}

func TestReaderSkipAndRewind(t *testing.T) {
	t.Parallel()

	r := NewReader([]byte{1, 2, 3, 4})
	if err := r.Skip(3); err != nil {
		t.Fatal(err)
	}
	if v, _ := r.ReadU8(); v != 4 {
		t.Errorf("after Skip: got %d, want 4", v)
	}
	if err := r.Skip(1); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Skip past end: got %v", err)
	}
	r.Rewind()
	p, err := r.ReadBytes(2)
	if err != nil || !bytes.Equal(p, []byte{1, 2}) {
		t.Errorf("ReadBytes after Rewind: got %v, %v", p, err)
	}
}

func TestReaderDoesNotCopy(t *testing.T) {
	t.Parallel()

	backing := []byte{9, 9, 9}
	r := NewReader(backing)
	p, _ := r.ReadBytes(3)
	backing[1] = 5
	if p[1] != 5 {
		t.Error("ReadBytes copied instead of aliasing")
	}
}

func BenchmarkCompact64(b *testing.B) {
	buf := NewBuffer(MaxCompactLen64, 0)
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = buf.WriteCompact64(uint64(i) * 0x9E3779B97F4A7C15)
		r := NewReader(buf.Bytes())
		_, _ = r.ReadCompact64()
	}
}
