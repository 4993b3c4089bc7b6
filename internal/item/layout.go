package item

import (
	"encoding/binary"
	"math"

	"github.com/zsiec/mediashm/media"
)

// Generation identifies an on-wire slot layout.
type Generation uint8

const (
	GenInvalid Generation = 0
	GenV12     Generation = 2 // generations 1 and 2
	GenV3      Generation = 3
	GenV4      Generation = 4

	// GenCurrent is the generation new writers produce.
	GenCurrent = GenV4
)

func (g Generation) String() string {
	switch g {
	case GenV12:
		return "v1/v2"
	case GenV3:
		return "v3"
	case GenV4:
		return "v4"
	}
	return "invalid"
}

const (
	descSize  = 24
	descBytes = descSize * int(media.NumKinds)

	legacyDescAt   = 16
	legacyHeadSize = legacyDescAt + descBytes // 160

	v3DescAt   = 8
	v3HeadSize = v3DescAt + descBytes // 152

	v4HeadBlockAt  = 8
	v4DescAt       = v4HeadBlockAt + HeadBlockSize // 72
	v4BaseHeadSize = v4DescAt + descBytes          // 216
	v4ExtAt        = v4BaseHeadSize
	v4ExtHeadSize  = v4ExtAt + 8 // 224

	regionAlign = 16

	flagSideChannel uint32 = 1 << 0
)

// Region is a byte range relative to the slot base. A zero Len means the
// region is absent.
type Region struct {
	Off int
	Len int
}

func (r Region) end() int { return r.Off + r.Len }

// Layout places a frame's regions inside a slot.
type Layout struct {
	Gen      Generation
	HeadSize int
	Streams  [media.NumKinds]Region
	Ext      Region
	Total    int
}

// HeadSize returns the head size of gen, with or without the v4 side-channel
// descriptor.
func HeadSize(gen Generation, sideChannel bool) int {
	switch gen {
	case GenV12:
		return legacyHeadSize
	case GenV3:
		return v3HeadSize
	case GenV4:
		if sideChannel {
			return v4ExtHeadSize
		}
		return v4BaseHeadSize
	}
	return 0
}

func aligned(k media.Kind, gen Generation) bool {
	return gen == GenV4 && (k == media.KindVideo || k == media.KindAudio)
}

func alignUp(n int) int {
	return (n + regionAlign - 1) &^ (regionAlign - 1)
}

// PlanLayout computes where every region of a frame with the given sizes goes,
// without touching any slot. extLen is the side-channel length (v4 only).
func PlanLayout(gen Generation, sizes media.Sizes, extLen int) (Layout, error) {
	hs := HeadSize(gen, extLen > 0)
	if hs == 0 || (extLen > 0 && gen != GenV4) {
		return Layout{}, ErrGeneration
	}
	l := Layout{Gen: gen, HeadSize: hs}
	pos := hs
	for k := media.Kind(0); k < media.NumKinds; k++ {
		n := sizes[k]
		if n < 0 {
			return Layout{}, ErrTooLarge
		}
		if n == 0 {
			continue
		}
		if aligned(k, gen) {
			pos = alignUp(pos)
		}
		l.Streams[k] = Region{Off: pos, Len: n}
		pos += n
	}
	if extLen > 0 {
		l.Ext = Region{Off: pos, Len: extLen}
		pos += extLen
	}
	if uint64(pos) > math.MaxUint32 {
		return Layout{}, ErrTooLarge
	}
	l.Total = pos
	return l, nil
}

// Slice returns the bytes of region k inside slot, or nil if absent.
func (l *Layout) Slice(slot []byte, k media.Kind) []byte {
	r := l.Streams[k]
	if r.Len == 0 || r.end() > len(slot) {
		return nil
	}
	return slot[r.Off:r.end():r.end()]
}

// descriptor is one decoded region descriptor.
type descriptor struct {
	Region
	pts int64
	dts int64
}

func readDescriptors(slot []byte, at int) ([media.NumKinds]descriptor, bool) {
	var ds [media.NumKinds]descriptor
	if len(slot) < at+descBytes {
		return ds, false
	}
	le := binary.LittleEndian
	for k := range ds {
		b := slot[at+k*descSize:]
		ds[k] = descriptor{
			Region: Region{Off: int(le.Uint32(b[0:4])), Len: int(le.Uint32(b[4:8]))},
			pts:    int64(le.Uint64(b[8:16])),
			dts:    int64(le.Uint64(b[16:24])),
		}
	}
	return ds, true
}

// walk recomputes the layout end from declared descriptors and reports
// whether every region sits exactly where PlanLayout would have put it and the end
// equals total.
func walk(gen Generation, hs int, ds *[media.NumKinds]descriptor, ext Region, total int) bool {
	pos := hs
	for k := media.Kind(0); k < media.NumKinds; k++ {
		r := ds[k].Region
		if r.Len == 0 {
			continue
		}
		if aligned(k, gen) {
			pos = alignUp(pos)
		}
		if r.Off != pos {
			return false
		}
		pos += r.Len
	}
	if ext.Len > 0 {
		if ext.Off != pos {
			return false
		}
		pos += ext.Len
	}
	return pos == total
}

// Detect identifies the generation of the slot content. major is the
// header's major version; the v4 side channel is accepted only when it is
// at least 4.
func Detect(slot []byte, major uint16) Generation {
	gen, _ := detect(slot, major)
	return gen
}

// parsed carries what detection learned so decode does not re-read it.
type parsed struct {
	total int
	descs [media.NumKinds]descriptor
	ext   Region
}

func detect(slot []byte, major uint16) (Generation, parsed) {
	var p parsed
	if len(slot) < 8 {
		return GenInvalid, p
	}
	le := binary.LittleEndian
	marker := le.Uint32(slot[0:4])

	if marker == 0 {
		if len(slot) < legacyHeadSize {
			return GenInvalid, p
		}
		if g := le.Uint32(slot[4:8]); g != 1 && g != 2 {
			return GenInvalid, p
		}
		p.total = int(le.Uint32(slot[8:12]))
		if p.total > len(slot) {
			return GenInvalid, p
		}
		ds, _ := readDescriptors(slot, legacyDescAt)
		if !walk(GenV12, legacyHeadSize, &ds, Region{}, p.total) {
			return GenInvalid, p
		}
		p.descs = ds
		return GenV12, p
	}

	p.total = int(marker)
	if p.total > len(slot) {
		return GenInvalid, p
	}
	flags := le.Uint32(slot[4:8])

	if p.total >= v4BaseHeadSize {
		hs := v4BaseHeadSize
		var ext Region
		ok := true
		if flags&flagSideChannel != 0 {
			hs = v4ExtHeadSize
			if major < 4 || p.total < v4ExtHeadSize {
				ok = false
			} else {
				ext = Region{
					Off: int(le.Uint32(slot[v4ExtAt : v4ExtAt+4])),
					Len: int(le.Uint32(slot[v4ExtAt+4 : v4ExtAt+8])),
				}
				ok = ext.Len > 0
			}
		}
		if ok {
			ds, _ := readDescriptors(slot, v4DescAt)
			if walk(GenV4, hs, &ds, ext, p.total) {
				p.descs = ds
				p.ext = ext
				return GenV4, p
			}
		}
	}

	if p.total >= v3HeadSize {
		ds, _ := readDescriptors(slot, v3DescAt)
		if walk(GenV3, v3HeadSize, &ds, Region{}, p.total) {
			p.descs = ds
			return GenV3, p
		}
	}
	return GenInvalid, p
}
