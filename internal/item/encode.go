package item

import (
	"encoding/binary"
	"fmt"

	"github.com/zsiec/mediashm/internal/kv"
	"github.com/zsiec/mediashm/media"
)

// Side-channel keys for the multi-track channel layout override.
const (
	keyTrackCount  uint64 = 0x01
	keyLayoutFirst uint64 = 0x10
	maxTracks             = 0xFF
)

// Codec carries the process-wide options of the item codec. The zero value
// is usable.
type Codec struct {
	// AudioTransform, when set, is applied to the audio slice of every
	// decoded item before it is returned. It must not retain the slice.
	AudioTransform func(audio []byte) []byte
}

// Plan is a validated layout for one frame plus the encoded side channel,
// ready to be written into a slot. It backs both Encode and the zero-copy
// write path, where callers fill the regions themselves before Seal.
type Plan struct {
	Layout
	head media.Head
	ext  []byte
}

// Prepare validates head for a frame with the given sub-stream sizes and
// computes its layout. Nothing is written.
func (c *Codec) Prepare(gen Generation, head media.Head, sizes media.Sizes) (*Plan, error) {
	if err := ValidateHead(head, sizes); err != nil {
		return nil, err
	}
	var ext []byte
	if gen == GenV4 && len(head.ChannelLayouts) > 0 {
		var err error
		ext, err = encodeChannelLayouts(head.ChannelLayouts)
		if err != nil {
			return nil, err
		}
	}
	l, err := PlanLayout(gen, sizes, len(ext))
	if err != nil {
		return nil, err
	}
	return &Plan{Layout: l, head: head, ext: ext}, nil
}

// Seal writes the side channel, descriptors and head fields of p into slot,
// taking timestamps from f. Region payloads must already be in place. The
// total length is written last.
func (p *Plan) Seal(slot []byte, f *media.Frame) error {
	if p.Total > len(slot) {
		return fmt.Errorf("%w: need %d bytes, slot has %d", ErrTooLarge, p.Total, len(slot))
	}
	le := binary.LittleEndian

	if p.Ext.Len > 0 {
		copy(slot[p.Ext.Off:p.Ext.end()], p.ext)
	}

	var descAt int
	switch p.Gen {
	case GenV12:
		descAt = legacyDescAt
		le.PutUint32(slot[4:8], 2)
		le.PutUint32(slot[8:12], uint32(p.Total))
		le.PutUint32(slot[12:16], 0)
	case GenV3:
		descAt = v3DescAt
		le.PutUint32(slot[4:8], 0)
	case GenV4:
		descAt = v4DescAt
		var flags uint32
		if p.Ext.Len > 0 {
			flags |= flagSideChannel
			le.PutUint32(slot[v4ExtAt:v4ExtAt+4], uint32(p.Ext.Off))
			le.PutUint32(slot[v4ExtAt+4:v4ExtAt+8], uint32(p.Ext.Len))
		}
		le.PutUint32(slot[4:8], flags)
		PutHeadBlock(slot[v4HeadBlockAt:v4HeadBlockAt+HeadBlockSize], p.head)
	default:
		return ErrGeneration
	}

	for k := media.Kind(0); k < media.NumKinds; k++ {
		b := slot[descAt+int(k)*descSize:]
		r := p.Streams[k]
		s := f.Stream(k)
		le.PutUint32(b[0:4], uint32(r.Off))
		le.PutUint32(b[4:8], uint32(r.Len))
		le.PutUint64(b[8:16], uint64(s.PTS))
		le.PutUint64(b[16:24], uint64(s.DTS))
	}

	if p.Gen == GenV12 {
		le.PutUint32(slot[0:4], 0)
	} else {
		le.PutUint32(slot[0:4], uint32(p.Total))
	}
	return nil
}

// Encode writes f into slot using generation gen and returns the number of
// bytes used. Head validation and the size check happen before the slot is
// touched.
func (c *Codec) Encode(slot []byte, gen Generation, head media.Head, f *media.Frame) (int, error) {
	p, err := c.Prepare(gen, head, f.Sizes())
	if err != nil {
		return 0, err
	}
	if p.Total > len(slot) {
		return 0, fmt.Errorf("%w: need %d bytes, slot has %d", ErrTooLarge, p.Total, len(slot))
	}
	for k := media.Kind(0); k < media.NumKinds; k++ {
		if dst := p.Slice(slot, k); dst != nil {
			copy(dst, f.Stream(k).Data)
		}
	}
	if err := p.Seal(slot, f); err != nil {
		return 0, err
	}
	return p.Total, nil
}

func encodeChannelLayouts(layouts []uint64) ([]byte, error) {
	if len(layouts) > maxTracks {
		return nil, &FieldError{Field: "channel_layouts", Value: int64(len(layouts)), Err: ErrInvalidHead}
	}
	var m kv.Map
	m.SetU8(keyTrackCount, uint8(len(layouts)))
	for i, l := range layouts {
		m.SetU64(keyLayoutFirst+uint64(i), l)
	}
	return m.Marshal()
}

func decodeChannelLayouts(m *kv.Map) ([]uint64, error) {
	if _, ok := m.Get(keyTrackCount); !ok {
		return nil, nil
	}
	n, err := m.Uint(keyTrackCount)
	if err != nil {
		return nil, err
	}
	if n > maxTracks {
		return nil, fmt.Errorf("%w: %d channel layout tracks", ErrCorrupt, n)
	}
	var present uint64
	for _, k := range m.Keys() {
		if k >= keyLayoutFirst && k < keyLayoutFirst+maxTracks {
			present++
		}
	}
	if present != n {
		return nil, fmt.Errorf("%w: track count %d, %d layouts present", ErrCorrupt, n, present)
	}
	layouts := make([]uint64, n)
	for i := range layouts {
		layouts[i], err = m.Uint(keyLayoutFirst + uint64(i))
		if err != nil {
			return nil, err
		}
	}
	return layouts, nil
}
