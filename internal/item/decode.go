package item

import (
	"fmt"

	"github.com/zsiec/mediashm/internal/kv"
	"github.com/zsiec/mediashm/media"
	"github.com/zsiec/mediashm/timecode"
)

// Decoded is one item read back from a slot. Frame data aliases the slot.
type Decoded struct {
	Gen   Generation
	Total int
	Frame media.Frame

	// Head is populated only for generation 4 items, which restate it.
	Head    media.Head
	HasHead bool

	// Ext is the parsed side channel, nil when absent.
	Ext *kv.Map
}

// Timecode returns the item's timecode sub-stream, or timecode.Invalid when
// the item carries none.
func (d *Decoded) Timecode() timecode.Timecode {
	tc, ok := timecode.ParseBinary(d.Frame.Timecode.Data)
	if !ok {
		return timecode.Invalid
	}
	return tc
}

// Decode reads the item in slot. major is the session header's major
// version. Region slices are sub-slices of slot; absent regions are nil.
func (c *Codec) Decode(slot []byte, major uint16) (Decoded, error) {
	gen, p := detect(slot, major)
	if gen == GenInvalid {
		return Decoded{}, ErrCorrupt
	}
	d := Decoded{Gen: gen, Total: p.total}
	for k := media.Kind(0); k < media.NumKinds; k++ {
		ds := p.descs[k]
		s := d.Frame.Stream(k)
		s.PTS, s.DTS = ds.pts, ds.dts
		if ds.Len > 0 {
			s.Data = slot[ds.Off:ds.end():ds.end()]
		}
	}

	if gen == GenV4 {
		h, err := ParseHeadBlock(slot[v4HeadBlockAt : v4HeadBlockAt+HeadBlockSize])
		if err != nil {
			return Decoded{}, err
		}
		if p.ext.Len > 0 {
			m, err := kv.Unmarshal(slot[p.ext.Off:p.ext.end()])
			if err != nil {
				return Decoded{}, fmt.Errorf("%w: side channel: %w", ErrCorrupt, err)
			}
			h.ChannelLayouts, err = decodeChannelLayouts(m)
			if err != nil {
				return Decoded{}, fmt.Errorf("%w: channel layouts: %w", ErrCorrupt, err)
			}
			d.Ext = m
		}
		d.Head = h
		d.HasHead = true
	}

	if c.AudioTransform != nil && d.Frame.Audio.Data != nil {
		d.Frame.Audio.Data = c.AudioTransform(d.Frame.Audio.Data)
	}
	return d, nil
}
