// Package captions decodes the closed-caption sub-stream of ring items.
//
// The caption region of a frame carries the A/53 SEI payload the encoder
// attached to the picture. A Decoder keeps the CEA-608 and CEA-708 decoder
// state across items, so one Decoder must see every item of a ring in
// order.
package captions

import (
	"log/slog"

	"github.com/zsiec/ccx"

	"github.com/zsiec/mediashm/media"
)

// dtvccChannelBase offsets CEA-708 service numbers so they do not collide
// with the four CEA-608 channels.
const dtvccChannelBase = 6

// Decoder turns caption payloads into caption frames. It is not safe for
// concurrent use.
type Decoder struct {
	log        *slog.Logger
	cea608Decs map[int]*ccx.CEA608Decoder
	cea708Svcs map[int]*ccx.CEA708Service
	dtvccBuf   []byte
	items      int64

	lastCtrl      [2][2]byte
	lastWasCtrl   [2]bool
	lastCtrlFrame [2]int64
}

// NewDecoder returns a Decoder for CC1-CC4 and DTVCC services 1-6. If log
// is nil, slog.Default() is used.
func NewDecoder(log *slog.Logger) *Decoder {
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{
		log: log.With("component", "captions"),
		cea608Decs: map[int]*ccx.CEA608Decoder{
			1: ccx.NewCEA608Decoder(),
			2: ccx.NewCEA608Decoder(),
			3: ccx.NewCEA608Decoder(),
			4: ccx.NewCEA608Decoder(),
		},
		cea708Svcs: map[int]*ccx.CEA708Service{
			1: ccx.NewCEA708Service(),
			2: ccx.NewCEA708Service(),
			3: ccx.NewCEA708Service(),
			4: ccx.NewCEA708Service(),
			5: ccx.NewCEA708Service(),
			6: ccx.NewCEA708Service(),
		},
	}
}

// Frame decodes the caption region of f, stamped with its caption PTS. It
// returns nil when f carries no captions or nothing new is displayed.
func (d *Decoder) Frame(f *media.Frame) []*ccx.CaptionFrame {
	return d.Decode(f.Caption.Data, f.Caption.PTS)
}

// Decode feeds one item's caption payload through the decoders and returns
// the caption frames whose displayed text changed. Malformed payloads are
// ignored.
func (d *Decoder) Decode(sei []byte, pts int64) []*ccx.CaptionFrame {
	d.items++
	if len(sei) == 0 {
		return nil
	}
	cd := ccx.ExtractCaptions(sei)
	if cd == nil {
		return nil
	}

	var out []*ccx.CaptionFrame
	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]
		if d.repeatedControl(int(pair.Field), cc1, cc2) {
			continue
		}
		dec := d.cea608Decs[pair.Channel]
		if dec == nil {
			continue
		}
		if text := dec.Decode(cc1, cc2); text != "" {
			frame := &ccx.CaptionFrame{PTS: pts, Text: text, Channel: pair.Channel}
			frame.Regions = dec.StyledRegions()
			out = append(out, frame)
		}
	}

	for _, t := range cd.DTVCC {
		if t.Start {
			out = d.drainDTVCC(out, pts)
			d.dtvccBuf = d.dtvccBuf[:0]
		}
		d.dtvccBuf = append(d.dtvccBuf, t.Data[0], t.Data[1])
	}
	if len(out) > 0 {
		d.log.Debug("captions decoded", "pts", pts, "frames", len(out))
	}
	return out
}

// repeatedControl reports whether cc1/cc2 is the redundant second copy of
// a CEA-608 control code sent within two items of the first.
func (d *Decoder) repeatedControl(field int, cc1, cc2 byte) bool {
	if field < 0 || field >= len(d.lastCtrl) {
		return false
	}
	if cc1 < 0x10 || cc1 > 0x1F {
		d.lastWasCtrl[field] = false
		return false
	}
	cp := [2]byte{cc1, cc2}
	gap := d.items - d.lastCtrlFrame[field]
	if d.lastWasCtrl[field] && d.lastCtrl[field] == cp && gap <= 2 {
		d.lastWasCtrl[field] = false
		return true
	}
	d.lastCtrl[field] = cp
	d.lastWasCtrl[field] = true
	d.lastCtrlFrame[field] = d.items
	return false
}

// drainDTVCC decodes the buffered DTVCC packet once it is complete.
func (d *Decoder) drainDTVCC(out []*ccx.CaptionFrame, pts int64) []*ccx.CaptionFrame {
	if len(d.dtvccBuf) < 1 {
		return out
	}
	packetSize := ccx.DTVCCPacketSize(d.dtvccBuf[0])
	if len(d.dtvccBuf) < packetSize {
		return out
	}

	for _, block := range ccx.ParseDTVCCPacket(d.dtvccBuf[:packetSize]) {
		svc := d.cea708Svcs[block.ServiceNum]
		if svc == nil || !svc.ProcessBlock(block.Data) {
			continue
		}
		if text := svc.DisplayText(); text != "" {
			frame := &ccx.CaptionFrame{PTS: pts, Text: text, Channel: block.ServiceNum + dtvccChannelBase}
			frame.Regions = svc.StyledRegions()
			out = append(out, frame)
		}
	}
	d.dtvccBuf = d.dtvccBuf[packetSize:]
	return out
}

// Reset drops all decoder state, as after a seek.
func (d *Decoder) Reset() {
	for ch := range d.cea608Decs {
		d.cea608Decs[ch] = ccx.NewCEA608Decoder()
	}
	for svc := range d.cea708Svcs {
		d.cea708Svcs[svc] = ccx.NewCEA708Service()
	}
	d.dtvccBuf = d.dtvccBuf[:0]
	d.lastCtrl = [2][2]byte{}
	d.lastWasCtrl = [2]bool{}
	d.lastCtrlFrame = [2]int64{}
}
