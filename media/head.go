package media

import "slices"

// Head is the session-wide media description restated with every v4 item
// and published in the shared header. Frame rate is Scale/Duration.
type Head struct {
	Width    uint32
	Height   uint32
	FourCC   uint32
	Duration uint32
	Scale    uint32

	AudioFourCC uint32
	Channels    uint16
	Depth       uint16
	SampleRate  uint32

	// ChannelLayouts overrides the channel layout per audio track for
	// multi-track audio. It travels only in the v4 side channel and never
	// changes the header size.
	ChannelLayouts []uint64

	// Timestamp is the writer's wall clock in milliseconds when the head
	// was produced. It never takes part in change detection.
	Timestamp int64
}

// HeadFields selects which head fields participate in change detection.
type HeadFields uint32

const (
	FieldGeometry       HeadFields = 1 << iota // Width, Height
	FieldFourCC                                // FourCC
	FieldFrameRate                             // Duration, Scale
	FieldAudio                                 // AudioFourCC, Channels, Depth, SampleRate
	FieldChannelLayouts                        // ChannelLayouts

	// DefaultHeadFields is the set compared before republishing the header.
	// Channel layouts are not part of the header and are opt-in.
	DefaultHeadFields = FieldGeometry | FieldFourCC | FieldFrameRate | FieldAudio

	AllHeadFields = DefaultHeadFields | FieldChannelLayouts
)

// Equal reports whether h and o agree on every field in fields. Timestamp
// is never compared.
func (h Head) Equal(o Head, fields HeadFields) bool {
	if fields&FieldGeometry != 0 && (h.Width != o.Width || h.Height != o.Height) {
		return false
	}
	if fields&FieldFourCC != 0 && h.FourCC != o.FourCC {
		return false
	}
	if fields&FieldFrameRate != 0 && (h.Duration != o.Duration || h.Scale != o.Scale) {
		return false
	}
	if fields&FieldAudio != 0 && (h.AudioFourCC != o.AudioFourCC ||
		h.Channels != o.Channels || h.Depth != o.Depth || h.SampleRate != o.SampleRate) {
		return false
	}
	if fields&FieldChannelLayouts != 0 && !slices.Equal(h.ChannelLayouts, o.ChannelLayouts) {
		return false
	}
	return true
}

// FourCC packs a four-character code little-endian, first character in the
// low byte.
func FourCC(code string) uint32 {
	var v uint32
	for i := 0; i < 4 && i < len(code); i++ {
		v |= uint32(code[i]) << (8 * i)
	}
	return v
}
