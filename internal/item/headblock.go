package item

import (
	"encoding/binary"

	"github.com/zsiec/mediashm/internal/cursor"
	"github.com/zsiec/mediashm/media"
)

// HeadBlockSize is the encoded size of a media.Head, shared by the v4 item
// head and the session header.
const HeadBlockSize = 64

// PutHeadBlock writes h into b[:HeadBlockSize]. Channel layouts are not part
// of the block.
func PutHeadBlock(b []byte, h media.Head) {
	_ = b[HeadBlockSize-1]
	le := binary.LittleEndian
	le.PutUint32(b[0:4], h.Width)
	le.PutUint32(b[4:8], h.Height)
	le.PutUint32(b[8:12], h.FourCC)
	le.PutUint32(b[12:16], h.Duration)
	le.PutUint32(b[16:20], h.Scale)
	le.PutUint32(b[20:24], h.AudioFourCC)
	le.PutUint16(b[24:26], h.Channels)
	le.PutUint16(b[26:28], h.Depth)
	le.PutUint32(b[28:32], h.SampleRate)
	le.PutUint64(b[32:40], uint64(h.Timestamp))
	clear(b[40:HeadBlockSize])
}

// ParseHeadBlock reads a head block from b. Reserved trailing bytes are
// skipped so newer writers may use them.
func ParseHeadBlock(b []byte) (media.Head, error) {
	if len(b) < HeadBlockSize {
		return media.Head{}, ErrCorrupt
	}
	r := cursor.NewReader(b[:HeadBlockSize])
	var h media.Head
	var ts uint64
	var err error
	read32 := func(dst *uint32) {
		if err == nil {
			*dst, err = r.ReadU32LE()
		}
	}
	read16 := func(dst *uint16) {
		if err == nil {
			*dst, err = r.ReadU16LE()
		}
	}
	read32(&h.Width)
	read32(&h.Height)
	read32(&h.FourCC)
	read32(&h.Duration)
	read32(&h.Scale)
	read32(&h.AudioFourCC)
	read16(&h.Channels)
	read16(&h.Depth)
	read32(&h.SampleRate)
	if err == nil {
		ts, err = r.ReadU64LE()
	}
	if err == nil {
		err = r.Skip(r.Remaining())
	}
	if err != nil {
		return media.Head{}, err
	}
	h.Timestamp = int64(ts)
	return h, nil
}

// ValidateHead checks the head fields required by the sub-streams present
// in sizes.
func ValidateHead(h media.Head, sizes media.Sizes) error {
	if sizes[media.KindVideo] > 0 {
		switch {
		case h.Width == 0:
			return &FieldError{Field: "width", Value: int64(h.Width), Err: ErrInvalidHead}
		case h.Height == 0:
			return &FieldError{Field: "height", Value: int64(h.Height), Err: ErrInvalidHead}
		case h.Duration == 0:
			return &FieldError{Field: "duration", Value: int64(h.Duration), Err: ErrInvalidHead}
		case h.Scale == 0:
			return &FieldError{Field: "scale", Value: int64(h.Scale), Err: ErrInvalidHead}
		case h.Duration > h.Scale:
			return &FieldError{Field: "duration", Value: int64(h.Duration), Err: ErrInvalidHead}
		}
	}
	if sizes[media.KindAudio] > 0 {
		switch {
		case h.Channels == 0:
			return &FieldError{Field: "channels", Value: int64(h.Channels), Err: ErrInvalidHead}
		case h.Depth == 0:
			return &FieldError{Field: "depth", Value: int64(h.Depth), Err: ErrInvalidHead}
		case h.SampleRate < 8000:
			return &FieldError{Field: "samplerate", Value: int64(h.SampleRate), Err: ErrInvalidHead}
		}
	}
	return nil
}
