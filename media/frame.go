// Package media defines the frame and head types that cross the shared-memory
// ring: one Frame per slot, carrying up to six independent sub-streams, and a
// session-wide Head describing video geometry and audio format.
package media

import "fmt"

// Kind identifies one of the sub-streams a frame can carry. The order is
// the order of the descriptors in every slot layout.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
	KindSubtitle
	KindCaption
	KindTimecode
	KindUserData

	NumKinds
)

func (k Kind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	case KindSubtitle:
		return "subtitle"
	case KindCaption:
		return "caption"
	case KindTimecode:
		return "timecode"
	case KindUserData:
		return "userdata"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Stream is one sub-stream of a frame: an opaque byte range plus its
// presentation and decode timestamps. A nil or empty Data means the frame
// does not carry this sub-stream.
type Stream struct {
	Data []byte
	PTS  int64
	DTS  int64
}

// Present reports whether the stream carries any bytes.
func (s Stream) Present() bool { return len(s.Data) > 0 }

// Frame is the content of one ring slot. Decoded frames alias shared memory:
// the Data slices are valid only until the writer reuses the slot.
type Frame struct {
	Video    Stream
	Audio    Stream
	Subtitle Stream
	Caption  Stream // A/53 cc_data carried as an SEI payload
	Timecode Stream // 8-byte little-endian timecode.Timecode
	UserData Stream
}

// Stream returns a pointer to the sub-stream of kind k, or nil for an
// unknown kind.
func (f *Frame) Stream(k Kind) *Stream {
	switch k {
	case KindVideo:
		return &f.Video
	case KindAudio:
		return &f.Audio
	case KindSubtitle:
		return &f.Subtitle
	case KindCaption:
		return &f.Caption
	case KindTimecode:
		return &f.Timecode
	case KindUserData:
		return &f.UserData
	}
	return nil
}

// Sizes returns the byte length of every sub-stream in descriptor order.
func (f *Frame) Sizes() Sizes {
	var s Sizes
	for k := Kind(0); k < NumKinds; k++ {
		s[k] = len(f.Stream(k).Data)
	}
	return s
}

// PTS returns the frame's presentation timestamp: the video PTS when video
// is present, else the audio PTS, else the first present stream's PTS.
func (f *Frame) PTS() (int64, bool) {
	if f.Video.Present() {
		return f.Video.PTS, true
	}
	if f.Audio.Present() {
		return f.Audio.PTS, true
	}
	for k := KindSubtitle; k < NumKinds; k++ {
		if s := f.Stream(k); s.Present() {
			return s.PTS, true
		}
	}
	return 0, false
}

// Sizes holds a byte length per sub-stream kind, used to plan a slot layout
// before any payload exists.
type Sizes [NumKinds]int

// Total returns the sum of all lengths.
func (s Sizes) Total() int {
	var n int
	for _, v := range s {
		n += v
	}
	return n
}
