package head

import (
	"fmt"
	"log/slog"

	"github.com/zsiec/mediashm/internal/item"
	"github.com/zsiec/mediashm/media"
)

// Negotiator tracks the last head published to a header and republishes
// only when a compared field changes. It is not safe for concurrent use.
type Negotiator struct {
	store  Store
	fields media.HeadFields
	log    *slog.Logger

	last  media.Head
	known bool
	buf   [item.HeadBlockSize]byte
}

// NewNegotiator returns a Negotiator comparing heads on fields. A zero
// fields value means media.DefaultHeadFields.
func NewNegotiator(s Store, fields media.HeadFields, log *slog.Logger) *Negotiator {
	if log == nil {
		log = slog.Default()
	}
	if fields == 0 {
		fields = media.DefaultHeadFields
	}
	return &Negotiator{
		store:  s,
		fields: fields,
		log:    log.With("component", "head"),
	}
}

// Update publishes h if it is the first head seen or differs from the last
// published one on the compared fields. It reports whether the header was
// written.
func (n *Negotiator) Update(h media.Head) (bool, error) {
	if n.known && n.last.Equal(h, n.fields) {
		return false, nil
	}
	item.PutHeadBlock(n.buf[:], h)
	if err := n.store.PutHeader(offHead, n.buf[:]); err != nil {
		return false, fmt.Errorf("head: publish: %w", err)
	}
	if n.known {
		n.log.Debug("head republished",
			"width", h.Width, "height", h.Height,
			"duration", h.Duration, "scale", h.Scale,
			"channels", h.Channels, "samplerate", h.SampleRate)
	}
	n.last = h
	n.last.ChannelLayouts = append([]uint64(nil), h.ChannelLayouts...)
	n.known = true
	return true, nil
}

// Last returns the last published head and whether one exists.
func (n *Negotiator) Last() (media.Head, bool) {
	return n.last, n.known
}
