package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/zsiec/mediashm/internal/head"
	"github.com/zsiec/mediashm/internal/item"
	"github.com/zsiec/mediashm/internal/search"
	"github.com/zsiec/mediashm/media"
)

// Reader consumes a ring. It owns a decode cache and a read index and is
// not safe for concurrent use.
type Reader struct {
	store Store
	cfg   Config
	codec item.Codec
	cache *search.Cache
	log   *slog.Logger
	stats Stats
	major uint16

	closed bool
}

// NewReader waits for the writer to initialize the header of s, up to
// cfg.InitRetries steps of cfg.InitStep, and attaches to it.
func NewReader(ctx context.Context, s Store, cfg Config) (*Reader, error) {
	cfg = cfg.withDefaults()
	if s.HeadLen() < head.HeaderSize {
		return nil, &OpError{Op: "attach", Name: s.Name(), Err: ErrHeaderTooSmall}
	}
	if err := head.WaitInit(ctx, s, cfg.InitRetries, cfg.InitStep); err != nil {
		return nil, &OpError{Op: "attach", Name: s.Name(), Err: err}
	}
	if head.IsClosed(s) {
		return nil, &OpError{Op: "attach", Name: s.Name(), Err: ErrClosed}
	}
	major, minor := head.Version(s)
	r := &Reader{
		store: s,
		cfg:   cfg,
		codec: item.Codec{AudioTransform: cfg.AudioTransform},
		log:   cfg.Logger.With("component", "reader", "ring", s.Name()),
		major: major,
	}
	r.cache = search.NewCache(s.ItemCount(), r.decodeAt)
	r.log.Info("reader attached",
		"version", major, "minor", minor,
		"items", s.ItemCount(),
		"read_index", s.ReadIndex(),
		"write_index", s.WriteIndex())
	return r, nil
}

func (r *Reader) decodeAt(abs uint32) (item.Decoded, error) {
	return r.codec.Decode(r.store.Item(abs), r.major)
}

// Head returns the head currently published in the header.
func (r *Reader) Head() (media.Head, error) {
	return head.ReadHead(r.store)
}

// Closed reports whether the writer has set the close flag.
func (r *Reader) Closed() bool {
	return r.closed || head.IsClosed(r.store)
}

// wait polls until an item is readable, the timeout passes, ctx ends or the
// close flag is seen. A zero timeout tries once.
func (r *Reader) wait(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if r.Closed() {
			return ErrClosed
		}
		ok, err := r.store.Readable()
		if err != nil {
			return &OpError{Op: "read", Name: r.store.Name(), Err: err}
		}
		if ok {
			return nil
		}
		if timeout <= 0 || !time.Now().Before(deadline) {
			r.stats.notReady.Add(1)
			return ErrNotReady
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollStep):
		}
	}
}

func (r *Reader) poll(ctx context.Context, timeout time.Duration, step bool) (Item, error) {
	if err := r.wait(ctx, timeout); err != nil {
		return Item{}, err
	}
	abs := r.store.ReadIndex()
	it, err := r.decodeAt(abs)
	if err != nil {
		r.stats.corrupt.Add(1)
		r.log.Warn("skipping undecodable slot", "index", abs, "error", err)
		// A corrupt slot is stepped over even when peeking, so the
		// next poll makes progress.
		if ferr := r.store.FinishRead(); ferr != nil {
			return Item{}, &OpError{Op: "read", Name: r.store.Name(), Err: ferr}
		}
		return Item{}, &OpError{Op: "read", Name: r.store.Name(), Err: err}
	}
	if r.cfg.OnItem != nil {
		r.cfg.OnItem(abs, &it)
	}
	r.stats.recordItem(abs, &it)
	if step {
		if err := r.store.FinishRead(); err != nil {
			return Item{}, &OpError{Op: "read", Name: r.store.Name(), Err: err}
		}
	}
	return it, nil
}

// PollReadData waits up to timeout for the item at the read index, decodes
// it and advances the read index. It returns ErrNotReady on timeout and
// ErrClosed once the writer has closed the ring.
func (r *Reader) PollReadData(ctx context.Context, timeout time.Duration) (Item, error) {
	return r.poll(ctx, timeout, true)
}

// PollReadDataWithoutIndexStep is PollReadData without advancing the read
// index. Call StepIndex to move on.
func (r *Reader) PollReadDataWithoutIndexStep(ctx context.Context, timeout time.Duration) (Item, error) {
	return r.poll(ctx, timeout, false)
}

// StepIndex advances the read index by one item.
func (r *Reader) StepIndex() error {
	if r.closed {
		return ErrClosed
	}
	if err := r.store.FinishRead(); err != nil {
		return &OpError{Op: "step", Name: r.store.Name(), Err: err}
	}
	return nil
}

// ReadIndex returns the absolute read index.
func (r *Reader) ReadIndex() uint32 { return r.store.ReadIndex() }

// SkipToLatest moves the read index to the newest committed item.
func (r *Reader) SkipToLatest() uint32 {
	w := r.store.WriteIndex()
	if w > 0 {
		w--
	}
	r.store.SetReadIndex(w)
	return r.store.ReadIndex()
}

// SeekTo moves the read index to abs, clamped to the readable window, and
// returns the resulting index.
func (r *Reader) SeekTo(abs uint32) uint32 {
	r.store.SetReadIndex(abs)
	return r.store.ReadIndex()
}

// window returns the searchable range: from the read index, or the oldest
// intact slot if the reader fell behind, up to the newest committed item.
func (r *Reader) window() (first uint32, count int) {
	w := r.store.WriteIndex()
	first = r.store.ReadIndex()
	if span := uint32(r.store.ItemCount() - 1); w >= span {
		if oldest := w - span; int32(first-oldest) < 0 {
			first = oldest
		}
	}
	if int32(w-first) <= 0 {
		return first, 0
	}
	return first, int(w - first)
}

// Stats returns a snapshot of the reader counters.
func (r *Reader) Stats() StatsSnapshot {
	return r.stats.Snapshot()
}

// CacheStats returns the decode cache hit and miss counts.
func (r *Reader) CacheStats() (hits, misses int) {
	return r.cache.Stats()
}

// Close releases the store handle.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.store.Close()
}
