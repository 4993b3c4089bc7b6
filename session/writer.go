package session

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zsiec/mediashm/internal/head"
	"github.com/zsiec/mediashm/internal/item"
	"github.com/zsiec/mediashm/media"
)

// Writer encodes frames into a ring. It is not safe for concurrent use.
type Writer struct {
	store Store
	cfg   Config
	codec item.Codec
	neg   *head.Negotiator
	log   *slog.Logger
	stats Stats

	lastCommitMs int64

	pending      *item.Plan
	pendingHead  media.Head
	pendingFrame media.Frame

	closed bool
}

// NewWriter prepares s for writing. A freshly created region gets its
// version and init flag written; a joined region keeps its write index.
func NewWriter(s Store, cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if s.HeadLen() < head.HeaderSize {
		return nil, &OpError{Op: "create", Name: s.Name(), Err: ErrHeaderTooSmall}
	}
	if HeadSizeFor(cfg.Generation) == 0 {
		return nil, &OpError{Op: "create", Name: s.Name(), Err: item.ErrGeneration}
	}
	if !s.IsCreator() && head.IsClosed(s) {
		return nil, &OpError{Op: "create", Name: s.Name(), Err: ErrClosed}
	}
	if !head.IsInit(s) {
		if err := head.Init(s, head.Major, head.Minor); err != nil && !errors.Is(err, head.ErrAlreadyInit) {
			return nil, &OpError{Op: "init", Name: s.Name(), Err: err}
		}
	}

	log := cfg.Logger.With("component", "writer", "ring", s.Name())
	w := &Writer{
		store: s,
		cfg:   cfg,
		codec: item.Codec{AudioTransform: cfg.AudioTransform},
		neg:   head.NewNegotiator(s, cfg.HeadFields, cfg.Logger.With("ring", s.Name())),
		log:   log,
	}
	log.Info("writer created",
		"items", s.ItemCount(),
		"item_len", s.ItemLen(),
		"generation", cfg.Generation,
		"creator", s.IsCreator(),
		"write_index", s.WriteIndex())
	return w, nil
}

// HeadSizeFor returns the slot head size of gen without a side channel, or
// zero for an unknown generation.
func HeadSizeFor(gen Generation) int {
	return item.HeadSize(gen, false)
}

func (w *Writer) ready() error {
	if w.closed {
		return ErrClosed
	}
	ok, err := w.store.Sendable()
	if err != nil {
		return &OpError{Op: "write", Name: w.store.Name(), Err: err}
	}
	if !ok {
		w.stats.notReady.Add(1)
		return ErrNotReady
	}
	return nil
}

// prepare validates h against sizes and checks the slot fits, before any
// shared state is touched.
func (w *Writer) prepare(h media.Head, sizes media.Sizes) (*item.Plan, []byte, error) {
	if err := w.ready(); err != nil {
		return nil, nil, err
	}
	p, err := w.codec.Prepare(w.cfg.Generation, h, sizes)
	if err != nil {
		return nil, nil, &OpError{Op: "write", Name: w.store.Name(), Err: err}
	}
	slot := w.store.WriteItem()
	if p.Total > len(slot) {
		err := fmt.Errorf("%w: need %d bytes, slot has %d", item.ErrTooLarge, p.Total, len(slot))
		return nil, nil, &OpError{Op: "write", Name: w.store.Name(), Err: err}
	}
	return p, slot, nil
}

// commit publishes the head if it changed, seals the slot and advances the
// write index.
func (w *Writer) commit(p *item.Plan, slot []byte, h media.Head, f *media.Frame) error {
	published, err := w.neg.Update(h)
	if err != nil {
		return &OpError{Op: "publish head", Name: w.store.Name(), Err: err}
	}
	if published {
		w.stats.headPublishes.Add(1)
	}
	if err := p.Seal(slot, f); err != nil {
		return &OpError{Op: "write", Name: w.store.Name(), Err: err}
	}
	abs := w.store.WriteIndex()
	if err := w.store.FinishWrite(); err != nil {
		return &OpError{Op: "write", Name: w.store.Name(), Err: err}
	}
	w.stats.items.Add(1)
	w.stats.bytes.Add(int64(p.Total))
	w.stats.lastIndex.Store(abs)
	if pts, ok := f.PTS(); ok {
		w.stats.lastPTS.Store(pts)
	}
	return nil
}

// SendData writes f with head h into the next slot. The header head is
// republished only when h differs from the last one on the configured
// fields. Invalid heads and oversized frames fail before anything shared is
// modified.
func (w *Writer) SendData(h media.Head, f *media.Frame) error {
	p, slot, err := w.prepare(h, f.Sizes())
	if err != nil {
		return err
	}
	for k := media.Kind(0); k < media.NumKinds; k++ {
		if dst := p.Slice(slot, k); dst != nil {
			copy(dst, f.Stream(k).Data)
		}
	}
	return w.commit(p, slot, h, f)
}

// SendDataPaced is SendData limited to one commit per wall-clock
// millisecond. A second call within the same millisecond sleeps first.
func (w *Writer) SendDataPaced(h media.Head, f *media.Frame) error {
	if time.Now().UnixMilli() == w.lastCommitMs {
		w.stats.paced.Add(1)
		time.Sleep(time.Millisecond)
	}
	if err := w.SendData(h, f); err != nil {
		return err
	}
	w.lastCommitMs = time.Now().UnixMilli()
	return nil
}

// ApplyBuffer reserves the next slot for a frame with the given sub-stream
// sizes and returns a frame whose Data slices point into the slot. Fill
// them, set timestamps, then call CommitBuffer. A second ApplyBuffer
// discards the first.
func (w *Writer) ApplyBuffer(h media.Head, sizes media.Sizes) (*media.Frame, error) {
	w.pending = nil
	p, slot, err := w.prepare(h, sizes)
	if err != nil {
		return nil, err
	}
	w.pending = p
	w.pendingHead = h
	w.pendingFrame = media.Frame{}
	for k := media.Kind(0); k < media.NumKinds; k++ {
		w.pendingFrame.Stream(k).Data = p.Slice(slot, k)
	}
	return &w.pendingFrame, nil
}

// CommitBuffer publishes the frame returned by the last ApplyBuffer.
func (w *Writer) CommitBuffer() error {
	p := w.pending
	if p == nil {
		return ErrNoPending
	}
	w.pending = nil
	if err := w.ready(); err != nil {
		return err
	}
	return w.commit(p, w.store.WriteItem(), w.pendingHead, &w.pendingFrame)
}

// WaitReaders waits up to timeout for a reader to attach.
func (w *Writer) WaitReaders(timeout time.Duration) bool {
	return w.store.HasReaders(timeout)
}

// Head returns the last published head.
func (w *Writer) Head() (media.Head, bool) {
	return w.neg.Last()
}

// Stats returns a snapshot of the writer counters.
func (w *Writer) Stats() StatsSnapshot {
	return w.stats.Snapshot()
}

// Close sets the close flag, which readers treat as fatal, and releases the
// store handle.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.pending = nil
	if set, err := head.SetClosed(w.store); err != nil {
		w.log.Warn("failed to set close flag", "error", err)
	} else if set {
		w.log.Info("close flag set", "items", w.stats.items.Load())
	}
	return w.store.Close()
}
