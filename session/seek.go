package session

import (
	"errors"

	"github.com/zsiec/mediashm/internal/search"
	"github.com/zsiec/mediashm/timecode"
)

// Match reports how Seek positioned the reader.
type Match int

const (
	MatchNone     Match = iota
	MatchTimecode       // exact timecode match
	MatchPTS            // no timecode match, exact pts match
	MatchFallback       // neither matched; positioned at the oldest slot
)

func (m Match) String() string {
	switch m {
	case MatchTimecode:
		return "timecode"
	case MatchPTS:
		return "pts"
	case MatchFallback:
		return "fallback"
	}
	return "none"
}

func (r *Reader) searchErr(err error) error {
	r.stats.searchMisses.Add(1)
	if errors.Is(err, search.ErrInconsistent) {
		return &OpError{Op: "search", Name: r.store.Name(), Err: err}
	}
	return err
}

// SearchTimecode finds the slot between the read index and the newest item
// whose timecode equals tc, comparing across domains. The read index does
// not move.
func (r *Reader) SearchTimecode(tc timecode.Timecode) (Item, uint32, error) {
	if r.closed {
		return Item{}, 0, ErrClosed
	}
	r.stats.searches.Add(1)
	first, count := r.window()
	e, err := search.Find(r.cache, first, count, search.TimecodeOps(r.cfg.Table), tc, r.log)
	if err != nil {
		return Item{}, 0, r.searchErr(err)
	}
	return e.Item, e.Abs, nil
}

// SearchPTS finds the slot whose frame presentation timestamp equals pts.
// The read index does not move.
func (r *Reader) SearchPTS(pts int64) (Item, uint32, error) {
	if r.closed {
		return Item{}, 0, ErrClosed
	}
	r.stats.searches.Add(1)
	first, count := r.window()
	e, err := search.Find(r.cache, first, count, search.PTSOps(), pts, r.log)
	if err != nil {
		return Item{}, 0, r.searchErr(err)
	}
	return e.Item, e.Abs, nil
}

// Seek positions the read index at the slot matching tc, else the slot
// matching pts, else the oldest slot in the window, and reports which one
// it used. Pass timecode.Invalid to skip the timecode search.
func (r *Reader) Seek(tc timecode.Timecode, pts int64) (Match, Item, error) {
	it, abs, err := r.SearchTimecode(tc)
	if err == nil {
		r.store.SetReadIndex(abs)
		return MatchTimecode, it, nil
	}
	if !fallsThrough(err) {
		return MatchNone, Item{}, err
	}

	it, abs, err = r.SearchPTS(pts)
	if err == nil {
		r.store.SetReadIndex(abs)
		return MatchPTS, it, nil
	}
	if !fallsThrough(err) {
		return MatchNone, Item{}, err
	}

	first, count := r.window()
	if count == 0 {
		return MatchNone, Item{}, ErrEmptyWindow
	}
	e := r.cache.Get(first)
	if e.Err != nil {
		return MatchNone, Item{}, &OpError{Op: "seek", Name: r.store.Name(), Err: e.Err}
	}
	r.store.SetReadIndex(first)
	return MatchFallback, e.Item, nil
}

func fallsThrough(err error) bool {
	return errors.Is(err, search.ErrNotFound) || errors.Is(err, search.ErrInvalidQuery)
}
