package session

import "sync/atomic"

// Stats accumulates session counters. It is safe to read from any goroutine
// while the owning session runs.
type Stats struct {
	items         atomic.Int64
	bytes         atomic.Int64
	headPublishes atomic.Int64
	corrupt       atomic.Int64
	notReady      atomic.Int64
	paced         atomic.Int64
	searches      atomic.Int64
	searchMisses  atomic.Int64
	lastPTS       atomic.Int64
	lastIndex     atomic.Uint32
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Items         int64
	Bytes         int64
	HeadPublishes int64
	Corrupt       int64
	NotReady      int64
	Paced         int64
	Searches      int64
	SearchMisses  int64
	LastPTS       int64
	LastIndex     uint32
}

func (s *Stats) recordItem(abs uint32, it *Item) {
	s.items.Add(1)
	s.bytes.Add(int64(it.Total))
	if pts, ok := it.Frame.PTS(); ok {
		s.lastPTS.Store(pts)
	}
	s.lastIndex.Store(abs)
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Items:         s.items.Load(),
		Bytes:         s.bytes.Load(),
		HeadPublishes: s.headPublishes.Load(),
		Corrupt:       s.corrupt.Load(),
		NotReady:      s.notReady.Load(),
		Paced:         s.paced.Load(),
		Searches:      s.searches.Load(),
		SearchMisses:  s.searchMisses.Load(),
		LastPTS:       s.lastPTS.Load(),
		LastIndex:     s.lastIndex.Load(),
	}
}
