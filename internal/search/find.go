package search

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zsiec/mediashm/timecode"
)

var (
	ErrNotFound     = errors.New("search: not found")
	ErrInvalidQuery = errors.New("search: invalid query")
	ErrEmptyWindow  = errors.New("search: empty window")
	ErrInconsistent = errors.New("search: ring values not monotonic")
)

// Ops describes how to search on one value type.
type Ops[T any] struct {
	// Valid reports whether a query is usable.
	Valid func(T) bool
	// Value extracts the searched value from a decoded entry; false means
	// the slot does not carry one.
	Value func(*Entry) (T, bool)
	// Compare returns -1, 0 or 1.
	Compare func(a, b T) int
	// Diff returns a-b in the value's natural unit, for diagnostics.
	Diff func(a, b T) int64
}

// Find searches count slots starting at absolute index first for the slot
// whose value equals q. Values are assumed non-decreasing across the window.
// The first exact match probed wins among duplicates. A two-slot window whose
// ends bracket q yields the later slot.
func Find[T any](c *Cache, first uint32, count int, ops Ops[T], q T, log *slog.Logger) (*Entry, error) {
	if count <= 0 {
		return nil, ErrEmptyWindow
	}
	if !ops.Valid(q) {
		return nil, ErrInvalidQuery
	}
	if log == nil {
		log = slog.Default()
	}

	probe := func(off int) (*Entry, T, int, error) {
		e := c.Get(first + uint32(off))
		var zero T
		if e.Err != nil {
			return e, zero, 0, fmt.Errorf("search: slot %d: %w", e.Abs, e.Err)
		}
		v, ok := ops.Value(e)
		if !ok {
			return e, zero, 0, fmt.Errorf("%w: slot %d carries no value", ErrNotFound, e.Abs)
		}
		return e, v, ops.Compare(v, q), nil
	}

	lo, loV, cmp, err := probe(0)
	if err != nil {
		return nil, err
	}
	if cmp == 0 {
		return lo, nil
	}
	if cmp > 0 {
		return nil, fmt.Errorf("%w: first slot %d is %d past the query", ErrNotFound, lo.Abs, ops.Diff(loV, q))
	}
	if count == 1 {
		// The only slot is both ends and lies below the query.
		return nil, fmt.Errorf("%w: last slot %d is %d before the query", ErrNotFound, lo.Abs, ops.Diff(q, loV))
	}

	hi, hiV, cmp, err := probe(count - 1)
	if err != nil {
		return nil, err
	}
	if cmp == 0 {
		return hi, nil
	}
	if cmp < 0 {
		return nil, fmt.Errorf("%w: last slot %d is %d before the query", ErrNotFound, hi.Abs, ops.Diff(q, hiV))
	}
	// Nothing lies between two adjacent slots; take the later one.
	if count == 2 {
		return hi, nil
	}

	loOff, hiOff := 0, count-1
	for hiOff-loOff > 1 {
		mid := loOff + (hiOff-loOff)/2
		e, v, cmp, err := probe(mid)
		if err != nil {
			return nil, err
		}
		if ops.Compare(v, loV) < 0 || ops.Compare(v, hiV) > 0 {
			log.Error("search window not monotonic, should be impossible",
				"first", first, "count", count, "slot", e.Abs)
			return nil, ErrInconsistent
		}
		switch {
		case cmp == 0:
			return e, nil
		case cmp < 0:
			loOff, loV = mid, v
		default:
			hiOff, hiV = mid, v
		}
	}
	return nil, fmt.Errorf("%w: falls between slots %d and %d", ErrNotFound, first+uint32(loOff), first+uint32(hiOff))
}

// TimecodeOps searches on the item's timecode sub-stream, comparing across
// domains through table.
func TimecodeOps(table *timecode.Table) Ops[timecode.Timecode] {
	return Ops[timecode.Timecode]{
		Valid: table.Valid,
		Value: func(e *Entry) (timecode.Timecode, bool) {
			return e.TC, e.TC != timecode.Invalid && table.Valid(e.TC)
		},
		Compare: table.Compare,
		Diff:    table.MinusWithMs,
	}
}

// PTSOps searches on the frame presentation timestamp.
func PTSOps() Ops[int64] {
	return Ops[int64]{
		Valid: func(int64) bool { return true },
		Value: func(e *Entry) (int64, bool) { return e.PTS, e.HasPTS },
		Compare: func(a, b int64) int {
			switch d := a - b; {
			case d < 0:
				return -1
			case d > 0:
				return 1
			}
			return 0
		},
		Diff: func(a, b int64) int64 { return a - b },
	}
}
