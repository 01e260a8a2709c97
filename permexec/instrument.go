package permexec

import (
	"sync/atomic"
	"time"
)

// Sink receives cost measurements from the relation build and the
// exact-cover search. Implementations must be safe for concurrent use when
// one validator serves several goroutines.
type Sink interface {
	// RelationRound is called after each closure round with the pair count.
	RelationRound(round, pairs int)
	// CoverSearch is called once per exact-cover query.
	CoverSearch(states int, elapsed time.Duration)
}

// Counters is a Sink that accumulates totals.
type Counters struct {
	relationRounds atomic.Int64
	relationPairs  atomic.Int64
	coverSearches  atomic.Int64
	coverStates    atomic.Int64
	coverMaxStates atomic.Int64
	coverNanos     atomic.Int64
}

var _ Sink = (*Counters)(nil)

func (c *Counters) RelationRound(round, pairs int) {
	c.relationRounds.Add(1)
	c.relationPairs.Store(int64(pairs))
}

func (c *Counters) CoverSearch(states int, elapsed time.Duration) {
	c.coverSearches.Add(1)
	c.coverStates.Add(int64(states))
	c.coverNanos.Add(int64(elapsed))
	for {
		cur := c.coverMaxStates.Load()
		if int64(states) <= cur || c.coverMaxStates.CompareAndSwap(cur, int64(states)) {
			return
		}
	}
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	RelationRounds int64
	RelationPairs  int64
	CoverSearches  int64
	CoverStates    int64
	CoverMaxStates int64
	CoverTime      time.Duration
}

// Snapshot returns the current totals.
func (c *Counters) Snapshot() CounterSnapshot {
	return CounterSnapshot{
		RelationRounds: c.relationRounds.Load(),
		RelationPairs:  c.relationPairs.Load(),
		CoverSearches:  c.coverSearches.Load(),
		CoverStates:    c.coverStates.Load(),
		CoverMaxStates: c.coverMaxStates.Load(),
		CoverTime:      time.Duration(c.coverNanos.Load()),
	}
}

type nopSink struct{}

func (nopSink) RelationRound(int, int)         {}
func (nopSink) CoverSearch(int, time.Duration) {}
