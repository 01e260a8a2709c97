package permexec

import (
	"fmt"

	"github.com/speakeasy-api/jsonvpa"
)

// Pair records that a branch which started at Source has reached Reached.
type Pair struct {
	Source  jsonvpa.Location
	Reached jsonvpa.Location
}

func (p Pair) String() string { return fmt.Sprintf("(%d,%d)", p.Source, p.Reached) }

// pairSet accumulates distinct pairs in insertion order.
type pairSet struct {
	index map[Pair]struct{}
	list  []Pair
}

func newPairSet(capacity int) *pairSet {
	return &pairSet{
		index: make(map[Pair]struct{}, capacity),
		list:  make([]Pair, 0, capacity),
	}
}

func (s *pairSet) add(p Pair) {
	if _, ok := s.index[p]; ok {
		return
	}
	s.index[p] = struct{}{}
	s.list = append(s.list, p)
}

func (s *pairSet) contains(p Pair) bool {
	_, ok := s.index[p]
	return ok
}

func (s *pairSet) pairs() []Pair { return s.list }

// identityPairs returns (l, l) for every l in locs.
func identityPairs(locs Bitset) []Pair {
	out := make([]Pair, 0, locs.Count())
	locs.ForEach(func(x int) {
		l := jsonvpa.Location(x)
		out = append(out, Pair{Source: l, Reached: l})
	})
	return out
}
