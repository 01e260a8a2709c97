package permexec

import (
	"context"
	"time"

	"github.com/speakeasy-api/jsonvpa"
)

// coverPollInterval is how many search states are visited between context
// checks.
const coverPollInterval = 1024

// CoverQuery describes one exact-cover search.
type CoverQuery struct {
	// Seen is the set of key indices (see KeyIndex) read in the object.
	Seen Bitset
	// Contexts holds the locations at which the object may have been opened.
	Contexts Bitset
	// Rejected holds node IDs that must not be used.
	Rejected Bitset
}

// ClosingTargets returns every location t such that some edge path, starting
// at a starting node and avoiding rejected nodes, reads exactly the keys of
// q.Seen (each once) and ends in a node with target t that can close its
// object for one of q.Contexts.
//
// The search walks the graph depth-first, memoizing visited (node, key
// subset) states. maxStates > 0 bounds the visited states; exceeding it
// returns ErrCoverLimit. Cancelling ctx returns an error wrapping ErrAborted.
func (g *KeyGraph) ClosingTargets(ctx context.Context, q CoverQuery, maxStates int, sink Sink) (Bitset, error) {
	if sink == nil {
		sink = nopSink{}
	}
	s := &coverSearch{
		g:         g,
		ctx:       ctx,
		q:         q,
		maxStates: maxStates,
		visited:   make(map[coverState]struct{}),
		result:    NewBitset(g.automaton.Size()),
	}
	start := time.Now()
	var err error
	for _, id := range g.starting {
		if err = s.visit(id, Bitset{}); err != nil {
			break
		}
	}
	sink.CoverSearch(s.states, time.Since(start))
	if err != nil {
		return Bitset{}, err
	}
	return s.result, nil
}

// LocationsWithClosingTarget is ClosingTargets for callers holding the seen
// keys as symbols. Unknown keys make the result empty.
func (g *KeyGraph) LocationsWithClosingTarget(ctx context.Context, seen []jsonvpa.Symbol, contexts, rejected Bitset) (Bitset, error) {
	var keys Bitset
	for _, k := range seen {
		i, ok := g.keyIndex[k]
		if !ok {
			return Bitset{}, nil
		}
		keys.Set(i)
	}
	return g.ClosingTargets(ctx, CoverQuery{Seen: keys, Contexts: contexts, Rejected: rejected}, 0, nil)
}

type coverState struct {
	node NodeID
	keys string
}

type coverSearch struct {
	g         *KeyGraph
	ctx       context.Context
	q         CoverQuery
	maxStates int
	states    int
	visited   map[coverState]struct{}
	result    Bitset
}

func (s *coverSearch) visit(id NodeID, acc Bitset) error {
	n := s.g.nodes[id]
	ki := s.g.keyIndex[n.Key]
	if s.q.Rejected.Test(int(id)) || !s.q.Seen.Test(ki) || acc.Test(ki) {
		return nil
	}
	next := acc.Clone()
	next.Set(ki)

	st := coverState{node: id, keys: next.key()}
	if _, ok := s.visited[st]; ok {
		return nil
	}
	s.visited[st] = struct{}{}
	s.states++
	if s.maxStates > 0 && s.states > s.maxStates {
		return ErrCoverLimit
	}
	if s.states%coverPollInterval == 0 {
		if err := s.ctx.Err(); err != nil {
			return abortErr("exact-cover search", err)
		}
	}

	if next.Equal(s.q.Seen) {
		if n.Closing.Intersects(s.q.Contexts) {
			s.result.Set(int(n.Target))
		}
		return nil
	}
	for _, m := range s.g.succ[id] {
		if err := s.visit(m, next); err != nil {
			return err
		}
	}
	return nil
}
