package permexec

import (
	"context"
	"time"

	"github.com/speakeasy-api/jsonvpa"
)

// Entry is one related pair of a Relation. Witness and Seen are only filled
// when the relation was built with witnesses.
type Entry struct {
	Start  jsonvpa.Location
	Target jsonvpa.Location

	// Witness is a well-matched word leading from Start to Target. It is
	// fixed when the pair is first derived.
	Witness []jsonvpa.Symbol

	// Seen holds locations visited on some derivation of the pair. It only
	// grows as the closure re-derives the pair.
	Seen Bitset
}

// Relation is the well-matched reachability relation of an automaton: the
// least relation containing the identity and every internal step, closed
// under composition and under wrapping a call/return pair around a
// well-matched word read from the initial location.
//
// A Relation is immutable once built and safe for concurrent reads.
type Relation struct {
	size      int
	rows      []Bitset
	entries   []*Entry
	witnesses bool
	complete  bool
	pairs     int
	rounds    int
}

func newRelation(size int, witnesses bool) *Relation {
	r := &Relation{
		size:      size,
		rows:      make([]Bitset, size),
		witnesses: witnesses,
	}
	for i := range r.rows {
		r.rows[i] = NewBitset(size)
	}
	if witnesses {
		r.entries = make([]*Entry, size*size)
	}
	return r
}

// abortedRelation is the explicitly empty result of a cancelled build.
func abortedRelation(size int) *Relation {
	return &Relation{size: size, rows: make([]Bitset, size)}
}

// add relates p to q. If the pair already exists only its seen-set grows.
// It reports whether the pair is new.
func (r *Relation) add(p, q jsonvpa.Location, witness []jsonvpa.Symbol, seen Bitset) bool {
	if r.rows[p].Test(int(q)) {
		if r.witnesses {
			r.entries[r.idx(p, q)].Seen.Or(seen)
		}
		return false
	}
	r.rows[p].Set(int(q))
	r.pairs++
	if r.witnesses {
		r.entries[r.idx(p, q)] = &Entry{Start: p, Target: q, Witness: witness, Seen: seen}
	}
	return true
}

func (r *Relation) idx(p, q jsonvpa.Location) int { return int(p)*r.size + int(q) }

// Size returns the number of automaton locations the relation ranges over.
func (r *Relation) Size() int { return r.size }

// Len returns the number of related pairs.
func (r *Relation) Len() int { return r.pairs }

// Complete reports whether the build ran to its fixpoint. An aborted build
// yields an empty, incomplete relation.
func (r *Relation) Complete() bool { return r.complete }

// HasWitnesses reports whether witness words and seen-sets were recorded.
func (r *Relation) HasWitnesses() bool { return r.witnesses }

// Rounds returns how many closure rounds the build took.
func (r *Relation) Rounds() int { return r.rounds }

// Contains reports whether (p, q) is related.
func (r *Relation) Contains(p, q jsonvpa.Location) bool {
	if int(p) < 0 || int(p) >= r.size {
		return false
	}
	return r.rows[p].Test(int(q))
}

// Targets returns every q related from p, in ascending order.
func (r *Relation) Targets(p jsonvpa.Location) Bitset {
	if int(p) < 0 || int(p) >= r.size {
		return Bitset{}
	}
	return r.rows[p]
}

// Entry returns the entry for (p, q).
func (r *Relation) Entry(p, q jsonvpa.Location) (Entry, bool) {
	if !r.Contains(p, q) {
		return Entry{}, false
	}
	if !r.witnesses {
		return Entry{Start: p, Target: q}, true
	}
	e := r.entries[r.idx(p, q)]
	return Entry{Start: e.Start, Target: e.Target, Witness: append([]jsonvpa.Symbol(nil), e.Witness...), Seen: e.Seen.Clone()}, true
}

// Witness returns the witness word of (p, q). The second result is false if
// the pair is unrelated or witnesses were not recorded.
func (r *Relation) Witness(p, q jsonvpa.Location) ([]jsonvpa.Symbol, bool) {
	if !r.witnesses || !r.Contains(p, q) {
		return nil, false
	}
	return r.entries[r.idx(p, q)].Witness, true
}

// Each calls fn for every related pair in (start, target) order.
func (r *Relation) Each(fn func(p, q jsonvpa.Location)) {
	for p := range r.rows {
		r.rows[p].ForEach(func(q int) { fn(jsonvpa.Location(p), jsonvpa.Location(q)) })
	}
}

// BuildRelation computes the reachability relation of a. Cancelling ctx
// stops the build and returns an empty, incomplete relation along with an
// error wrapping ErrAborted.
func BuildRelation(ctx context.Context, a jsonvpa.Automaton, opts Options) (*Relation, error) {
	if a == nil {
		return nil, ErrNilAutomaton
	}
	r := newRelation(a.Size(), opts.WithWitnesses)
	seedRelation(a, r)
	return closeRelation(ctx, a, r, opts)
}

// seedRelation adds the identity and one-step internal pairs.
func seedRelation(a jsonvpa.Automaton, r *Relation) {
	internals := a.Alphabet().Internals()
	for p := 0; p < r.size; p++ {
		l := jsonvpa.Location(p)
		r.add(l, l, nil, r.seen(l))
		for _, s := range internals {
			if q, ok := a.InternalSuccessor(l, s); ok {
				r.add(l, q, []jsonvpa.Symbol{s}, r.seen(l, q))
			}
		}
	}
}

func (r *Relation) seen(ls ...jsonvpa.Location) Bitset {
	if !r.witnesses {
		return Bitset{}
	}
	b := NewBitset(r.size)
	for _, l := range ls {
		b.Set(int(l))
	}
	return b
}

// closeRelation alternates transitive closure and call/return lifting until
// no pair is added.
func closeRelation(ctx context.Context, a jsonvpa.Automaton, r *Relation, opts Options) (*Relation, error) {
	log := opts.logger().With(map[string]any{"phase": "relation", "locations": r.size})
	sink := opts.sink()
	start := time.Now()

	for {
		r.rounds++
		if err := r.transitiveClosure(ctx); err != nil {
			log.Warnf("Relation build aborted in round %d", r.rounds)
			return abortedRelation(r.size), abortErr("reachability relation", err)
		}
		if err := ctx.Err(); err != nil {
			return abortedRelation(r.size), abortErr("reachability relation", err)
		}
		added := r.lift(a)
		sink.RelationRound(r.rounds, r.pairs)
		log.Debugf("Closure round %d: %d pairs, %d lifted", r.rounds, r.pairs, added)
		if added == 0 {
			break
		}
	}

	r.complete = true
	log.With(map[string]any{
		"pairs":   r.pairs,
		"rounds":  r.rounds,
		"elapsed": time.Since(start),
	}).Infof("Relation built")
	return r, nil
}

// transitiveClosure runs one Warshall pass.
func (r *Relation) transitiveClosure(ctx context.Context) error {
	for k := 0; k < r.size; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		pivot := jsonvpa.Location(k)
		for i := 0; i < r.size; i++ {
			if i == k || !r.rows[i].Test(k) {
				continue
			}
			if !r.witnesses {
				r.rows[i].Or(r.rows[k])
				continue
			}
			start := jsonvpa.Location(i)
			left := r.entries[r.idx(start, pivot)]
			r.rows[k].ForEach(func(j int) {
				right := r.entries[r.idx(pivot, jsonvpa.Location(j))]
				seen := left.Seen.Clone()
				seen.Or(right.Seen)
				var w []jsonvpa.Symbol
				if !r.rows[i].Test(j) {
					w = concatWords(left.Witness, right.Witness)
				}
				r.add(start, jsonvpa.Location(j), w, seen)
			})
		}
	}
	if !r.witnesses {
		r.recount()
	}
	return nil
}

func (r *Relation) recount() {
	n := 0
	for _, row := range r.rows {
		n += row.Count()
	}
	r.pairs = n
}

type liftedPair struct {
	caller  jsonvpa.Location
	target  jsonvpa.Location
	witness []jsonvpa.Symbol
	seen    Bitset
}

// lift adds (p, p') whenever (init, q) is related and q returns to p' on the
// stack symbol pushed by a call at p. It returns the number of new pairs.
func (r *Relation) lift(a jsonvpa.Automaton) int {
	alpha := a.Alphabet()
	init := a.InitialLocation()

	var pending []liftedPair
	r.rows[init].ForEach(func(qi int) {
		q := jsonvpa.Location(qi)
		for _, c := range alpha.Calls() {
			ret, _ := alpha.Matching(c)
			for p := 0; p < r.size; p++ {
				caller := jsonvpa.Location(p)
				t, ok := a.ReturnSuccessor(q, ret, a.EncodeStackSymbol(caller, c))
				if !ok {
					continue
				}
				lp := liftedPair{caller: caller, target: t}
				if r.witnesses {
					inner := r.entries[r.idx(init, q)]
					lp.seen = inner.Seen.Clone()
					lp.seen.Set(p)
					lp.seen.Set(int(t))
					if !r.rows[caller].Test(int(t)) {
						lp.witness = wrapWord(c, inner.Witness, ret)
					}
				}
				pending = append(pending, lp)
			}
		}
	})

	added := 0
	for _, lp := range pending {
		if r.add(lp.caller, lp.target, lp.witness, lp.seen) {
			added++
		}
	}
	return added
}

func concatWords(a, b []jsonvpa.Symbol) []jsonvpa.Symbol {
	out := make([]jsonvpa.Symbol, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func wrapWord(call jsonvpa.Symbol, inner []jsonvpa.Symbol, ret jsonvpa.Symbol) []jsonvpa.Symbol {
	out := make([]jsonvpa.Symbol, 0, len(inner)+2)
	out = append(out, call)
	out = append(out, inner...)
	return append(out, ret)
}
