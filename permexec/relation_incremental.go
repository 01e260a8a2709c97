package permexec

import (
	"context"

	"github.com/speakeasy-api/jsonvpa"
)

// Correspondence maps a location of a previous automaton snapshot to the
// location that plays its role in the next snapshot.
type Correspondence func(old jsonvpa.Location) (jsonvpa.Location, bool)

// IdentityCorrespondence maps every location to itself.
func IdentityCorrespondence(old jsonvpa.Location) (jsonvpa.Location, bool) { return old, true }

// BuildRelationIncremental computes the relation of next, reusing pairs of
// prevRel (the relation of prev) whose every seen location is unmodified
// between the two snapshots. A location is unmodified when each of its
// internal and return transitions leads to the corresponding location in
// next.
//
// prevRel must carry witnesses; otherwise, and whenever the initial
// locations do not correspond, the relation is rebuilt from scratch.
func BuildRelationIncremental(ctx context.Context, prev jsonvpa.Automaton, prevRel *Relation, next jsonvpa.Automaton, corr Correspondence, opts Options) (*Relation, error) {
	if prev == nil || next == nil {
		return nil, ErrNilAutomaton
	}
	log := opts.logger().With(map[string]any{"phase": "relation-incremental"})

	if prevRel == nil || !prevRel.Complete() || !prevRel.HasWitnesses() {
		log.Infof("Previous relation unusable for reuse, rebuilding")
		return BuildRelation(ctx, next, opts)
	}
	if ni, ok := corr(prev.InitialLocation()); !ok || ni != next.InitialLocation() {
		log.Infof("Initial locations do not correspond, rebuilding")
		return BuildRelation(ctx, next, opts)
	}

	unmodified := UnmodifiedLocations(prev, next, corr)

	r := newRelation(next.Size(), opts.WithWitnesses)
	carried := 0
	for _, e := range prevRel.entries {
		if e == nil || !e.Seen.SubsetOf(unmodified) {
			continue
		}
		s, ok1 := corr(e.Start)
		t, ok2 := corr(e.Target)
		if !ok1 || !ok2 {
			continue
		}
		seen := r.seen()
		if r.witnesses {
			e.Seen.ForEach(func(x int) {
				if y, ok := corr(jsonvpa.Location(x)); ok {
					seen.Set(int(y))
				}
			})
		}
		if r.add(s, t, e.Witness, seen) {
			carried++
		}
	}
	seedRelation(next, r)

	log.With(map[string]any{
		"unmodified": unmodified.Count(),
		"carried":    carried,
		"previous":   prevRel.Len(),
	}).Infof("Reusing previous relation")

	return closeRelation(ctx, next, r, opts)
}

// UnmodifiedLocations returns the locations of prev whose transitions are
// preserved in next under corr.
func UnmodifiedLocations(prev, next jsonvpa.Automaton, corr Correspondence) Bitset {
	alpha := prev.Alphabet()
	out := NewBitset(prev.Size())

	sameTarget := func(oldTo jsonvpa.Location, oldOK bool, newTo jsonvpa.Location, newOK bool) bool {
		if oldOK != newOK {
			return false
		}
		if !oldOK {
			return true
		}
		mapped, ok := corr(oldTo)
		return ok && mapped == newTo
	}

	for i := 0; i < prev.Size(); i++ {
		old := jsonvpa.Location(i)
		cur, ok := corr(old)
		if !ok {
			continue
		}
		same := true
		for _, s := range alpha.Internals() {
			o, oOK := prev.InternalSuccessor(old, s)
			n, nOK := next.InternalSuccessor(cur, s)
			if !sameTarget(o, oOK, n, nOK) {
				same = false
				break
			}
		}
		for j := 0; same && j < prev.Size(); j++ {
			caller := jsonvpa.Location(j)
			newCaller, ok := corr(caller)
			if !ok {
				continue
			}
			for _, c := range alpha.Calls() {
				ret, _ := alpha.Matching(c)
				o, oOK := prev.ReturnSuccessor(old, ret, prev.EncodeStackSymbol(caller, c))
				n, nOK := next.ReturnSuccessor(cur, ret, next.EncodeStackSymbol(newCaller, c))
				if !sameTarget(o, oOK, n, nOK) {
					same = false
					break
				}
			}
		}
		if same {
			out.Set(i)
		}
	}
	return out
}
