// Package permexec validates JSON-like symbol streams against a visibly
// pushdown automaton while accepting any order of the key-value pairs of
// each object.
//
// The automaton is expected to read every object's keys in one canonical
// order. Three structures are derived from it once and then shared:
//
//   - a Relation of location pairs connected by well-matched words,
//   - a KeyGraph of "read one key and its value" steps, checked to be
//     unambiguous, and
//   - a Validator, a stack machine that tracks sets of (source, reached)
//     pairs and resolves each closing object through an exact-cover search
//     over the key graph.
//
// Example:
//
//	v, err := permexec.Compile(ctx, automaton, permexec.DefaultOptions())
//	if err != nil {
//	    var invalid *permexec.InvalidGraphError
//	    if errors.As(err, &invalid) {
//	        fmt.Println("ambiguous automaton, witness:", invalid.Witness)
//	    }
//	    return err
//	}
//	ok := v.Accepts(symbols)
package permexec

import (
	"context"
	"fmt"
	"time"

	"github.com/speakeasy-api/jsonvpa"
)

// Compile builds the relation and key graph of a and returns a validator
// over them.
func Compile(ctx context.Context, a jsonvpa.Automaton, opts Options) (*Validator, error) {
	if a == nil {
		return nil, ErrNilAutomaton
	}
	start := time.Now()
	rel, err := BuildRelation(ctx, a, opts)
	if err != nil {
		return nil, fmt.Errorf("build relation: %w", err)
	}
	return compileWith(ctx, a, rel, opts, start)
}

// Recompile builds a validator for next, reusing the parts of prev's
// relation that corr shows to be untouched.
func Recompile(ctx context.Context, prev *Validator, next jsonvpa.Automaton, corr Correspondence, opts Options) (*Validator, error) {
	if prev == nil {
		return Compile(ctx, next, opts)
	}
	start := time.Now()
	rel, err := BuildRelationIncremental(ctx, prev.automaton, prev.graph.relation, next, corr, opts)
	if err != nil {
		return nil, fmt.Errorf("build relation: %w", err)
	}
	return compileWith(ctx, next, rel, opts, start)
}

func compileWith(ctx context.Context, a jsonvpa.Automaton, rel *Relation, opts Options, start time.Time) (*Validator, error) {
	g, err := BuildKeyGraph(ctx, a, rel, opts)
	if err != nil {
		return nil, err
	}
	v, err := NewValidator(a, g, opts)
	if err != nil {
		return nil, err
	}
	opts.logger().With(map[string]any{
		"locations": a.Size(),
		"pairs":     rel.Len(),
		"nodes":     len(g.Nodes()),
		"elapsed":   time.Since(start),
	}).Infof("Validator compiled")
	return v, nil
}
