package permexec

import (
	"context"
	"fmt"

	"github.com/speakeasy-api/jsonvpa"
	"golang.org/x/sync/errgroup"
)

// Validator decides acceptance of symbol streams against an automaton while
// ignoring the order of key-value pairs inside objects. Arrays stay order
// sensitive.
//
// A Validator holds no per-document state; one instance may validate many
// documents concurrently.
type Validator struct {
	automaton jsonvpa.Automaton
	alpha     *jsonvpa.Alphabet
	graph     *KeyGraph
	opts      Options
	log       Logger
	sink      Sink
}

// NewValidator creates a validator over a and its key graph g. Building g
// already rejected ambiguous automata, so the only failures here are
// missing arguments.
func NewValidator(a jsonvpa.Automaton, g *KeyGraph, opts Options) (*Validator, error) {
	if a == nil {
		return nil, ErrNilAutomaton
	}
	if g == nil {
		return nil, ErrNilKeyGraph
	}
	return &Validator{
		automaton: a,
		alpha:     a.Alphabet(),
		graph:     g,
		opts:      opts,
		log:       opts.logger().With(map[string]any{"phase": "validate"}),
		sink:      opts.sink(),
	}, nil
}

// Graph returns the key graph backing v.
func (v *Validator) Graph() *KeyGraph { return v.graph }

// Accepts reports whether symbols is accepted. Aborted searches count as
// rejections; use Validate to tell them apart.
func (v *Validator) Accepts(symbols []jsonvpa.Symbol) bool {
	ok, err := v.Validate(context.Background(), symbols)
	return ok && err == nil
}

// Validate reports whether symbols is accepted. A non-nil error means the
// run was aborted (it wraps ErrAborted) and says nothing about acceptance.
func (v *Validator) Validate(ctx context.Context, symbols []jsonvpa.Symbol) (bool, error) {
	r := &run{
		v:     v,
		ctx:   ctx,
		stack: newFrameStack(),
	}
	return r.exec(symbols)
}

// ValidateAll validates docs concurrently, at most Options.Parallelism at a
// time. The first aborted run cancels the rest and its error is returned.
func (v *Validator) ValidateAll(ctx context.Context, docs [][]jsonvpa.Symbol) ([]bool, error) {
	results := make([]bool, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	if v.opts.Parallelism > 0 {
		g.SetLimit(v.opts.Parallelism)
	}
	for i, doc := range docs {
		g.Go(func() error {
			ok, err := v.Validate(gctx, doc)
			if err != nil {
				return fmt.Errorf("document %d: %w", i, err)
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// run is the state of one validation: the frontier of (source, reached)
// pairs and the stack of open frames.
type run struct {
	v        *Validator
	ctx      context.Context
	frontier []Pair
	stack    *frameStack
}

func (r *run) exec(symbols []jsonvpa.Symbol) (bool, error) {
	alpha := r.v.alpha
	if len(symbols) == 0 || symbols[0] != alpha.ObjectOpen {
		return false, nil
	}
	init := r.v.automaton.InitialLocation()
	r.frontier = []Pair{{Source: init, Reached: init}}

	for i, s := range symbols {
		var next jsonvpa.Symbol
		if i+1 < len(symbols) {
			next = symbols[i+1]
		}
		var ok bool
		switch alpha.Kind(s) {
		case jsonvpa.KindCall:
			ok = r.call(s, next)
		case jsonvpa.KindInternal:
			ok = r.internal(s, next)
		case jsonvpa.KindReturn:
			var err error
			if ok, err = r.ret(s); err != nil {
				return false, err
			}
		}
		if !ok {
			r.v.log.Debugf("Rejected at position %d (%s), depth %d", i, s, r.stack.len())
			return false, nil
		}
	}

	if !r.stack.empty() {
		return false, nil
	}
	for _, p := range r.frontier {
		if r.v.automaton.IsAccepting(p.Reached) {
			return true, nil
		}
	}
	return false, nil
}

// call pushes a frame. A non-empty object starts at every location that
// reads its first key; arrays and empty objects start at the initial
// location.
func (r *run) call(s, next jsonvpa.Symbol) bool {
	alpha := r.v.alpha
	f := &frame{before: r.frontier, call: s}
	r.stack.push(f)
	if s == alpha.ObjectOpen && next != "" && next != alpha.ObjectClose {
		return r.enterKey(f, next)
	}
	init := r.v.automaton.InitialLocation()
	r.frontier = []Pair{{Source: init, Reached: init}}
	return true
}

// enterKey records key as read in f and restarts the frontier at every
// location that reads key.
func (r *run) enterKey(f *frame, key jsonvpa.Symbol) bool {
	if !r.v.alpha.IsKey(key) {
		return false
	}
	ki, ok := r.v.graph.KeyIndex(key)
	if !ok || f.seen.Test(ki) {
		return false
	}
	f.seen.Set(ki)
	f.key = key
	r.frontier = identityPairs(r.v.graph.LocationsReadingKey(key))
	return len(r.frontier) > 0
}

func (r *run) internal(s, next jsonvpa.Symbol) bool {
	if top := r.stack.top(); top != nil && top.isObject(r.v.alpha) && s == r.v.alpha.Comma {
		r.markRejected(top)
		return r.enterKey(top, next)
	}

	a := r.v.automaton
	out := newPairSet(len(r.frontier))
	for _, p := range r.frontier {
		if t, ok := a.InternalSuccessor(p.Reached, s); ok {
			out.add(Pair{Source: p.Source, Reached: t})
		}
	}
	r.frontier = out.pairs()
	return len(r.frontier) > 0
}

// markRejected rejects the nodes of the current key whose (start, target)
// the value just read did not produce.
func (r *run) markRejected(f *frame) {
	if f.key == "" {
		return
	}
	present := newPairSet(len(r.frontier))
	for _, p := range r.frontier {
		present.add(p)
	}
	for _, id := range r.v.graph.NodesReadingKey(f.key) {
		n := r.v.graph.Node(id)
		if !present.contains(Pair{Source: n.Start, Reached: n.Target}) {
			f.reject.Set(int(id))
		}
	}
}

func (r *run) ret(s jsonvpa.Symbol) (bool, error) {
	top := r.stack.top()
	if top == nil {
		return false, nil
	}
	if closer, _ := r.v.alpha.Matching(top.call); closer != s {
		return false, nil
	}
	a := r.v.automaton
	out := newPairSet(len(top.before))

	if top.isObject(r.v.alpha) && top.key != "" {
		r.markRejected(top)
		contexts := NewBitset(a.Size())
		for _, b := range top.before {
			contexts.Set(int(b.Reached))
		}
		targets, err := r.v.graph.ClosingTargets(r.ctx, CoverQuery{
			Seen:     top.seen,
			Contexts: contexts,
			Rejected: top.reject,
		}, r.v.opts.MaxCoverStates, r.v.sink)
		if err != nil {
			return false, err
		}
		for _, b := range top.before {
			stackSym := a.EncodeStackSymbol(b.Reached, top.call)
			targets.ForEach(func(t int) {
				if to, ok := a.ReturnSuccessor(jsonvpa.Location(t), s, stackSym); ok {
					out.add(Pair{Source: b.Source, Reached: to})
				}
			})
		}
	} else {
		for _, b := range top.before {
			stackSym := a.EncodeStackSymbol(b.Reached, top.call)
			for _, p := range r.frontier {
				if to, ok := a.ReturnSuccessor(p.Reached, s, stackSym); ok {
					out.add(Pair{Source: b.Source, Reached: to})
				}
			}
		}
	}

	r.stack.pop()
	r.frontier = out.pairs()
	return len(r.frontier) > 0, nil
}
