package permexec

import (
	"context"

	"github.com/speakeasy-api/jsonvpa"
)

// checkValidity rejects graphs in which a node on an accepting path can
// reach another node carrying the same key. A cycle is the special case of
// a node reaching itself.
func (g *KeyGraph) checkValidity(ctx context.Context, opts Options) error {
	log := opts.logger().With(map[string]any{"phase": "keygraph-validity"})

	var w *witnessBuilder
	var firstErr error
	g.onPath.ForEach(func(x int) {
		if firstErr != nil {
			return
		}
		if err := ctx.Err(); err != nil {
			firstErr = abortErr("key graph validity", err)
			return
		}
		a := NodeID(x)
		reached := g.reach(g.succ[a], g.succ, &g.onPath)
		reached.ForEach(func(y int) {
			if firstErr != nil || g.nodes[y].Key != g.nodes[a].Key {
				return
			}
			if w == nil {
				var err error
				if w, err = g.newWitnessBuilder(ctx, opts); err != nil {
					firstErr = err
					return
				}
			}
			word, ok := w.duplicateKeyWord(a, NodeID(y))
			if !ok {
				log.Debugf("Duplicate key %s between %s and %s has no accepted embedding", g.nodes[a].Key, g.nodes[a], g.nodes[y])
				return
			}
			firstErr = &InvalidGraphError{Witness: word, First: g.nodes[a], Second: g.nodes[y]}
		})
	})
	if firstErr != nil {
		log.Warnf("Key graph rejected: %v", firstErr)
	}
	return firstErr
}

// witnessBuilder turns key-graph paths back into automaton words.
type witnessBuilder struct {
	g     *KeyGraph
	a     jsonvpa.Automaton
	rel   *Relation
	emb   *embedding
	alpha *jsonvpa.Alphabet
}

func (g *KeyGraph) newWitnessBuilder(ctx context.Context, opts Options) (*witnessBuilder, error) {
	rel := g.relation
	if !rel.HasWitnesses() {
		wopts := opts
		wopts.WithWitnesses = true
		var err error
		if rel, err = BuildRelation(ctx, g.automaton, wopts); err != nil {
			return nil, err
		}
	}
	return &witnessBuilder{
		g:     g,
		a:     g.automaton,
		rel:   rel,
		emb:   newEmbedding(g.automaton, rel),
		alpha: g.automaton.Alphabet(),
	}, nil
}

// duplicateKeyWord builds an accepted document whose object reads the key of
// first, then later the key of second.
func (w *witnessBuilder) duplicateKeyWord(first, second NodeID) ([]jsonvpa.Symbol, bool) {
	g := w.g
	prefix := g.shortestPath([]NodeID{first}, g.pred, func(n NodeID) bool { return g.nodes[n].Start == w.a.InitialLocation() })
	if prefix == nil {
		return nil, false
	}
	reverseNodes(prefix)
	middle := g.shortestPath(g.succ[first], g.succ, func(n NodeID) bool { return n == second })
	if middle == nil {
		return nil, false
	}
	var closeCtx jsonvpa.Location
	var exit jsonvpa.Location
	suffix := g.shortestPath([]NodeID{second}, g.succ, func(n NodeID) bool {
		l, p, ok := w.closingEmbedding(g.nodes[n])
		if ok {
			closeCtx, exit = l, p
		}
		return ok
	})
	if suffix == nil {
		return nil, false
	}

	path := append(append(prefix, middle...), suffix[1:]...)
	body := make([]jsonvpa.Symbol, 0, 4*len(path))
	for i, id := range path {
		if i > 0 {
			body = append(body, w.alpha.Comma)
		}
		word, ok := w.nodeWord(g.nodes[id])
		if !ok {
			return nil, false
		}
		body = append(body, word...)
	}

	pre, suf, ok := w.emb.wrap(closeCtx, exit)
	if !ok {
		return nil, false
	}
	out := make([]jsonvpa.Symbol, 0, len(pre)+len(body)+len(suf)+2)
	out = append(out, pre...)
	out = append(out, w.alpha.ObjectOpen)
	out = append(out, body...)
	out = append(out, w.alpha.ObjectClose)
	out = append(out, suf...)
	return out, true
}

// closingEmbedding finds a context in which n can close its object inside
// some accepted document.
func (w *witnessBuilder) closingEmbedding(n Node) (jsonvpa.Location, jsonvpa.Location, bool) {
	var ctxLoc, exit jsonvpa.Location
	found := false
	n.Closing.ForEach(func(x int) {
		if found {
			return
		}
		l := jsonvpa.Location(x)
		p, ok := w.a.ReturnSuccessor(n.Target, w.alpha.ObjectClose, w.a.EncodeStackSymbol(l, w.alpha.ObjectOpen))
		if ok && w.emb.embeddable(l, p) {
			ctxLoc, exit, found = l, p, true
		}
	})
	return ctxLoc, exit, found
}

// nodeWord returns key followed by a value word leading to n.Target.
func (w *witnessBuilder) nodeWord(n Node) ([]jsonvpa.Symbol, bool) {
	afterKey, ok := w.a.InternalSuccessor(n.Start, n.Key)
	if !ok {
		return nil, false
	}
	for _, v := range w.alpha.Primitives() {
		if t, ok := w.a.InternalSuccessor(afterKey, v); ok && t == n.Target {
			return []jsonvpa.Symbol{n.Key, v}, true
		}
	}
	init := w.a.InitialLocation()
	for _, c := range w.alpha.Calls() {
		ret, _ := w.alpha.Matching(c)
		top := w.a.EncodeStackSymbol(afterKey, c)
		var word []jsonvpa.Symbol
		w.rel.Targets(init).ForEach(func(q int) {
			if word != nil {
				return
			}
			if t, ok := w.a.ReturnSuccessor(jsonvpa.Location(q), ret, top); ok && t == n.Target {
				inner, _ := w.rel.Witness(init, jsonvpa.Location(q))
				word = append([]jsonvpa.Symbol{n.Key}, wrapWord(c, inner, ret)...)
			}
		})
		if word != nil {
			return word, true
		}
	}
	return nil, false
}

// shortestPath runs a breadth-first search over on-path nodes from roots
// along adj and returns the first path (roots first) ending in a goal node.
func (g *KeyGraph) shortestPath(roots []NodeID, adj [][]NodeID, goal func(NodeID) bool) []NodeID {
	parent := make(map[NodeID]NodeID, len(g.nodes))
	var queue []NodeID
	for _, r := range roots {
		if !g.onPath.Test(int(r)) {
			continue
		}
		if _, ok := parent[r]; ok {
			continue
		}
		parent[r] = -1
		queue = append(queue, r)
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if goal(n) {
			var path []NodeID
			for cur := n; cur != -1; cur = parent[cur] {
				path = append(path, cur)
			}
			reverseNodes(path)
			return path
		}
		for _, m := range adj[n] {
			if _, ok := parent[m]; ok || !g.onPath.Test(int(m)) {
				continue
			}
			parent[m] = n
			queue = append(queue, m)
		}
	}
	return nil
}

func reverseNodes(ns []NodeID) {
	for i, j := 0, len(ns)-1; i < j; i, j = i+1, j-1 {
		ns[i], ns[j] = ns[j], ns[i]
	}
}

// embedding answers which (context, exit) pairs occur around an object in
// some accepted document: the object is opened at context and the
// automaton is at exit right after it closes.
type embedding struct {
	a        jsonvpa.Automaton
	rel      *Relation
	contexts Bitset
	top      Bitset
	nested   []*nestedExit
}

// nestedExit records how exit location l continues: after reaching q by a
// well-matched word, ret pops the symbol pushed by call at caller, landing in
// parent, which is itself embeddable.
type nestedExit struct {
	parent jsonvpa.Location
	caller jsonvpa.Location
	call   jsonvpa.Symbol
	q      jsonvpa.Location
}

func newEmbedding(a jsonvpa.Automaton, rel *Relation) *embedding {
	init := a.InitialLocation()
	e := &embedding{
		a:        a,
		rel:      rel,
		contexts: rel.Targets(init),
		top:      NewBitset(a.Size()),
		nested:   make([]*nestedExit, a.Size()),
	}

	type exitRef struct {
		loc    jsonvpa.Location
		nested bool
	}
	var queue []exitRef
	for l := 0; l < a.Size(); l++ {
		if a.IsAccepting(jsonvpa.Location(l)) {
			e.top.Set(l)
			queue = append(queue, exitRef{loc: jsonvpa.Location(l)})
		}
	}

	alpha := a.Alphabet()
	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		callers := []jsonvpa.Location{init}
		if x.nested {
			callers = callers[:0]
			e.contexts.ForEach(func(c int) { callers = append(callers, jsonvpa.Location(c)) })
		}
		for _, caller := range callers {
			for _, c := range alpha.Calls() {
				ret, _ := alpha.Matching(c)
				top := a.EncodeStackSymbol(caller, c)
				for q := 0; q < a.Size(); q++ {
					t, ok := a.ReturnSuccessor(jsonvpa.Location(q), ret, top)
					if !ok || t != x.loc {
						continue
					}
					for p := 0; p < a.Size(); p++ {
						if e.nested[p] != nil || !rel.Contains(jsonvpa.Location(p), jsonvpa.Location(q)) {
							continue
						}
						e.nested[p] = &nestedExit{parent: x.loc, caller: caller, call: c, q: jsonvpa.Location(q)}
						queue = append(queue, exitRef{loc: jsonvpa.Location(p), nested: true})
					}
				}
			}
		}
	}
	return e
}

func (e *embedding) embeddable(opened, exit jsonvpa.Location) bool {
	if opened == e.a.InitialLocation() && e.top.Test(int(exit)) {
		return true
	}
	return e.contexts.Test(int(opened)) && e.nested[exit] != nil
}

// wrap returns the words to put before and after an object opened at
// opened and left at exit so that the whole document is accepted.
func (e *embedding) wrap(opened, exit jsonvpa.Location) (pre, suf []jsonvpa.Symbol, ok bool) {
	init := e.a.InitialLocation()
	if opened == init && e.top.Test(int(exit)) {
		return nil, nil, true
	}
	ne := e.nested[exit]
	if ne == nil || !e.contexts.Test(int(opened)) {
		return nil, nil, false
	}
	pre0, suf0, ok := e.wrap(ne.caller, ne.parent)
	if !ok {
		return nil, nil, false
	}
	ret, _ := e.a.Alphabet().Matching(ne.call)
	toContext, _ := e.rel.Witness(init, opened)
	toQ, _ := e.rel.Witness(exit, ne.q)

	pre = append(append(append([]jsonvpa.Symbol(nil), pre0...), ne.call), toContext...)
	suf = append(append(append([]jsonvpa.Symbol(nil), toQ...), ret), suf0...)
	return pre, suf, true
}
