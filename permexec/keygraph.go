package permexec

import (
	"context"
	"fmt"
	"sort"

	"github.com/speakeasy-api/jsonvpa"
)

// NodeID indexes a KeyGraph node.
type NodeID int

// Node states that reading Key from Start, then one complete value, can end
// in Target.
type Node struct {
	ID     NodeID
	Start  jsonvpa.Location
	Key    jsonvpa.Symbol
	Target jsonvpa.Location

	// Closing has bit l set iff Target returns on the object-close symbol
	// when the object was opened at location l.
	Closing Bitset
}

func (n Node) String() string {
	return fmt.Sprintf("#%d(%d -%s-> %d)", n.ID, n.Start, n.Key, n.Target)
}

// KeyGraph is the graph of key-value pairs of an automaton. An edge A -> B
// exists when the separator leads from A.Target to B.Start.
//
// A KeyGraph is immutable once built and safe for concurrent use.
type KeyGraph struct {
	automaton jsonvpa.Automaton
	relation  *Relation

	nodes    []Node
	succ     [][]NodeID
	pred     [][]NodeID
	starting []NodeID
	onPath   Bitset

	keyIndex    map[jsonvpa.Symbol]int
	keys        []jsonvpa.Symbol
	nodesByKey  [][]NodeID
	startsByKey []Bitset
}

// BuildKeyGraph derives the key graph of a from its reachability relation
// and checks that no accepting path reads a key twice. An ambiguous
// automaton yields an *InvalidGraphError.
func BuildKeyGraph(ctx context.Context, a jsonvpa.Automaton, rel *Relation, opts Options) (*KeyGraph, error) {
	if a == nil {
		return nil, ErrNilAutomaton
	}
	if rel == nil || !rel.Complete() {
		return nil, ErrIncompleteRelation
	}
	log := opts.logger().With(map[string]any{"phase": "keygraph"})

	g := &KeyGraph{
		automaton: a,
		relation:  rel,
		keyIndex:  make(map[jsonvpa.Symbol]int),
	}
	alpha := a.Alphabet()
	for i, k := range alpha.KeySymbols() {
		g.keyIndex[k] = i
		g.keys = append(g.keys, k)
	}
	g.nodesByKey = make([][]NodeID, len(g.keys))
	g.startsByKey = make([]Bitset, len(g.keys))

	if err := g.buildNodes(ctx); err != nil {
		return nil, err
	}
	g.buildEdges()
	g.markOnPath()

	log.With(map[string]any{
		"nodes":    len(g.nodes),
		"starting": len(g.starting),
		"onPath":   g.onPath.Count(),
	}).Infof("Key graph built")

	if err := g.checkValidity(ctx, opts); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *KeyGraph) buildNodes(ctx context.Context) error {
	a := g.automaton
	init := a.InitialLocation()
	size := a.Size()
	for s := 0; s < size; s++ {
		if err := ctx.Err(); err != nil {
			return abortErr("key graph", err)
		}
		start := jsonvpa.Location(s)
		for ki, key := range g.keys {
			afterKey, ok := a.InternalSuccessor(start, key)
			if !ok {
				continue
			}
			g.valueTargets(afterKey).ForEach(func(t int) {
				id := NodeID(len(g.nodes))
				n := Node{ID: id, Start: start, Key: key, Target: jsonvpa.Location(t), Closing: g.closingContexts(jsonvpa.Location(t))}
				g.nodes = append(g.nodes, n)
				g.nodesByKey[ki] = append(g.nodesByKey[ki], id)
				g.startsByKey[ki].Set(s)
				if start == init {
					g.starting = append(g.starting, id)
				}
			})
		}
	}
	return nil
}

// valueTargets returns the locations reachable from p by reading exactly one
// value: a primitive, or a call, a well-matched body and its matching return.
func (g *KeyGraph) valueTargets(p jsonvpa.Location) Bitset {
	a := g.automaton
	alpha := a.Alphabet()
	out := NewBitset(a.Size())
	for _, v := range alpha.Primitives() {
		if t, ok := a.InternalSuccessor(p, v); ok {
			out.Set(int(t))
		}
	}
	bodies := g.relation.Targets(a.InitialLocation())
	for _, c := range alpha.Calls() {
		ret, _ := alpha.Matching(c)
		top := a.EncodeStackSymbol(p, c)
		bodies.ForEach(func(q int) {
			if t, ok := a.ReturnSuccessor(jsonvpa.Location(q), ret, top); ok {
				out.Set(int(t))
			}
		})
	}
	return out
}

func (g *KeyGraph) closingContexts(t jsonvpa.Location) Bitset {
	a := g.automaton
	alpha := a.Alphabet()
	out := NewBitset(a.Size())
	for l := 0; l < a.Size(); l++ {
		if _, ok := a.ReturnSuccessor(t, alpha.ObjectClose, a.EncodeStackSymbol(jsonvpa.Location(l), alpha.ObjectOpen)); ok {
			out.Set(l)
		}
	}
	return out
}

func (g *KeyGraph) buildEdges() {
	a := g.automaton
	comma := a.Alphabet().Comma
	byStart := make(map[jsonvpa.Location][]NodeID)
	for _, n := range g.nodes {
		byStart[n.Start] = append(byStart[n.Start], n.ID)
	}
	g.succ = make([][]NodeID, len(g.nodes))
	g.pred = make([][]NodeID, len(g.nodes))
	for _, n := range g.nodes {
		next, ok := a.InternalSuccessor(n.Target, comma)
		if !ok {
			continue
		}
		for _, m := range byStart[next] {
			g.succ[n.ID] = append(g.succ[n.ID], m)
			g.pred[m] = append(g.pred[m], n.ID)
		}
	}
}

// markOnPath keeps the nodes that lie on some path from a starting node to
// a node that can close its object.
func (g *KeyGraph) markOnPath() {
	forward := g.reach(g.starting, g.succ, nil)

	var closers []NodeID
	for _, n := range g.nodes {
		if !n.Closing.Empty() {
			closers = append(closers, n.ID)
		}
	}
	backward := g.reach(closers, g.pred, nil)

	g.onPath = NewBitset(len(g.nodes))
	forward.ForEach(func(x int) {
		if backward.Test(x) {
			g.onPath.Set(x)
		}
	})
}

// reach returns every node reachable from roots (inclusive) along adj,
// staying inside within unless it is nil.
func (g *KeyGraph) reach(roots []NodeID, adj [][]NodeID, within *Bitset) Bitset {
	seen := NewBitset(len(g.nodes))
	queue := make([]NodeID, 0, len(roots))
	for _, r := range roots {
		if !seen.Test(int(r)) && (within == nil || within.Test(int(r))) {
			seen.Set(int(r))
			queue = append(queue, r)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, m := range adj[n] {
			if seen.Test(int(m)) || (within != nil && !within.Test(int(m))) {
				continue
			}
			seen.Set(int(m))
			queue = append(queue, m)
		}
	}
	return seen
}

// Automaton returns the automaton the graph was built from.
func (g *KeyGraph) Automaton() jsonvpa.Automaton { return g.automaton }

// Relation returns the relation the graph was built from.
func (g *KeyGraph) Relation() *Relation { return g.relation }

// Nodes returns every node, indexed by ID.
func (g *KeyGraph) Nodes() []Node { return g.nodes }

// Node returns the node with the given ID.
func (g *KeyGraph) Node(id NodeID) Node { return g.nodes[id] }

// Successors returns the nodes B with an edge id -> B.
func (g *KeyGraph) Successors(id NodeID) []NodeID { return g.succ[id] }

// StartingNodes returns the nodes whose start is the initial location.
func (g *KeyGraph) StartingNodes() []NodeID { return g.starting }

// OnAcceptingPath reports whether id lies on a path from a starting node to
// a node that can close its object.
func (g *KeyGraph) OnAcceptingPath(id NodeID) bool { return g.onPath.Test(int(id)) }

// Keys returns the key symbols of the alphabet in index order.
func (g *KeyGraph) Keys() []jsonvpa.Symbol { return g.keys }

// KeyIndex returns the dense index of key.
func (g *KeyGraph) KeyIndex(key jsonvpa.Symbol) (int, bool) {
	i, ok := g.keyIndex[key]
	return i, ok
}

// NodesReadingKey returns the IDs of the nodes labelled key.
func (g *KeyGraph) NodesReadingKey(key jsonvpa.Symbol) []NodeID {
	i, ok := g.keyIndex[key]
	if !ok {
		return nil
	}
	return g.nodesByKey[i]
}

// LocationsReadingKey returns the starts of the nodes labelled key.
func (g *KeyGraph) LocationsReadingKey(key jsonvpa.Symbol) Bitset {
	i, ok := g.keyIndex[key]
	if !ok {
		return Bitset{}
	}
	return g.startsByKey[i]
}

// SortedNodes returns the nodes ordered by (start, key, target).
func (g *KeyGraph) SortedNodes() []Node {
	out := append([]Node(nil), g.nodes...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.Target < b.Target
	})
	return out
}
