// Package schemavpa compiles a restricted JSON Schema into a visibly
// pushdown automaton that reads every object's properties in sorted order.
//
// Supported keywords: type (object, array, string, number, integer, boolean,
// null, or a list of them with at most one container type), properties,
// required and items. Additional properties are not allowed.
//
// Primitive values are abstracted to the symbols Int, Num, Str, True, False
// and Null; a number accepts Int and Num.
package schemavpa

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/speakeasy-api/jsonvpa"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
)

// Primitive value symbols.
const (
	Int   jsonvpa.Symbol = "int"
	Num   jsonvpa.Symbol = "num"
	Str   jsonvpa.Symbol = "str"
	True  jsonvpa.Symbol = "true"
	False jsonvpa.Symbol = "false"
	Null  jsonvpa.Symbol = "null"
)

// Primitives lists every primitive value symbol.
var Primitives = []jsonvpa.Symbol{Int, Num, Str, True, False, Null}

type containerKind int

const (
	objectContainer containerKind = iota
	arrayContainer
)

// valueRule describes what may appear where a value is expected.
type valueRule struct {
	prims     map[jsonvpa.Symbol]bool
	container int // -1 when no container value is allowed
}

type property struct {
	key      jsonvpa.Symbol
	required bool
	value    valueRule
}

type container struct {
	kind  containerKind
	props []property // objects, sorted by key
	item  valueRule  // arrays
}

type posKind int

const (
	posStart posKind = iota
	posAfterKey
	posAfterValue
	posAfterComma
	posPreDoc
	posDone
)

// pos is a position of the per-container content automaton.
type pos struct {
	c    int
	kind posKind
	idx  int
}

type compiler struct {
	containers []container
	byPointer  map[*oas3.Schema]int
	keys       map[jsonvpa.Symbol]bool
	root       int

	alpha   *jsonvpa.Alphabet
	states  [][]pos
	stateID map[string]int
}

// Compile builds the automaton for documents whose top-level value is an
// instance of root, which must be an object schema.
func Compile(root *oas3.Schema) (*jsonvpa.VPA, error) {
	if root == nil {
		return nil, fmt.Errorf("schema is nil")
	}
	c := &compiler{
		byPointer: make(map[*oas3.Schema]int),
		keys:      make(map[jsonvpa.Symbol]bool),
		stateID:   make(map[string]int),
	}
	rule, err := c.value(root, "#")
	if err != nil {
		return nil, err
	}
	if rule.container < 0 || c.containers[rule.container].kind != objectContainer {
		return nil, fmt.Errorf("root schema must be an object")
	}
	c.root = rule.container

	keys := make([]jsonvpa.Symbol, 0, len(c.keys))
	for k := range c.keys {
		keys = append(keys, k)
	}
	if c.alpha, err = jsonvpa.DefaultAlphabet(keys, Primitives); err != nil {
		return nil, fmt.Errorf("alphabet: %w", err)
	}
	return c.determinize()
}

func (c *compiler) value(s *oas3.Schema, path string) (valueRule, error) {
	rule := valueRule{prims: make(map[jsonvpa.Symbol]bool), container: -1}
	types := s.GetType()
	if len(types) == 0 {
		for _, p := range Primitives {
			rule.prims[p] = true
		}
		return rule, nil
	}
	for _, t := range types {
		switch t {
		case oas3.SchemaTypeString:
			rule.prims[Str] = true
		case oas3.SchemaTypeInteger:
			rule.prims[Int] = true
		case oas3.SchemaTypeNumber:
			rule.prims[Int] = true
			rule.prims[Num] = true
		case oas3.SchemaTypeBoolean:
			rule.prims[True] = true
			rule.prims[False] = true
		case oas3.SchemaTypeNull:
			rule.prims[Null] = true
		case oas3.SchemaTypeObject, oas3.SchemaTypeArray:
			if rule.container >= 0 {
				return rule, fmt.Errorf("%s: at most one of object and array may be allowed", path)
			}
			id, err := c.container(s, t == oas3.SchemaTypeObject, path)
			if err != nil {
				return rule, err
			}
			rule.container = id
		default:
			return rule, fmt.Errorf("%s: unsupported type %q", path, t)
		}
	}
	return rule, nil
}

func (c *compiler) container(s *oas3.Schema, object bool, path string) (int, error) {
	if id, ok := c.byPointer[s]; ok {
		return id, nil
	}
	id := len(c.containers)
	c.byPointer[s] = id
	c.containers = append(c.containers, container{kind: arrayContainer})

	if !object {
		item := valueRule{prims: make(map[jsonvpa.Symbol]bool), container: -1}
		if s.Items != nil && s.Items.Left != nil {
			var err error
			if item, err = c.value(s.Items.Left, path+"/items"); err != nil {
				return 0, err
			}
		} else {
			for _, p := range Primitives {
				item.prims[p] = true
			}
		}
		c.containers[id].item = item
		return id, nil
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	var props []property
	if s.Properties != nil {
		for name, prop := range s.Properties.All() {
			if prop == nil || prop.Left == nil {
				return 0, fmt.Errorf("%s/properties/%s: boolean schemas are not supported", path, name)
			}
			rule, err := c.value(prop.Left, path+"/properties/"+name)
			if err != nil {
				return 0, err
			}
			key := jsonvpa.Symbol(name)
			c.keys[key] = true
			props = append(props, property{key: key, required: required[name], value: rule})
		}
	}
	sort.Slice(props, func(i, j int) bool { return props[i].key < props[j].key })
	c.containers[id] = container{kind: objectContainer, props: props}
	return id, nil
}

// step returns the successor of p on internal symbol s.
func (c *compiler) step(p pos, s jsonvpa.Symbol) (pos, bool) {
	if p.kind == posPreDoc || p.kind == posDone {
		return pos{}, false
	}
	ct := c.containers[p.c]
	if ct.kind == arrayContainer {
		switch p.kind {
		case posStart, posAfterComma:
			if ct.item.prims[s] {
				return pos{c: p.c, kind: posAfterValue}, true
			}
		case posAfterValue:
			if s == c.alpha.Comma {
				return pos{c: p.c, kind: posAfterComma}, true
			}
		}
		return pos{}, false
	}

	switch p.kind {
	case posStart, posAfterComma:
		last := -1
		if p.kind == posAfterComma {
			last = p.idx
		}
		for m := last + 1; m < len(ct.props); m++ {
			if ct.props[m].key == s {
				return pos{c: p.c, kind: posAfterKey, idx: m}, true
			}
			if ct.props[m].required {
				break
			}
		}
	case posAfterKey:
		if ct.props[p.idx].value.prims[s] {
			return pos{c: p.c, kind: posAfterValue, idx: p.idx}, true
		}
	case posAfterValue:
		if s == c.alpha.Comma && p.idx+1 < len(ct.props) {
			return pos{c: p.c, kind: posAfterComma, idx: p.idx}, true
		}
	}
	return pos{}, false
}

// closes reports whether container content may end at p.
func (c *compiler) closes(p pos) bool {
	if p.kind == posPreDoc || p.kind == posDone {
		return false
	}
	ct := c.containers[p.c]
	if ct.kind == arrayContainer {
		return p.kind == posStart || p.kind == posAfterValue
	}
	from := -1
	switch p.kind {
	case posStart:
	case posAfterValue:
		from = p.idx
	default:
		return false
	}
	for m := from + 1; m < len(ct.props); m++ {
		if ct.props[m].required {
			return false
		}
	}
	return true
}

// callee returns the container a call at p opens and where p resumes after
// it closes.
func (c *compiler) callee(p pos) (int, pos, bool) {
	switch p.kind {
	case posPreDoc:
		return c.root, pos{kind: posDone}, true
	case posDone:
		return 0, pos{}, false
	}
	ct := c.containers[p.c]
	if ct.kind == arrayContainer {
		if (p.kind == posStart || p.kind == posAfterComma) && ct.item.container >= 0 {
			return ct.item.container, pos{c: p.c, kind: posAfterValue}, true
		}
		return 0, pos{}, false
	}
	if p.kind == posAfterKey && ct.props[p.idx].value.container >= 0 {
		return ct.props[p.idx].value.container, pos{c: p.c, kind: posAfterValue, idx: p.idx}, true
	}
	return 0, pos{}, false
}

func (c *compiler) callSymbol(id int) jsonvpa.Symbol {
	if c.containers[id].kind == objectContainer {
		return c.alpha.ObjectOpen
	}
	return c.alpha.ArrayOpen
}

func (c *compiler) intern(set []pos) (int, bool) {
	sort.Slice(set, func(i, j int) bool {
		a, b := set[i], set[j]
		if a.c != b.c {
			return a.c < b.c
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		return a.idx < b.idx
	})
	out := set[:0]
	for i, p := range set {
		if i == 0 || p != set[i-1] {
			out = append(out, p)
		}
	}
	var sb strings.Builder
	for _, p := range out {
		sb.WriteString(strconv.Itoa(p.c))
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(int(p.kind)))
		sb.WriteByte('.')
		sb.WriteString(strconv.Itoa(p.idx))
		sb.WriteByte(';')
	}
	key := sb.String()
	if id, ok := c.stateID[key]; ok {
		return id, false
	}
	id := len(c.states)
	c.stateID[key] = id
	c.states = append(c.states, append([]pos(nil), out...))
	return id, true
}

type internalEdge struct {
	from, to int
	symbol   jsonvpa.Symbol
}

type returnEdge struct {
	from, caller, to int
	call             jsonvpa.Symbol
}

// determinize runs a subset construction over content positions. After a
// call every container may start, so the initial state holds every start
// position; return transitions pick the resumption matching the caller.
func (c *compiler) determinize() (*jsonvpa.VPA, error) {
	initial := []pos{{kind: posPreDoc}}
	for id := range c.containers {
		initial = append(initial, pos{c: id, kind: posStart})
	}
	c.intern(initial)

	var internals []internalEdge
	returns := make(map[[3]int]returnEdge)
	done := 0
	for {
		for ; done < len(c.states); done++ {
			for _, s := range c.alpha.Internals() {
				var next []pos
				for _, p := range c.states[done] {
					if q, ok := c.step(p, s); ok {
						next = append(next, q)
					}
				}
				if len(next) == 0 {
					continue
				}
				to, _ := c.intern(next)
				internals = append(internals, internalEdge{from: done, symbol: s, to: to})
			}
		}

		added := false
		for from := 0; from < len(c.states); from++ {
			for caller := 0; caller < len(c.states); caller++ {
				for ci, call := range c.alpha.Calls() {
					k := [3]int{from, caller, ci}
					if _, ok := returns[k]; ok {
						continue
					}
					target := c.resume(c.states[from], c.states[caller], call)
					if len(target) == 0 {
						continue
					}
					to, isNew := c.intern(target)
					returns[k] = returnEdge{from: from, caller: caller, call: call, to: to}
					added = added || isNew
				}
			}
		}
		if !added && done == len(c.states) {
			break
		}
	}

	v := jsonvpa.NewVPA(c.alpha, len(c.states), 0)
	for id, set := range c.states {
		for _, p := range set {
			if p.kind == posDone {
				v.SetAccepting(jsonvpa.Location(id), true)
			}
		}
	}
	for _, e := range internals {
		if err := v.AddInternal(jsonvpa.Location(e.from), e.symbol, jsonvpa.Location(e.to)); err != nil {
			return nil, err
		}
	}
	keys := make([][3]int, 0, len(returns))
	for k := range returns {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		for x := 0; x < 3; x++ {
			if keys[i][x] != keys[j][x] {
				return keys[i][x] < keys[j][x]
			}
		}
		return false
	})
	for _, k := range keys {
		e := returns[k]
		ret, _ := c.alpha.Matching(e.call)
		if err := v.AddReturn(jsonvpa.Location(e.from), ret, jsonvpa.Location(e.caller), e.call, jsonvpa.Location(e.to)); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// resume returns where the callers in callerSet continue once content ends
// in contentSet, for containers opened by call.
func (c *compiler) resume(contentSet, callerSet []pos, call jsonvpa.Symbol) []pos {
	closed := make(map[int]bool)
	for _, p := range contentSet {
		if c.closes(p) {
			closed[p.c] = true
		}
	}
	if len(closed) == 0 {
		return nil
	}
	var out []pos
	for _, p := range callerSet {
		id, next, ok := c.callee(p)
		if !ok || !closed[id] || c.callSymbol(id) != call {
			continue
		}
		out = append(out, next)
	}
	return out
}
