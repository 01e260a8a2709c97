package jsonvpa

import (
	"fmt"
	"sort"
)

// ReturnTransition is one entry of a VPA's return table.
type ReturnTransition struct {
	From   Location
	Symbol Symbol
	Caller Location
	Call   Symbol
	To     Location
}

// InternalTransition is one entry of a VPA's internal table.
type InternalTransition struct {
	From   Location
	Symbol Symbol
	To     Location
}

type returnKey struct {
	symbol Symbol
	top    StackSymbol
}

// VPA is a table-driven deterministic visibly-pushdown automaton.
type VPA struct {
	alphabet  *Alphabet
	initial   Location
	accepting []bool
	internal  []map[Symbol]Location
	returns   []map[returnKey]Location
}

var _ Automaton = (*VPA)(nil)

// NewVPA creates an automaton with size locations and no transitions.
func NewVPA(alphabet *Alphabet, size int, initial Location) *VPA {
	if size <= 0 {
		panic("jsonvpa: VPA needs at least one location")
	}
	if int(initial) < 0 || int(initial) >= size {
		panic(fmt.Sprintf("jsonvpa: initial location %d out of range", initial))
	}
	v := &VPA{
		alphabet:  alphabet,
		initial:   initial,
		accepting: make([]bool, size),
		internal:  make([]map[Symbol]Location, size),
		returns:   make([]map[returnKey]Location, size),
	}
	for i := 0; i < size; i++ {
		v.internal[i] = make(map[Symbol]Location)
		v.returns[i] = make(map[returnKey]Location)
	}
	return v
}

func (v *VPA) Alphabet() *Alphabet         { return v.alphabet }
func (v *VPA) Size() int                   { return len(v.accepting) }
func (v *VPA) InitialLocation() Location   { return v.initial }
func (v *VPA) IsAccepting(l Location) bool { return v.inRange(l) && v.accepting[l] }

func (v *VPA) InternalSuccessor(l Location, s Symbol) (Location, bool) {
	if !v.inRange(l) {
		return 0, false
	}
	to, ok := v.internal[l][s]
	return to, ok
}

// EncodeStackSymbol returns l*|calls| + index(call). It is injective for the
// lifetime of v.
func (v *VPA) EncodeStackSymbol(l Location, call Symbol) StackSymbol {
	idx, ok := v.alphabet.CallIndex(call)
	if !ok {
		return -1
	}
	return StackSymbol(int(l)*len(v.alphabet.Calls()) + idx)
}

// DecodeStackSymbol inverts EncodeStackSymbol.
func (v *VPA) DecodeStackSymbol(top StackSymbol) (Location, Symbol, bool) {
	if top < 0 {
		return 0, "", false
	}
	calls := v.alphabet.Calls()
	l := Location(int(top) / len(calls))
	if !v.inRange(l) {
		return 0, "", false
	}
	return l, calls[int(top)%len(calls)], true
}

func (v *VPA) ReturnSuccessor(l Location, ret Symbol, top StackSymbol) (Location, bool) {
	if !v.inRange(l) {
		return 0, false
	}
	to, ok := v.returns[l][returnKey{symbol: ret, top: top}]
	return to, ok
}

// SetAccepting marks l as accepting or not.
func (v *VPA) SetAccepting(l Location, accepting bool) {
	v.mustRange(l)
	v.accepting[l] = accepting
}

// AddInternal adds from -s-> to. It returns an error if s is not an internal
// symbol or from already has a different successor on s.
func (v *VPA) AddInternal(from Location, s Symbol, to Location) error {
	if !v.inRange(from) || !v.inRange(to) {
		return fmt.Errorf("internal transition %d -%s-> %d: location out of range", from, s, to)
	}
	if v.alphabet.Kind(s) != KindInternal {
		return fmt.Errorf("internal transition %d -%s-> %d: %q is not an internal symbol", from, s, to, s)
	}
	if prev, ok := v.internal[from][s]; ok && prev != to {
		return fmt.Errorf("internal transition %d -%s-> %d: already leads to %d", from, s, to, prev)
	}
	v.internal[from][s] = to
	return nil
}

// AddReturn adds the return transition taken from location from on ret when
// the stack top was pushed by reading call at caller.
func (v *VPA) AddReturn(from Location, ret Symbol, caller Location, call Symbol, to Location) error {
	if !v.inRange(from) || !v.inRange(to) || !v.inRange(caller) {
		return fmt.Errorf("return transition %d -%s/(%d,%s)-> %d: location out of range", from, ret, caller, call, to)
	}
	if v.alphabet.Kind(ret) != KindReturn {
		return fmt.Errorf("return transition from %d: %q is not a return symbol", from, ret)
	}
	if v.alphabet.Kind(call) != KindCall {
		return fmt.Errorf("return transition from %d: %q is not a call symbol", from, call)
	}
	key := returnKey{symbol: ret, top: v.EncodeStackSymbol(caller, call)}
	if prev, ok := v.returns[from][key]; ok && prev != to {
		return fmt.Errorf("return transition %d -%s/(%d,%s)-> %d: already leads to %d", from, ret, caller, call, to, prev)
	}
	v.returns[from][key] = to
	return nil
}

// InternalTransitions lists the internal table in (from, symbol) order.
func (v *VPA) InternalTransitions() []InternalTransition {
	var out []InternalTransition
	for from, row := range v.internal {
		for s, to := range row {
			out = append(out, InternalTransition{From: Location(from), Symbol: s, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// ReturnTransitions lists the return table in (from, symbol, caller, call) order.
func (v *VPA) ReturnTransitions() []ReturnTransition {
	var out []ReturnTransition
	for from, row := range v.returns {
		for k, to := range row {
			caller, call, ok := v.DecodeStackSymbol(k.top)
			if !ok {
				continue
			}
			out = append(out, ReturnTransition{From: Location(from), Symbol: k.symbol, Caller: caller, Call: call, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Caller != b.Caller {
			return a.Caller < b.Caller
		}
		return a.Call < b.Call
	})
	return out
}

// AcceptingLocations lists the accepting locations in ascending order.
func (v *VPA) AcceptingLocations() []Location {
	var out []Location
	for l, ok := range v.accepting {
		if ok {
			out = append(out, Location(l))
		}
	}
	return out
}

// Clone returns a deep copy of v sharing the alphabet.
func (v *VPA) Clone() *VPA {
	c := NewVPA(v.alphabet, v.Size(), v.initial)
	copy(c.accepting, v.accepting)
	for l := range v.internal {
		for s, to := range v.internal[l] {
			c.internal[l][s] = to
		}
		for k, to := range v.returns[l] {
			c.returns[l][k] = to
		}
	}
	return c
}

// Accepts runs v on word.
func (v *VPA) Accepts(word []Symbol) bool { return Accepts(v, word) }

func (v *VPA) inRange(l Location) bool { return int(l) >= 0 && int(l) < len(v.accepting) }

func (v *VPA) mustRange(l Location) {
	if !v.inRange(l) {
		panic(fmt.Sprintf("jsonvpa: location %d out of range [0,%d)", l, len(v.accepting)))
	}
}

// RemoveInternal deletes the internal transition of from on s, if any.
func (v *VPA) RemoveInternal(from Location, s Symbol) {
	v.mustRange(from)
	delete(v.internal[from], s)
}
