// Package jsonvpa models visibly-pushdown automata over an abstract JSON
// alphabet. The validation engine in permexec consumes automata only through
// the Automaton interface.
package jsonvpa

// Location is an automaton state, identified by a dense index in [0, Size()).
type Location int

// StackSymbol is the encoding of (location before a call, call symbol).
type StackSymbol int

// Automaton is the read-only view of a deterministic VPA.
//
// Reading a call symbol c from location l pushes EncodeStackSymbol(l, c) and
// moves to InitialLocation(); there is no call transition function.
type Automaton interface {
	Alphabet() *Alphabet
	Size() int
	InitialLocation() Location
	IsAccepting(l Location) bool
	InternalSuccessor(l Location, s Symbol) (Location, bool)
	EncodeStackSymbol(l Location, call Symbol) StackSymbol
	ReturnSuccessor(l Location, ret Symbol, top StackSymbol) (Location, bool)
}

// Accepts runs a on word and reports whether it ends in an accepting location
// with an empty stack.
func Accepts(a Automaton, word []Symbol) bool {
	alpha := a.Alphabet()
	cur := a.InitialLocation()
	var stack []StackSymbol
	for _, s := range word {
		switch alpha.Kind(s) {
		case KindCall:
			stack = append(stack, a.EncodeStackSymbol(cur, s))
			cur = a.InitialLocation()
		case KindReturn:
			if len(stack) == 0 {
				return false
			}
			next, ok := a.ReturnSuccessor(cur, s, stack[len(stack)-1])
			if !ok {
				return false
			}
			stack = stack[:len(stack)-1]
			cur = next
		case KindInternal:
			next, ok := a.InternalSuccessor(cur, s)
			if !ok {
				return false
			}
			cur = next
		default:
			return false
		}
	}
	return len(stack) == 0 && a.IsAccepting(cur)
}
