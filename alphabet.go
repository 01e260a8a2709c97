package jsonvpa

import (
	"fmt"
	"sort"
)

// Symbol is one letter of a document's abstract symbol stream. Keys stand for
// a whole `"name":` token, primitives for a whole scalar value.
type Symbol string

// Structural symbols of the default JSON alphabet.
const (
	ObjectOpen  Symbol = "{"
	ObjectClose Symbol = "}"
	ArrayOpen   Symbol = "["
	ArrayClose  Symbol = "]"
	Comma       Symbol = ","
)

// SymbolKind is the visibly-pushdown class of a symbol.
type SymbolKind int

const (
	KindUnknown SymbolKind = iota
	KindInternal
	KindCall
	KindReturn
)

func (k SymbolKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindCall:
		return "call"
	case KindReturn:
		return "return"
	default:
		return "unknown"
	}
}

// Alphabet partitions symbols into internal, call and return symbols and
// records the JSON role of each internal symbol.
type Alphabet struct {
	ObjectOpen  Symbol
	ObjectClose Symbol
	ArrayOpen   Symbol
	ArrayClose  Symbol
	Comma       Symbol

	keys       []Symbol
	primitives []Symbol

	kinds     map[Symbol]SymbolKind
	isKey     map[Symbol]bool
	callIndex map[Symbol]int
}

// DefaultAlphabet returns the JSON alphabet over the given key and primitive
// value symbols, using { } [ ] and , as structural symbols.
func DefaultAlphabet(keys, primitives []Symbol) (*Alphabet, error) {
	a := &Alphabet{
		ObjectOpen:  ObjectOpen,
		ObjectClose: ObjectClose,
		ArrayOpen:   ArrayOpen,
		ArrayClose:  ArrayClose,
		Comma:       Comma,
		keys:        sortedSymbols(keys),
		primitives:  sortedSymbols(primitives),
	}
	if err := a.index(); err != nil {
		return nil, err
	}
	return a, nil
}

// MustDefaultAlphabet is like DefaultAlphabet but panics on error.
func MustDefaultAlphabet(keys, primitives []Symbol) *Alphabet {
	a, err := DefaultAlphabet(keys, primitives)
	if err != nil {
		panic(err)
	}
	return a
}

func (a *Alphabet) index() error {
	a.kinds = make(map[Symbol]SymbolKind)
	a.isKey = make(map[Symbol]bool, len(a.keys))
	a.callIndex = map[Symbol]int{a.ObjectOpen: 0, a.ArrayOpen: 1}

	add := func(s Symbol, k SymbolKind) error {
		if s == "" {
			return fmt.Errorf("empty %s symbol", k)
		}
		if prev, ok := a.kinds[s]; ok {
			return fmt.Errorf("symbol %q declared as both %s and %s", s, prev, k)
		}
		a.kinds[s] = k
		return nil
	}
	for _, s := range []Symbol{a.ObjectOpen, a.ArrayOpen} {
		if err := add(s, KindCall); err != nil {
			return err
		}
	}
	for _, s := range []Symbol{a.ObjectClose, a.ArrayClose} {
		if err := add(s, KindReturn); err != nil {
			return err
		}
	}
	if err := add(a.Comma, KindInternal); err != nil {
		return err
	}
	for _, s := range a.keys {
		if err := add(s, KindInternal); err != nil {
			return err
		}
		a.isKey[s] = true
	}
	for _, s := range a.primitives {
		if err := add(s, KindInternal); err != nil {
			return err
		}
	}
	return nil
}

// Kind reports the class of s, or KindUnknown when s is not in the alphabet.
func (a *Alphabet) Kind(s Symbol) SymbolKind {
	return a.kinds[s]
}

// Contains reports whether s belongs to the alphabet.
func (a *Alphabet) Contains(s Symbol) bool {
	_, ok := a.kinds[s]
	return ok
}

// IsKey reports whether s names an object key.
func (a *Alphabet) IsKey(s Symbol) bool { return a.isKey[s] }

// IsComma reports whether s is the separator.
func (a *Alphabet) IsComma(s Symbol) bool { return s == a.Comma }

// IsPrimitive reports whether s is an internal symbol standing for a scalar value.
func (a *Alphabet) IsPrimitive(s Symbol) bool {
	return a.kinds[s] == KindInternal && !a.isKey[s] && s != a.Comma
}

// Matching returns the return symbol closing call symbol c.
func (a *Alphabet) Matching(c Symbol) (Symbol, bool) {
	switch c {
	case a.ObjectOpen:
		return a.ObjectClose, true
	case a.ArrayOpen:
		return a.ArrayClose, true
	}
	return "", false
}

// CallIndex returns the dense index of call symbol c.
func (a *Alphabet) CallIndex(c Symbol) (int, bool) {
	i, ok := a.callIndex[c]
	return i, ok
}

// Internals returns every internal symbol: comma, keys, then primitives.
func (a *Alphabet) Internals() []Symbol {
	out := make([]Symbol, 0, 1+len(a.keys)+len(a.primitives))
	out = append(out, a.Comma)
	out = append(out, a.keys...)
	out = append(out, a.primitives...)
	return out
}

// Calls returns the call symbols in CallIndex order.
func (a *Alphabet) Calls() []Symbol { return []Symbol{a.ObjectOpen, a.ArrayOpen} }

// Returns returns the return symbols, matching Calls position by position.
func (a *Alphabet) Returns() []Symbol { return []Symbol{a.ObjectClose, a.ArrayClose} }

// KeySymbols returns the key symbols in sorted order.
func (a *Alphabet) KeySymbols() []Symbol { return append([]Symbol(nil), a.keys...) }

// Primitives returns the primitive value symbols in sorted order.
func (a *Alphabet) Primitives() []Symbol { return append([]Symbol(nil), a.primitives...) }

func sortedSymbols(in []Symbol) []Symbol {
	seen := make(map[Symbol]bool, len(in))
	out := make([]Symbol, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
