// Package symdoc reads and writes symbol documents: whitespace separated
// symbol streams such as "{ k1 int , k2 true }", plus expected verdicts.
package symdoc

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/speakeasy-api/jsonvpa"
	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned when a symbol stream is not a well-nested
// sequence of values.
var ErrMalformed = errors.New("malformed symbol document")

// Document is one named symbol stream with an optional expected verdict.
type Document struct {
	Name    string
	Symbols []jsonvpa.Symbol
	// Expect is nil when the file gives no verdict.
	Expect *bool
}

// Parse splits s on whitespace.
func Parse(s string) []jsonvpa.Symbol {
	fields := strings.Fields(s)
	out := make([]jsonvpa.Symbol, len(fields))
	for i, f := range fields {
		out[i] = jsonvpa.Symbol(f)
	}
	return out
}

// Format joins symbols with single spaces.
func Format(symbols []jsonvpa.Symbol) string {
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = string(s)
	}
	return strings.Join(parts, " ")
}

type documentFile struct {
	Documents []struct {
		Name    string `yaml:"name"`
		Symbols string `yaml:"symbols"`
		Accept  *bool  `yaml:"accept"`
	} `yaml:"documents"`
}

// LoadFile reads a YAML file of the form
//
//	documents:
//	  - name: swapped keys
//	    symbols: "{ k2 true , k1 int }"
//	    accept: true
func LoadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raw documentFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	docs := make([]Document, len(raw.Documents))
	for i, d := range raw.Documents {
		name := d.Name
		if name == "" {
			name = fmt.Sprintf("document %d", i+1)
		}
		docs[i] = Document{Name: name, Symbols: Parse(d.Symbols), Expect: d.Accept}
	}
	return docs, nil
}

// value is a parsed symbol document: a primitive, an object or an array.
type value struct {
	prim  jsonvpa.Symbol
	open  jsonvpa.Symbol // empty for primitives
	keys  []jsonvpa.Symbol
	items []*value
}

type parser struct {
	alpha *jsonvpa.Alphabet
	in    []jsonvpa.Symbol
	pos   int
}

func (p *parser) peek() (jsonvpa.Symbol, bool) {
	if p.pos >= len(p.in) {
		return "", false
	}
	return p.in[p.pos], true
}

func (p *parser) value() (*value, error) {
	s, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("%w: unexpected end at %d", ErrMalformed, p.pos)
	}
	p.pos++
	switch s {
	case p.alpha.ObjectOpen, p.alpha.ArrayOpen:
	case p.alpha.ObjectClose, p.alpha.ArrayClose, p.alpha.Comma:
		return nil, fmt.Errorf("%w: unexpected %s at %d", ErrMalformed, s, p.pos-1)
	default:
		if !p.alpha.IsPrimitive(s) {
			return nil, fmt.Errorf("%w: %s is not a value at %d", ErrMalformed, s, p.pos-1)
		}
		return &value{prim: s}, nil
	}

	v := &value{open: s}
	closer, _ := p.alpha.Matching(s)
	if next, ok := p.peek(); ok && next == closer {
		p.pos++
		return v, nil
	}
	for {
		if s == p.alpha.ObjectOpen {
			key, ok := p.peek()
			if !ok {
				return nil, fmt.Errorf("%w: missing key at %d", ErrMalformed, p.pos)
			}
			if !p.alpha.IsKey(key) {
				return nil, fmt.Errorf("%w: expected key at %d, got %s", ErrMalformed, p.pos, key)
			}
			p.pos++
			v.keys = append(v.keys, key)
		}
		item, err := p.value()
		if err != nil {
			return nil, err
		}
		v.items = append(v.items, item)

		next, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("%w: unclosed %s", ErrMalformed, s)
		}
		p.pos++
		switch next {
		case p.alpha.Comma:
		case closer:
			return v, nil
		default:
			return nil, fmt.Errorf("%w: unexpected %s at %d", ErrMalformed, next, p.pos-1)
		}
	}
}

// Permutations returns every document obtained from doc by reordering the
// key-value pairs of its objects, at every depth. Array elements keep their
// order. doc itself comes first. At most limit documents are returned when
// limit > 0.
func Permutations(doc []jsonvpa.Symbol, alpha *jsonvpa.Alphabet, limit int) ([][]jsonvpa.Symbol, error) {
	p := &parser{alpha: alpha, in: doc}
	root, err := p.value()
	if err != nil {
		return nil, err
	}
	if p.pos != len(doc) {
		return nil, fmt.Errorf("%w: trailing symbols at %d", ErrMalformed, p.pos)
	}
	e := &expander{alpha: alpha, limit: limit}
	return e.expand(root), nil
}

type expander struct {
	alpha *jsonvpa.Alphabet
	limit int
}

func (e *expander) full(n int) bool { return e.limit > 0 && n >= e.limit }

func (e *expander) expand(v *value) [][]jsonvpa.Symbol {
	if v.open == "" {
		return [][]jsonvpa.Symbol{{v.prim}}
	}
	closer, _ := e.alpha.Matching(v.open)

	// Each element expands independently; objects additionally permute
	// their pairs.
	parts := make([][][]jsonvpa.Symbol, len(v.items))
	for i, item := range v.items {
		sub := e.expand(item)
		if v.open == e.alpha.ObjectOpen {
			for j := range sub {
				sub[j] = append([]jsonvpa.Symbol{v.keys[i]}, sub[j]...)
			}
		}
		parts[i] = sub
	}

	orders := [][]int{identity(len(v.items))}
	if v.open == e.alpha.ObjectOpen {
		orders = permutations(len(v.items))
	}

	var out [][]jsonvpa.Symbol
	for _, order := range orders {
		combos := [][]jsonvpa.Symbol{{v.open}}
		for n, idx := range order {
			var next [][]jsonvpa.Symbol
			for _, prefix := range combos {
				for _, part := range parts[idx] {
					w := append([]jsonvpa.Symbol(nil), prefix...)
					if n > 0 {
						w = append(w, e.alpha.Comma)
					}
					next = append(next, append(w, part...))
					if e.full(len(next)) {
						break
					}
				}
				if e.full(len(next)) {
					break
				}
			}
			combos = next
		}
		for _, w := range combos {
			out = append(out, append(w, closer))
			if e.full(len(out)) {
				return out
			}
		}
	}
	return out
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// permutations lists the orderings of 0..n-1, identity first (Heap's
// algorithm).
func permutations(n int) [][]int {
	a := identity(n)
	out := [][]int{append([]int(nil), a...)}
	c := make([]int, n)
	for i := 0; i < n; {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			out = append(out, append([]int(nil), a...))
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
	return out
}
