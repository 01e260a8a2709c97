package jsonvpa

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

const flatYAML = `
keys: [k1, k2]
primitives: [int, "true", "false"]
locations: 7
initial: 0
accepting: [6]
internal:
  - {from: 0, symbol: k1, to: 1}
  - {from: 1, symbol: int, to: 2}
  - {from: 2, symbol: ",", to: 3}
  - {from: 3, symbol: k2, to: 4}
  - {from: 4, symbol: "true", to: 5}
  - {from: 4, symbol: "false", to: 5}
returns:
  - {from: 5, symbol: "}", caller: 0, call: "{", to: 6}
`

func split(s string) []Symbol {
	var out []Symbol
	for _, f := range strings.Fields(s) {
		out = append(out, Symbol(f))
	}
	return out
}

func TestLoadVPA(t *testing.T) {
	v, err := LoadVPA(strings.NewReader(flatYAML))
	if err != nil {
		t.Fatalf("LoadVPA failed: %v", err)
	}
	if v.Size() != 7 || v.InitialLocation() != 0 {
		t.Fatalf("unexpected shape: size %d, initial %d", v.Size(), v.InitialLocation())
	}

	tests := []struct {
		word string
		want bool
	}{
		{"{ k1 int , k2 true }", true},
		{"{ k1 int , k2 false }", true},
		{"{ k2 true , k1 int }", false},
		{"{ k1 int }", false},
		{"{ k1 int , k2 true", false},
		{"{ k1 int , k2 true ]", false},
		{"{ k1 int , k2 nope }", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := v.Accepts(split(tt.word)); got != tt.want {
			t.Errorf("Accepts(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}
}

func TestLoadVPA_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "keys: [a]\nlocations: 1\nbogus: 1\n"},
		{"no locations", "keys: [a]\n"},
		{"initial out of range", "keys: [a]\nlocations: 1\ninitial: 3\n"},
		{"key is structural", "keys: [\"{\"]\nlocations: 1\n"},
		{"key is primitive", "keys: [a]\nprimitives: [a]\nlocations: 1\n"},
		{"bad internal symbol", "keys: [a]\nlocations: 2\ninternal:\n  - {from: 0, symbol: \"{\", to: 1}\n"},
		{"internal conflict", "keys: [a]\nlocations: 3\ninternal:\n  - {from: 0, symbol: a, to: 1}\n  - {from: 0, symbol: a, to: 2}\n"},
		{"return to unknown location", "keys: [a]\nlocations: 2\nreturns:\n  - {from: 0, symbol: \"}\", caller: 0, call: \"{\", to: 9}\n"},
		{"return with wrong call", "keys: [a]\nlocations: 2\nreturns:\n  - {from: 0, symbol: \"}\", caller: 0, call: a, to: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadVPA(strings.NewReader(tt.yaml)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestVPA_MarshalYAML(t *testing.T) {
	v, err := LoadVPA(strings.NewReader(flatYAML))
	if err != nil {
		t.Fatal(err)
	}
	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back, err := LoadVPA(strings.NewReader(string(out)))
	if err != nil {
		t.Fatalf("reloading marshalled automaton failed: %v\n%s", err, out)
	}
	if diff := cmp.Diff(v.InternalTransitions(), back.InternalTransitions()); diff != "" {
		t.Errorf("internal transitions differ (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(v.ReturnTransitions(), back.ReturnTransitions()); diff != "" {
		t.Errorf("return transitions differ (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(v.AcceptingLocations(), back.AcceptingLocations()); diff != "" {
		t.Errorf("accepting locations differ (-want +got):\n%s", diff)
	}
}

func TestVPA_StackSymbols(t *testing.T) {
	alpha := MustDefaultAlphabet([]Symbol{"a"}, nil)
	v := NewVPA(alpha, 3, 0)
	for l := Location(0); l < 3; l++ {
		for _, c := range alpha.Calls() {
			top := v.EncodeStackSymbol(l, c)
			gl, gc, ok := v.DecodeStackSymbol(top)
			if !ok || gl != l || gc != c {
				t.Errorf("Decode(Encode(%d,%s)) = (%d,%s,%v)", l, c, gl, gc, ok)
			}
		}
	}
	if v.EncodeStackSymbol(0, "a") != -1 {
		t.Error("encoding a non-call symbol should fail")
	}
	if _, _, ok := v.DecodeStackSymbol(99); ok {
		t.Error("decoding an out-of-range stack symbol should fail")
	}
}

func TestAlphabet(t *testing.T) {
	alpha := MustDefaultAlphabet([]Symbol{"b", "a"}, []Symbol{"int"})
	if diff := cmp.Diff([]Symbol{",", "a", "b", "int"}, alpha.Internals()); diff != "" {
		t.Errorf("Internals mismatch (-want +got):\n%s", diff)
	}
	for s, want := range map[Symbol]SymbolKind{
		"{": KindCall, "]": KindReturn, ",": KindInternal, "a": KindInternal, "x": KindUnknown,
	} {
		if got := alpha.Kind(s); got != want {
			t.Errorf("Kind(%s) = %s, want %s", s, got, want)
		}
	}
	if m, ok := alpha.Matching("["); !ok || m != "]" {
		t.Errorf("Matching([) = %s, %v", m, ok)
	}
	if !alpha.IsKey("a") || alpha.IsKey("int") || !alpha.IsPrimitive("int") {
		t.Error("key/primitive classification is wrong")
	}
}
