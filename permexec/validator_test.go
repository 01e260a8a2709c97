package permexec

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/speakeasy-api/jsonvpa"
	"github.com/speakeasy-api/jsonvpa/pkg/symdoc"
)

func TestValidator_Flat(t *testing.T) {
	v := mustCompile(t, flatVPA(t))

	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"canonical order", "{ k1 int , k2 true }", true},
		{"swapped order", "{ k2 false , k1 int }", true},
		{"missing key", "{ k1 int }", false},
		{"missing other key", "{ k2 true }", false},
		{"duplicate key", "{ k1 int , k1 int }", false},
		{"duplicate after all keys", "{ k1 int , k2 true , k1 int }", false},
		{"duplicate last key", "{ k1 int , k2 true , k2 false }", false},
		{"wrong value", "{ k2 int , k1 int }", false},
		{"empty object", "{ }", false},
		{"empty input", "", false},
		{"array at top level", "[ ]", false},
		{"mismatched close", "{ k1 int , k2 true ]", false},
		{"unclosed", "{ k1 int , k2 true", false},
		{"trailing symbol", "{ k1 int , k2 true } ,", false},
		{"unknown key", "{ k3 int , k1 int }", false},
		{"trailing comma", "{ k1 int , k2 true , }", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Validate(context.Background(), doc(tt.doc))
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.doc, got, tt.want)
			}
			if v.Accepts(doc(tt.doc)) != tt.want {
				t.Errorf("Accepts(%q) disagrees with Validate", tt.doc)
			}
		})
	}
}

func TestValidator_Schema(t *testing.T) {
	v := mustCompile(t, nestedSchemaVPA(t))

	tests := []struct {
		doc  string
		want bool
	}{
		{"{ id int }", true},
		{"{ }", false},
		{"{ tags [ str ] }", false},
		{"{ tags [ str , str ] , id int }", true},
		{"{ tags [ ] , id int }", true},
		{"{ id int , tags [ int ] }", false},
		{"{ owner { name str } , id int }", true},
		{"{ owner { admin true , name str } , id int }", true},
		{"{ owner { admin true } , id int }", false},
		{"{ owner { name str , name str } , id int }", false},
		{"{ id int , items [ { admin false , name str } , { name str } ] }", true},
		{"{ id int , items [ { name str } , { admin false } ] }", false},
		{"{ id int , items [ { } ] }", false},
		{"{ items [ ] , id int , owner { name str } , tags [ ] }", true},
		{"{ id int , id int }", false},
		{"{ id int , owner [ ] }", false},
		{"{ id int , tags { } }", false},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			got, err := v.Validate(context.Background(), doc(tt.doc))
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if got != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.doc, got, tt.want)
			}
		})
	}
}

func TestValidator_ArraysKeepOrder(t *testing.T) {
	alpha := jsonvpa.MustDefaultAlphabet([]jsonvpa.Symbol{"a"}, []jsonvpa.Symbol{"int", "str"})
	// { a [ int , str ] } only.
	a := jsonvpa.NewVPA(alpha, 8, 0)
	mustInternal(t, a, 0, "a", 1)
	mustInternal(t, a, 0, "int", 3)
	mustInternal(t, a, 3, ",", 4)
	mustInternal(t, a, 4, "str", 5)
	if err := a.AddReturn(5, "]", 1, "[", 6); err != nil {
		t.Fatal(err)
	}
	if err := a.AddReturn(6, "}", 0, "{", 7); err != nil {
		t.Fatal(err)
	}
	a.SetAccepting(7, true)
	v := mustCompile(t, a)

	if !v.Accepts(doc("{ a [ int , str ] }")) {
		t.Error("expected the canonical document to be accepted")
	}
	if v.Accepts(doc("{ a [ str , int ] }")) {
		t.Error("array elements must not be reordered")
	}
}

// Every reordering of an accepted document is accepted, and every reordering
// of a rejected one is rejected.
func TestValidator_PermutationSoundness(t *testing.T) {
	a := nestedSchemaVPA(t)
	v := mustCompile(t, a)
	alpha := a.Alphabet()

	canonical := []string{
		"{ id int }",
		"{ id int , owner { admin false , name str } }",
		"{ id int , items [ { admin false , name str } , { name str } ] , owner { name str } , tags [ str ] }",
	}
	for _, c := range canonical {
		if !jsonvpa.Accepts(a, doc(c)) {
			t.Fatalf("fixture %q should be in canonical order", c)
		}
		perms, err := symdoc.Permutations(doc(c), alpha, 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range perms {
			if !v.Accepts(p) {
				t.Errorf("permutation %q of %q rejected", symdoc.Format(p), c)
			}
		}
	}

	rejected := []string{
		"{ id int , owner { admin false } }",
		"{ id int , tags [ str ] , tags [ ] }",
		"{ items [ { name str , admin str } ] , id int }",
	}
	for _, r := range rejected {
		perms, err := symdoc.Permutations(doc(r), alpha, 0)
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range perms {
			if v.Accepts(p) {
				t.Errorf("permutation %q of %q accepted", symdoc.Format(p), r)
			}
		}
	}
}

func TestValidator_ValidateAll(t *testing.T) {
	v := mustCompile(t, flatVPA(t))
	docs := [][]jsonvpa.Symbol{
		doc("{ k1 int , k2 true }"),
		doc("{ k2 true , k1 int }"),
		doc("{ k1 int }"),
		doc("{ }"),
	}
	got, err := v.ValidateAll(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]bool{true, true, false, false}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestValidator_CoverLimit(t *testing.T) {
	a := flatVPA(t)
	opts := testOptions()
	opts.MaxCoverStates = 1
	v, err := Compile(context.Background(), a, opts)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := v.Validate(context.Background(), doc("{ k2 true , k1 int }"))
	if !errors.Is(err, ErrCoverLimit) {
		t.Fatalf("expected ErrCoverLimit, got %v", err)
	}
	if ok {
		t.Error("an aborted run must not report acceptance")
	}
	if v.Accepts(doc("{ k2 true , k1 int }")) {
		t.Error("Accepts should treat an aborted run as a rejection")
	}

	if _, err := v.ValidateAll(context.Background(), [][]jsonvpa.Symbol{doc("{ k1 int , k2 true }")}); !errors.Is(err, ErrAborted) {
		t.Errorf("ValidateAll should propagate the abort, got %v", err)
	}
}

func TestRecompile(t *testing.T) {
	prev := mustCompile(t, flatVPA(t))

	next := flatVPA(t)
	next.RemoveInternal(4, "false")
	v, err := Recompile(context.Background(), prev, next, IdentityCorrespondence, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if !v.Accepts(doc("{ k2 true , k1 int }")) {
		t.Error("expected the swapped document to be accepted")
	}
	if v.Accepts(doc("{ k2 false , k1 int }")) {
		t.Error("false was removed from the automaton")
	}
	if !prev.Accepts(doc("{ k2 false , k1 int }")) {
		t.Error("the previous validator must be unaffected")
	}
}

func TestNewValidator_Errors(t *testing.T) {
	if _, err := NewValidator(nil, nil, testOptions()); !errors.Is(err, ErrNilAutomaton) {
		t.Errorf("expected ErrNilAutomaton, got %v", err)
	}
	if _, err := NewValidator(flatVPA(t), nil, testOptions()); !errors.Is(err, ErrNilKeyGraph) {
		t.Errorf("expected ErrNilKeyGraph, got %v", err)
	}
	if _, err := Compile(context.Background(), nil, testOptions()); !errors.Is(err, ErrNilAutomaton) {
		t.Errorf("expected ErrNilAutomaton, got %v", err)
	}
}
