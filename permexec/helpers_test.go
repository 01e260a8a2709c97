package permexec

import (
	"context"
	"sort"
	"testing"

	"github.com/speakeasy-api/jsonvpa"
	"github.com/speakeasy-api/jsonvpa/pkg/schemavpa"
	"github.com/speakeasy-api/jsonvpa/pkg/symdoc"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
)

// flatVPA reads { k1 int , k2 bool } in that order only:
//
//	0 -k1-> 1 -int-> 2 -,-> 3 -k2-> 4 -true|false-> 5, 5 -}/(0,{)-> 6
func flatVPA(t *testing.T) *jsonvpa.VPA {
	t.Helper()
	alpha := jsonvpa.MustDefaultAlphabet(
		[]jsonvpa.Symbol{"k1", "k2"},
		[]jsonvpa.Symbol{"int", "true", "false"},
	)
	v := jsonvpa.NewVPA(alpha, 7, 0)
	mustInternal(t, v, 0, "k1", 1)
	mustInternal(t, v, 1, "int", 2)
	mustInternal(t, v, 2, ",", 3)
	mustInternal(t, v, 3, "k2", 4)
	mustInternal(t, v, 4, "true", 5)
	mustInternal(t, v, 4, "false", 5)
	if err := v.AddReturn(5, "}", 0, "{", 6); err != nil {
		t.Fatal(err)
	}
	v.SetAccepting(6, true)
	return v
}

// duplicateKeyVPA accepts { k int } and { k int , k int }.
func duplicateKeyVPA(t *testing.T) *jsonvpa.VPA {
	t.Helper()
	alpha := jsonvpa.MustDefaultAlphabet([]jsonvpa.Symbol{"k"}, []jsonvpa.Symbol{"int"})
	v := jsonvpa.NewVPA(alpha, 7, 0)
	mustInternal(t, v, 0, "k", 1)
	mustInternal(t, v, 1, "int", 2)
	mustInternal(t, v, 2, ",", 3)
	mustInternal(t, v, 3, "k", 4)
	mustInternal(t, v, 4, "int", 5)
	for _, from := range []jsonvpa.Location{2, 5} {
		if err := v.AddReturn(from, "}", 0, "{", 6); err != nil {
			t.Fatal(err)
		}
	}
	v.SetAccepting(6, true)
	return v
}

// branchingKeyVPA reads k from location 0 and branches on its value:
//
//	0 -k-> 1 -int-> 2 -}/(0,{)-> 7
//	         -str-> 3 -,-> 4 -j-> 5 -int-> 6 -}/(0,{)-> 7
//
// Both k nodes start at 0, but only the int branch can close the object
// right away.
func branchingKeyVPA(t *testing.T) *jsonvpa.VPA {
	t.Helper()
	alpha := jsonvpa.MustDefaultAlphabet([]jsonvpa.Symbol{"k", "j"}, []jsonvpa.Symbol{"int", "str"})
	v := jsonvpa.NewVPA(alpha, 8, 0)
	mustInternal(t, v, 0, "k", 1)
	mustInternal(t, v, 1, "int", 2)
	mustInternal(t, v, 1, "str", 3)
	mustInternal(t, v, 3, ",", 4)
	mustInternal(t, v, 4, "j", 5)
	mustInternal(t, v, 5, "int", 6)
	for _, from := range []jsonvpa.Location{2, 6} {
		if err := v.AddReturn(from, "}", 0, "{", 7); err != nil {
			t.Fatal(err)
		}
	}
	v.SetAccepting(7, true)
	return v
}

func mustInternal(t *testing.T, v *jsonvpa.VPA, from jsonvpa.Location, s jsonvpa.Symbol, to jsonvpa.Location) {
	t.Helper()
	if err := v.AddInternal(from, s, to); err != nil {
		t.Fatal(err)
	}
}

// nestedSchemaVPA compiles
//
//	{ id: integer (required), tags: [string], owner: { name: string (required), admin: boolean } }
func nestedSchemaVPA(t *testing.T) *jsonvpa.VPA {
	t.Helper()
	owner := schemavpa.BuildObject(map[string]*oas3.Schema{
		"name":  schemavpa.StringType(),
		"admin": schemavpa.BoolType(),
	}, []string{"name"})
	root := schemavpa.BuildObject(map[string]*oas3.Schema{
		"id":    schemavpa.IntegerType(),
		"tags":  schemavpa.ArrayType(schemavpa.StringType()),
		"owner": owner,
		"items": schemavpa.ArrayType(owner),
	}, []string{"id"})
	v, err := schemavpa.Compile(root)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return v
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Logger = NopLogger()
	return opts
}

func mustCompile(t *testing.T, a jsonvpa.Automaton) *Validator {
	t.Helper()
	v, err := Compile(context.Background(), a, testOptions())
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return v
}

func doc(s string) []jsonvpa.Symbol { return symdoc.Parse(s) }

// sortPairs orders pairs by source then reached.
func sortPairs(ps []Pair) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Source != ps[j].Source {
			return ps[i].Source < ps[j].Source
		}
		return ps[i].Reached < ps[j].Reached
	})
}
