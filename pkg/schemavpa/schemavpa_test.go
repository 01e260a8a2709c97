package schemavpa

import (
	"context"
	"strings"
	"testing"

	"github.com/speakeasy-api/jsonvpa"
	"github.com/speakeasy-api/openapi/jsonschema/oas3"
)

func words(s string) []jsonvpa.Symbol {
	var out []jsonvpa.Symbol
	for _, f := range strings.Fields(s) {
		out = append(out, jsonvpa.Symbol(f))
	}
	return out
}

func mustCompile(t *testing.T, s *oas3.Schema) *jsonvpa.VPA {
	t.Helper()
	v, err := Compile(s)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return v
}

func checkWords(t *testing.T, v *jsonvpa.VPA, accept, reject []string) {
	t.Helper()
	for _, w := range accept {
		if !v.Accepts(words(w)) {
			t.Errorf("expected %q to be accepted", w)
		}
	}
	for _, w := range reject {
		if v.Accepts(words(w)) {
			t.Errorf("expected %q to be rejected", w)
		}
	}
}

func TestCompile_FlatObject(t *testing.T) {
	v := mustCompile(t, BuildObject(map[string]*oas3.Schema{
		"k1": IntegerType(),
		"k2": BoolType(),
	}, []string{"k1", "k2"}))

	checkWords(t, v,
		[]string{
			"{ k1 int , k2 true }",
			"{ k1 int , k2 false }",
		},
		[]string{
			"{ k2 true , k1 int }",
			"{ k1 int }",
			"{ }",
			"{ k1 str , k2 true }",
			"{ k1 int , k2 true , k1 int }",
			"[ ]",
		})
}

func TestCompile_OptionalProperties(t *testing.T) {
	v := mustCompile(t, BuildObject(map[string]*oas3.Schema{
		"a": StringType(),
		"b": NumberType(),
		"c": NullType(),
	}, []string{"b"}))

	checkWords(t, v,
		[]string{
			"{ b int }",
			"{ b num }",
			"{ a str , b int }",
			"{ b num , c null }",
			"{ a str , b int , c null }",
		},
		[]string{
			"{ }",
			"{ a str }",
			"{ a str , c null }",
			"{ b int , }",
		})
}

func TestCompile_Nested(t *testing.T) {
	inner := BuildObject(map[string]*oas3.Schema{
		"a": IntegerType(),
		"b": StringType(),
	}, []string{"a"})
	v := mustCompile(t, BuildObject(map[string]*oas3.Schema{
		"a":    StringType(),
		"list": ArrayType(inner),
		"obj":  inner,
	}, []string{"list"}))

	checkWords(t, v,
		[]string{
			"{ list [ ] }",
			"{ list [ { a int } ] }",
			"{ a str , list [ { a int , b str } , { a int } ] , obj { a int } }",
		},
		[]string{
			"{ list [ { b str } ] }",
			"{ list [ int ] }",
			"{ list [ { a int } ] , obj { } }",
			"{ a int , list [ ] }",
		})
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name   string
		schema *oas3.Schema
	}{
		{"nil", nil},
		{"array root", ArrayType(StringType())},
		{"key clashes with primitive", BuildObject(map[string]*oas3.Schema{"int": StringType()}, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Compile(tt.schema); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestLoadSchema(t *testing.T) {
	s, err := LoadSchema(strings.NewReader(`
type: object
required: [id]
properties:
  id: {type: integer}
  tags:
    type: array
    items: {type: string}
`))
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	v := mustCompile(t, s)
	checkWords(t, v,
		[]string{"{ id int }", "{ id int , tags [ str , str ] }"},
		[]string{"{ tags [ ] }", "{ id int , tags [ int ] }"})

	if _, err := LoadSchema(strings.NewReader("type: object\nrequired: [missing]\n")); err == nil {
		t.Error("expected an error for an undeclared required property")
	}
	if _, err := LoadSchema(strings.NewReader("type: tuple\n")); err == nil {
		t.Error("expected an error for an unknown type")
	}
}

func TestLoadOpenAPI(t *testing.T) {
	oasYAML := `openapi: 3.0.0
info:
  title: Sample API
  version: 1.0.0
components:
  schemas:
    User:
      type: object
      x-jsonvpa-document: true
      required: [id]
      properties:
        id:
          type: integer
        name:
          type: string
    Product:
      type: object
      properties:
        name:
          type: string
`
	marked, err := LoadOpenAPI(context.Background(), strings.NewReader(oasYAML))
	if err != nil {
		t.Fatalf("LoadOpenAPI failed: %v", err)
	}
	if len(marked) != 1 {
		t.Fatalf("expected 1 marked schema, got %d", len(marked))
	}
	v := mustCompile(t, marked[0].Schema)
	checkWords(t, v,
		[]string{"{ id int }", "{ id int , name str }"},
		[]string{"{ name str }", "{ name str , id int }"})
}
