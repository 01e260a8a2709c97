package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const schemaYAML = `type: object
required: [k1, k2]
properties:
  k1: {type: integer}
  k2: {type: boolean}
`

const automatonYAML = `keys: [k]
primitives: [int]
locations: 7
initial: 0
accepting: [6]
internal:
  - {from: 0, symbol: k, to: 1}
  - {from: 1, symbol: int, to: 2}
  - {from: 2, symbol: ",", to: 3}
  - {from: 3, symbol: k, to: 4}
  - {from: 4, symbol: int, to: 5}
returns:
  - {from: 2, symbol: "}", caller: 0, call: "{", to: 6}
  - {from: 5, symbol: "}", caller: 0, call: "{", to: 6}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.yaml", schemaYAML)
	docs := writeFile(t, dir, "docs.yaml", `documents:
  - name: canonical
    symbols: "{ k1 int , k2 true }"
    accept: true
  - name: swapped
    symbols: "{ k2 false , k1 int }"
    accept: true
  - name: missing
    symbols: "{ k1 int }"
    accept: false
`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--schema", schema, "--docs", docs, "--graph", "--permute"}, &stdout, &stderr)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr:\n%s\nstdout:\n%s", code, stderr.String(), stdout.String())
	}
	out := stdout.String()
	for _, want := range []string{"closes for", "swapped", "accept", "reject"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRun_ExpectationFails(t *testing.T) {
	dir := t.TempDir()
	schema := writeFile(t, dir, "schema.yaml", schemaYAML)
	docs := writeFile(t, dir, "docs.yaml", `documents:
  - symbols: "{ k1 int }"
    accept: true
`)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"-s", schema, "-d", docs}, &stdout, &stderr); code != exitMismatch {
		t.Errorf("expected exit code %d, got %d", exitMismatch, code)
	}
}

func TestRun_InvalidGraph(t *testing.T) {
	dir := t.TempDir()
	automaton := writeFile(t, dir, "a.yaml", automatonYAML)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--automaton", automaton}, &stdout, &stderr); code != exitInvalidGraph {
		t.Fatalf("expected exit code %d, got %d (stderr %s)", exitInvalidGraph, code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "witness: { k int , k int }") {
		t.Errorf("missing witness in output:\n%s", stdout.String())
	}
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != exitUsage {
		t.Errorf("expected exit code %d, got %d", exitUsage, code)
	}
	if code := run([]string{"--automaton", "missing.yaml"}, &stdout, &stderr); code != exitUsage {
		t.Errorf("expected exit code %d for a missing file, got %d", exitUsage, code)
	}
}

func TestRun_OpenAPI(t *testing.T) {
	dir := t.TempDir()
	oas := writeFile(t, dir, "openapi.yaml", `openapi: 3.0.0
info:
  title: Sample API
  version: 1.0.0
components:
  schemas:
    Flags:
      type: object
      x-jsonvpa-document: true
      required: [k1, k2]
      properties:
        k1: {type: integer}
        k2: {type: boolean}
`)
	docs := writeFile(t, dir, "docs.yaml", `documents:
  - symbols: "{ k2 true , k1 int }"
    accept: true
`)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"--openapi", oas, "--docs", docs, "--stats"}, &stdout, &stderr); code != exitOK {
		t.Fatalf("exit code %d, stderr:\n%s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "exact cover: 1 searches") {
		t.Errorf("missing statistics:\n%s", stdout.String())
	}
}
