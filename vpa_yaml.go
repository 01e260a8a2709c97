package jsonvpa

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// vpaFile is the on-disk YAML layout of a VPA.
type vpaFile struct {
	Keys       []Symbol       `yaml:"keys"`
	Primitives []Symbol       `yaml:"primitives"`
	Locations  int            `yaml:"locations"`
	Initial    Location       `yaml:"initial"`
	Accepting  []Location     `yaml:"accepting"`
	Internal   []internalYAML `yaml:"internal"`
	Returns    []returnYAML   `yaml:"returns"`
}

type internalYAML struct {
	From   Location `yaml:"from"`
	Symbol Symbol   `yaml:"symbol"`
	To     Location `yaml:"to"`
}

type returnYAML struct {
	From   Location `yaml:"from"`
	Symbol Symbol   `yaml:"symbol"`
	Caller Location `yaml:"caller"`
	Call   Symbol   `yaml:"call"`
	To     Location `yaml:"to"`
}

// LoadVPA decodes a VPA definition from r.
func LoadVPA(r io.Reader) (*VPA, error) {
	var f vpaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode automaton: %w", err)
	}
	return f.build()
}

// ParseVPAFile loads a VPA definition from the YAML file at path.
func ParseVPAFile(path string) (*VPA, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	v, err := LoadVPA(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func (f *vpaFile) build() (*VPA, error) {
	alpha, err := DefaultAlphabet(f.Keys, f.Primitives)
	if err != nil {
		return nil, fmt.Errorf("alphabet: %w", err)
	}
	if f.Locations <= 0 {
		return nil, fmt.Errorf("locations must be positive, got %d", f.Locations)
	}
	if int(f.Initial) < 0 || int(f.Initial) >= f.Locations {
		return nil, fmt.Errorf("initial location %d out of range [0,%d)", f.Initial, f.Locations)
	}
	v := NewVPA(alpha, f.Locations, f.Initial)
	for _, l := range f.Accepting {
		if !v.inRange(l) {
			return nil, fmt.Errorf("accepting location %d out of range [0,%d)", l, f.Locations)
		}
		v.SetAccepting(l, true)
	}
	for i, t := range f.Internal {
		if err := v.AddInternal(t.From, t.Symbol, t.To); err != nil {
			return nil, fmt.Errorf("internal[%d]: %w", i, err)
		}
	}
	for i, t := range f.Returns {
		if err := v.AddReturn(t.From, t.Symbol, t.Caller, t.Call, t.To); err != nil {
			return nil, fmt.Errorf("returns[%d]: %w", i, err)
		}
	}
	return v, nil
}

// MarshalYAML implements yaml.Marshaler using the same layout LoadVPA reads.
func (v *VPA) MarshalYAML() (any, error) {
	f := vpaFile{
		Keys:       v.alphabet.KeySymbols(),
		Primitives: v.alphabet.Primitives(),
		Locations:  v.Size(),
		Initial:    v.initial,
		Accepting:  v.AcceptingLocations(),
	}
	for _, t := range v.InternalTransitions() {
		f.Internal = append(f.Internal, internalYAML{From: t.From, Symbol: t.Symbol, To: t.To})
	}
	for _, t := range v.ReturnTransitions() {
		f.Returns = append(f.Returns, returnYAML{From: t.From, Symbol: t.Symbol, Caller: t.Caller, Call: t.Call, To: t.To})
	}
	return f, nil
}
