package schemavpa

import (
	"fmt"
	"io"
	"sort"

	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/sequencedmap"
	"gopkg.in/yaml.v3"
)

// StringType creates a string schema.
func StringType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeString)}
}

// NumberType creates a number schema.
func NumberType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNumber)}
}

// IntegerType creates an integer schema.
func IntegerType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeInteger)}
}

// BoolType creates a boolean schema.
func BoolType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeBoolean)}
}

// NullType creates a null schema.
func NullType() *oas3.Schema {
	return &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeNull)}
}

// ArrayType creates an array schema. A nil items schema allows any
// primitive element.
func ArrayType(items *oas3.Schema) *oas3.Schema {
	s := &oas3.Schema{Type: oas3.NewTypeFromString(oas3.SchemaTypeArray)}
	if items != nil {
		s.Items = oas3.NewJSONSchemaFromSchema[oas3.Referenceable](items)
	}
	return s
}

// BuildObject creates an object schema with the given properties, in sorted
// key order, and required keys.
func BuildObject(props map[string]*oas3.Schema, required []string) *oas3.Schema {
	propMap := sequencedmap.New[string, *oas3.JSONSchema[oas3.Referenceable]]()
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		propMap.Set(k, oas3.NewJSONSchemaFromSchema[oas3.Referenceable](props[k]))
	}
	required = append([]string(nil), required...)
	sort.Strings(required)

	return &oas3.Schema{
		Type:       oas3.NewTypeFromString(oas3.SchemaTypeObject),
		Properties: propMap,
		Required:   required,
	}
}

// schemaFile is the YAML form accepted by LoadSchema: the supported subset
// of JSON Schema keywords.
type schemaFile struct {
	Type       string                 `yaml:"type"`
	Properties map[string]*schemaFile `yaml:"properties"`
	Required   []string               `yaml:"required"`
	Items      *schemaFile            `yaml:"items"`
}

// LoadSchema reads a schema written in YAML (or JSON) using only the type,
// properties, required and items keywords.
func LoadSchema(r io.Reader) (*oas3.Schema, error) {
	var f schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return f.build("#")
}

func (f *schemaFile) build(path string) (*oas3.Schema, error) {
	switch oas3.SchemaType(f.Type) {
	case oas3.SchemaTypeString:
		return StringType(), nil
	case oas3.SchemaTypeNumber:
		return NumberType(), nil
	case oas3.SchemaTypeInteger:
		return IntegerType(), nil
	case oas3.SchemaTypeBoolean:
		return BoolType(), nil
	case oas3.SchemaTypeNull:
		return NullType(), nil
	case oas3.SchemaTypeArray:
		if f.Items == nil {
			return ArrayType(nil), nil
		}
		items, err := f.Items.build(path + "/items")
		if err != nil {
			return nil, err
		}
		return ArrayType(items), nil
	case oas3.SchemaTypeObject:
		props := make(map[string]*oas3.Schema, len(f.Properties))
		for name, p := range f.Properties {
			if p == nil {
				return nil, fmt.Errorf("%s/properties/%s: empty schema", path, name)
			}
			s, err := p.build(path + "/properties/" + name)
			if err != nil {
				return nil, err
			}
			props[name] = s
		}
		for _, r := range f.Required {
			if _, ok := props[r]; !ok {
				return nil, fmt.Errorf("%s: required property %q is not declared", path, r)
			}
		}
		return BuildObject(props, f.Required), nil
	case "":
		return &oas3.Schema{}, nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %q", path, f.Type)
	}
}
