package schemavpa

import (
	"context"
	"fmt"
	"io"

	"github.com/speakeasy-api/openapi/jsonschema/oas3"
	"github.com/speakeasy-api/openapi/openapi"
)

// DocumentExtension marks the schemas of an OpenAPI document that describe
// documents to validate.
const DocumentExtension = "x-jsonvpa-document"

// MarkedSchema is a schema found by LoadOpenAPI.
type MarkedSchema struct {
	Location string
	Schema   *oas3.Schema
}

// LoadOpenAPI parses an OpenAPI document and returns, in document order,
// every schema carrying DocumentExtension.
func LoadOpenAPI(ctx context.Context, r io.Reader) ([]MarkedSchema, error) {
	doc, validationErrs, err := openapi.Unmarshal(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}
	if len(validationErrs) > 0 {
		return nil, fmt.Errorf("OpenAPI validation failed: %v", validationErrs[0])
	}

	var out []MarkedSchema
	for item := range openapi.Walk(ctx, doc) {
		err := item.Match(openapi.Matcher{
			Schema: func(schema *oas3.JSONSchema[oas3.Referenceable]) error {
				if schema.GetExtensions() == nil {
					return nil
				}
				if _, ok := schema.GetExtensions().Get(DocumentExtension); !ok {
					return nil
				}
				s := schema.GetLeft()
				if s == nil {
					return fmt.Errorf("%v: boolean schemas cannot describe documents", item.Location)
				}
				out = append(out, MarkedSchema{Location: fmt.Sprintf("%v", item.Location), Schema: s})
				return nil
			},
		})
		if err != nil {
			return nil, fmt.Errorf("walk: %w", err)
		}
	}
	return out, nil
}
