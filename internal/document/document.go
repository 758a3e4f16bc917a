// Package document parses and renders the OpenAPI document tree.
//
// The tree is a plain map[string]any so the patch phases can carry
// nonstandard keys (vendor x- extensions, interim "format: enum" markers)
// that a typed OpenAPI model would reject.
package document

import (
	"fmt"

	"github.com/goccy/go-yaml"
)

// ParseError reports malformed document text.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse document: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes an OpenAPI YAML document into a generic tree.
func Parse(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

// Render serializes the document tree back to YAML.
func Render(doc map[string]any) ([]byte, error) {
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	return out, nil
}
