// Package patch applies the ordered transform pipeline to an OpenAPI
// document tree, producing a clean OpenAPI 3.1 document that matches the
// runtime REST behavior of the generated gateway.
//
// Transforms are grouped into files by concern:
//   - oas31.go      — 3.0 → 3.1 structural changes, servers/info injection
//   - streaming.go  — SSE streaming annotations
//   - responses.go  — status codes, redirects, plain text, error schemas
//   - security.go   — bearer auth scheme and per-operation overrides
//   - validation.go — proto validation constraints → JSON Schema
//   - cleanup.go    — tags, enums, inlining, orphan removal
package patch

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// UUIDPattern is the UUID regex injected into schema pattern fields.
const UUIDPattern = "^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$"

// UUIDExample is the example value injected next to UUID patterns.
const UUIDExample = "550e8400-e29b-41d4-a716-446655440000"

// DefaultErrorSchemaRef is the $ref used for the shared error response
// schema unless the project config overrides it.
const DefaultErrorSchemaRef = "#/components/schemas/ErrorResponse"

// httpMethods are the operation keys of a path item. Path items can also
// carry summary, description, parameters and servers keys; those are
// skipped so callbacks only see actual operations.
var httpMethods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

func isHTTPMethod(key string) bool {
	for _, m := range httpMethods {
		if key == m {
			return true
		}
	}
	return false
}

// asMap returns v as a mapping node, or nil.
func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asSlice returns v as a sequence node, or nil.
func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// asString returns v as a scalar string.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// getMap walks a chain of mapping keys, returning nil when any hop is
// missing or not a mapping.
func getMap(m map[string]any, keys ...string) map[string]any {
	cur := m
	for _, k := range keys {
		if cur == nil {
			return nil
		}
		cur = asMap(cur[k])
	}
	return cur
}

// forEachOperation calls f(path, method, operation) for every operation in
// the document.
func forEachOperation(doc map[string]any, f func(path, method string, op map[string]any)) {
	paths := getMap(doc, "paths")
	for path, pathItem := range paths {
		pm := asMap(pathItem)
		if pm == nil {
			continue
		}
		for method, operation := range pm {
			if !isHTTPMethod(method) {
				continue
			}
			if op := asMap(operation); op != nil {
				f(path, method, op)
			}
		}
	}
}

// requestBodyRef returns the $ref of an operation's JSON request body.
func requestBodyRef(op map[string]any) (string, bool) {
	schema := getMap(op, "requestBody", "content", "application/json", "schema")
	if schema == nil {
		return "", false
	}
	return asString(schema["$ref"])
}

// jsonContentWithSchemaRef builds a content object for application/json
// with a schema $ref.
func jsonContentWithSchemaRef(schemaRef string) map[string]any {
	return map[string]any{
		"application/json": map[string]any{
			"schema": map[string]any{"$ref": schemaRef},
		},
	}
}

// jsonResponseWithSchemaRef builds a response object with a description
// and an application/json schema $ref.
func jsonResponseWithSchemaRef(description, schemaRef string) map[string]any {
	return map[string]any{
		"description": description,
		"content":     jsonContentWithSchemaRef(schemaRef),
	}
}

// responseHeader builds a string-valued response header with a default.
func responseHeader(description, defaultValue string) map[string]any {
	return map[string]any{
		"description": description,
		"schema": map[string]any{
			"type":    "string",
			"default": defaultValue,
		},
	}
}

// collectEmptySchemaNames returns names of component schemas whose
// properties mapping is present but empty.
func collectEmptySchemaNames(doc map[string]any) []string {
	schemas := getMap(doc, "components", "schemas")
	var names []string
	for name, schema := range schemas {
		sm := asMap(schema)
		if sm == nil {
			continue
		}
		props, ok := sm["properties"]
		if !ok {
			continue
		}
		if pm := asMap(props); pm != nil && len(pm) == 0 {
			names = append(names, name)
		}
	}
	return names
}

// snakeToLowerCamelDotted camelizes every dot-separated segment of a
// name: "user_id.value" becomes "userId.value".
func snakeToLowerCamelDotted(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = strcase.ToLowerCamel(p)
	}
	return strings.Join(parts, ".")
}

// collectRefs walks a value tree and collects every $ref string.
func collectRefs(value any, refs map[string]bool) {
	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			if k == "$ref" {
				if s, ok := asString(child); ok {
					refs[s] = true
				}
			}
			collectRefs(child, refs)
		}
	case []any:
		for _, item := range v {
			collectRefs(item, refs)
		}
	}
}

// deepCopy clones a document subtree so per-operation edits cannot leak
// into the shared original.
func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

// schemaNameFromRef extracts the schema name from a components ref.
func schemaNameFromRef(ref string) (string, bool) {
	const prefix = "#/components/schemas/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return ref[len(prefix):], true
}
