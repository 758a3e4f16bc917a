package patch

import (
	"strings"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
)

// flattenUUIDRefs replaces references to the UUID wrapper schema with
// inline string schemas and removes the wrapper itself.
func flattenUUIDRefs(doc map[string]any, uuidSchema string) {
	if uuidSchema == "" {
		return
	}
	uuidRef := "#/components/schemas/" + uuidSchema

	schemas := getMap(doc, "components", "schemas")
	if schemas == nil {
		return
	}
	for _, schema := range schemas {
		if sm := asMap(schema); sm != nil {
			flattenUUIDInProperties(sm, uuidRef)
		}
	}
	delete(schemas, uuidSchema)
}

func flattenUUIDInProperties(schema map[string]any, uuidRef string) {
	props := asMap(schema["properties"])
	for propName, prop := range props {
		pm := asMap(prop)
		if pm == nil || !isUUIDReference(pm, uuidRef) {
			continue
		}

		replacement := map[string]any{
			"type":    "string",
			"format":  "uuid",
			"pattern": UUIDPattern,
			"example": UUIDExample,
		}
		if desc, ok := asString(pm["description"]); ok {
			replacement["description"] = desc
		}
		props[propName] = replacement
	}
}

// isUUIDReference reports whether a property references the UUID wrapper
// schema, directly or through allOf.
func isUUIDReference(prop map[string]any, uuidRef string) bool {
	if ref, _ := asString(prop["$ref"]); ref == uuidRef {
		return true
	}
	for _, item := range asSlice(prop["allOf"]) {
		if m := asMap(item); m != nil {
			if ref, _ := asString(m["$ref"]); ref == uuidRef {
				return true
			}
		}
	}
	return false
}

// simplifyUUIDQueryParams renames dot-notation query parameters like
// "userId.value" to their flat base name and types them as UUID strings.
func simplifyUUIDQueryParams(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		for _, param := range asSlice(op["parameters"]) {
			p := asMap(param)
			if p == nil {
				continue
			}
			if in, _ := asString(p["in"]); in != "query" {
				continue
			}
			name, ok := asString(p["name"])
			if !ok {
				continue
			}
			base, found := strings.CutSuffix(name, ".value")
			if !found {
				continue
			}

			p["name"] = base
			p["description"] = "UUID of the " + strings.ReplaceAll(base, "Id", "")
			p["schema"] = map[string]any{
				"type":    "string",
				"format":  "uuid",
				"pattern": UUIDPattern,
				"example": UUIDExample,
			}
		}
	})
}

// flattenUUIDPathTemplates rewrites path keys like
// /v1/users/{userId.value} to /v1/users/{userId} and updates the
// corresponding path parameter names.
func flattenUUIDPathTemplates(doc map[string]any) {
	paths := getMap(doc, "paths")
	if paths == nil {
		return
	}

	var rewrites [][2]string
	for path := range paths {
		if strings.Contains(path, ".value}") {
			rewrites = append(rewrites, [2]string{path, strings.ReplaceAll(path, ".value}", "}")})
		}
	}

	for _, rw := range rewrites {
		oldPath, newPath := rw[0], rw[1]
		pathItem := asMap(paths[oldPath])
		if pathItem == nil {
			continue
		}
		delete(paths, oldPath)

		for _, opVal := range pathItem {
			op := asMap(opVal)
			if op == nil {
				continue
			}
			for _, param := range asSlice(op["parameters"]) {
				p := asMap(param)
				if p == nil {
					continue
				}
				if in, _ := asString(p["in"]); in != "path" {
					continue
				}
				if name, ok := asString(p["name"]); ok {
					if base, found := strings.CutSuffix(name, ".value"); found {
						p["name"] = base
					}
				}
			}
		}

		paths[newPath] = pathItem
	}
}

// isWriteOnlyField reports whether a lowercased field name holds a
// secret value. Suffix matching keeps boolean flags out:
// "currentpassword" is a secret, "haspassword" is a flag about one.
func isWriteOnlyField(lower string) bool {
	secrets := []string{"password", "secret", "credential"}
	boolPrefixes := []string{"has", "is", "needs", "requires", "supports"}

	for _, secret := range secrets {
		if lower == secret {
			return true
		}
		if prefix, found := strings.CutSuffix(lower, secret); found {
			for _, bp := range boolPrefixes {
				if prefix == bp {
					return false
				}
			}
			return true
		}
	}
	return false
}

// annotateFieldAccess marks fields writeOnly or readOnly based on naming
// conventions.
//
// writeOnly: names that are or end with password/secret/credential.
// readOnly: names ending with At or _at (createdAt, updatedAt).
// Extra patterns match as case-insensitive substrings. writeOnly is
// skipped on Response/Reply/Result schemas since fields like
// SetupMfaResponse.secret must be returned to the client.
func annotateFieldAccess(doc map[string]any, extraWriteOnly, extraReadOnly []string) {
	schemas := getMap(doc, "components", "schemas")

	containsAny := func(lower string, patterns []string) bool {
		for _, p := range patterns {
			if strings.Contains(lower, strings.ToLower(p)) {
				return true
			}
		}
		return false
	}

	for name, schema := range schemas {
		props := getMap(asMap(schema), "properties")
		isResponseSchema := strings.Contains(name, "Response") ||
			strings.Contains(name, "Reply") ||
			strings.Contains(name, "Result")

		for propName, prop := range props {
			pm := asMap(prop)
			if pm == nil {
				continue
			}
			lower := strings.ToLower(propName)

			isWriteOnly := isWriteOnlyField(lower) || containsAny(lower, extraWriteOnly)
			isReadOnly := strings.HasSuffix(propName, "At") ||
				strings.HasSuffix(propName, "_at") ||
				containsAny(lower, extraReadOnly)

			if isWriteOnly && !isResponseSchema {
				pm["writeOnly"] = true
			} else if isReadOnly {
				pm["readOnly"] = true
			}
		}
	}
}

const durationDescription = `Duration in seconds with 's' suffix (e.g., "300s").`

// annotateDurationFields rewrites proto Duration wrapper schemas to
// string type with an example, and inlines allOf or pattern-based
// Duration properties. Matches "Duration" or "*.Duration" schema names
// so user schemas like "SessionDuration" stay untouched.
func annotateDurationFields(doc map[string]any) {
	schemas := getMap(doc, "components", "schemas")
	if schemas == nil {
		return
	}

	var durationRefs []string
	for name, schema := range schemas {
		if name != "Duration" && !strings.HasSuffix(name, ".Duration") {
			continue
		}
		durationRefs = append(durationRefs, "#/components/schemas/"+name)

		if sm := asMap(schema); sm != nil {
			delete(sm, "properties")
			sm["type"] = "string"
			sm["example"] = "300s"
			if _, ok := sm["description"]; !ok {
				sm["description"] = durationDescription
			}
		}
	}

	isDurationRef := func(ref string) bool {
		for _, dr := range durationRefs {
			if dr == ref {
				return true
			}
		}
		return false
	}

	for _, schema := range schemas {
		props := getMap(asMap(schema), "properties")
		for _, prop := range props {
			pm := asMap(prop)
			if pm == nil {
				continue
			}

			isDurationAllOf := false
			for _, item := range asSlice(pm["allOf"]) {
				if m := asMap(item); m != nil {
					if ref, _ := asString(m["$ref"]); isDurationRef(ref) {
						isDurationAllOf = true
						break
					}
				}
			}

			pattern, _ := asString(pm["pattern"])
			isDurationPattern := strings.Contains(pattern, "0-9") && strings.Contains(pattern, "s")

			if !isDurationAllOf && !isDurationPattern {
				continue
			}

			// Simple $ref properties are left alone since the Duration
			// schema itself was rewritten above.
			delete(pm, "$ref")
			delete(pm, "allOf")
			pm["type"] = "string"
			pm["example"] = "300s"
			if _, ok := pm["description"]; !ok {
				pm["description"] = durationDescription
			}
		}
	}
}

// injectValidationConstraints applies discovered proto validation rules
// to component schema properties.
func injectValidationConstraints(doc map[string]any, constraints []discover.SchemaConstraints) {
	schemas := getMap(doc, "components", "schemas")
	if schemas == nil {
		return
	}

	for _, sc := range constraints {
		schemaMap := asMap(schemas[sc.Schema])
		if schemaMap == nil {
			continue
		}
		props := asMap(schemaMap["properties"])
		if props == nil {
			continue
		}

		var requiredFields []any
		for _, fc := range sc.Fields {
			if fc.Required {
				requiredFields = append(requiredFields, fc.Field)
			}
		}

		for _, fc := range sc.Fields {
			prop := asMap(props[fc.Field])
			if prop == nil {
				continue
			}

			if fc.IsNumeric {
				prop["type"] = "integer"
				delete(prop, "format")

				if fc.SignedMin != nil {
					prop["minimum"] = *fc.SignedMin
				} else if fc.Min != nil {
					prop["minimum"] = *fc.Min
				}
				if fc.SignedMax != nil {
					prop["maximum"] = *fc.SignedMax
				} else if fc.Max != nil {
					prop["maximum"] = *fc.Max
				}
			} else {
				if fc.Min != nil {
					prop["minLength"] = *fc.Min
				}
				if fc.Max != nil {
					prop["maxLength"] = *fc.Max
				}
			}

			if fc.Pattern != "" {
				prop["pattern"] = fc.Pattern
			}

			if len(fc.EnumValues) > 0 {
				variants := make([]any, len(fc.EnumValues))
				for i, v := range fc.EnumValues {
					variants[i] = v
				}
				prop["enum"] = variants
			}

			if fc.IsUUID {
				prop["format"] = "uuid"
				prop["pattern"] = UUIDPattern
				prop["example"] = UUIDExample
			}
		}

		if len(requiredFields) > 0 {
			schemaMap["required"] = requiredFields
		}
	}
}

// stripInfo records one operation whose body schema carries path-bound
// fields.
type stripInfo struct {
	path           string
	method         string
	schemaRef      string
	fieldsToRemove []string
}

// stripPathFieldsFromBody removes path-bound fields from request body
// schemas.
//
// Shared component schemas are never mutated. Each affected operation
// gets a stripped clone inlined in place of the $ref, so operations
// without path parameters keep referencing the original.
func stripPathFieldsFromBody(doc map[string]any) {
	var stripOps []stripInfo

	forEachOperation(doc, func(path, method string, op map[string]any) {
		var pathFields []string
		for _, param := range asSlice(op["parameters"]) {
			p := asMap(param)
			if p == nil {
				continue
			}
			if in, _ := asString(p["in"]); in != "path" {
				continue
			}
			name, ok := asString(p["name"])
			if !ok {
				continue
			}
			parent, _, _ := strings.Cut(name, ".")
			pathFields = append(pathFields, snakeToLowerCamelDotted(parent))
		}
		if len(pathFields) == 0 {
			return
		}

		if schemaRef, ok := requestBodyRef(op); ok {
			stripOps = append(stripOps, stripInfo{
				path:           path,
				method:         method,
				schemaRef:      schemaRef,
				fieldsToRemove: pathFields,
			})
		}
	})

	for _, info := range stripOps {
		schemaName, ok := schemaNameFromRef(info.schemaRef)
		if !ok {
			continue
		}
		original := getMap(doc, "components", "schemas")[schemaName]
		if original == nil {
			continue
		}

		schema := asMap(deepCopy(original))
		if schema == nil {
			continue
		}

		if props := asMap(schema["properties"]); props != nil {
			for _, field := range info.fieldsToRemove {
				delete(props, field)
			}
		}
		if required := asSlice(schema["required"]); required != nil {
			kept := required[:0]
			for _, v := range required {
				s, ok := asString(v)
				removed := false
				if ok {
					for _, f := range info.fieldsToRemove {
						if f == s {
							removed = true
							break
						}
					}
				}
				if !removed {
					kept = append(kept, v)
				}
			}
			if len(kept) == 0 {
				delete(schema, "required")
			} else {
				schema["required"] = kept
			}
		}

		mediaType := getMap(doc, "paths", info.path, info.method,
			"requestBody", "content", "application/json")
		if mediaType != nil {
			mediaType["schema"] = schema
		}
	}
}

// normalizePathForMatch strips .value suffixes from template variables,
// removes underscores and lowercases, so gnostic's inconsistent casing
// ({deviceId} but {user_id.value}) matches proto discovery's camelCase.
func normalizePathForMatch(path string) string {
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(path, ".value}", "}"), "_", ""))
}

func normalizeNameForMatch(name string) string {
	base, _ := strings.CutSuffix(name, ".value")
	return strings.ToLower(strings.ReplaceAll(base, "_", ""))
}

// enrichPathParams applies proto-discovered constraints to path
// parameters: UUID typing, string length bounds, descriptions, and
// removal of UNSPECIFIED enum sentinels.
func enrichPathParams(doc map[string]any, pathParams []discover.PathParamInfo) {
	forEachOperation(doc, func(path, _ string, op map[string]any) {
		params := asSlice(op["parameters"])
		if params == nil {
			return
		}

		pathNormalized := normalizePathForMatch(path)
		var protoInfo *discover.PathParamInfo
		for i := range pathParams {
			if normalizePathForMatch(pathParams[i].Path) == pathNormalized {
				protoInfo = &pathParams[i]
				break
			}
		}

		for _, param := range params {
			p := asMap(param)
			if p == nil {
				continue
			}
			if in, _ := asString(p["in"]); in != "path" {
				continue
			}
			name, _ := asString(p["name"])
			nameNormalized := normalizeNameForMatch(name)

			var constraint *discover.PathParamConstraint
			if protoInfo != nil {
				for i := range protoInfo.Params {
					if normalizeNameForMatch(protoInfo.Params[i].Name) == nameNormalized {
						constraint = &protoInfo.Params[i]
						break
					}
				}
			}

			if constraint != nil && constraint.IsUUID {
				p["schema"] = map[string]any{
					"type":    "string",
					"format":  "uuid",
					"pattern": UUIDPattern,
					"example": UUIDExample,
				}
				p["description"] = "Resource UUID"
				continue
			}

			if constraint != nil {
				if constraint.Min != nil || constraint.Max != nil {
					schema := map[string]any{"type": "string"}
					if constraint.Min != nil {
						schema["minLength"] = *constraint.Min
					}
					if constraint.Max != nil {
						schema["maxLength"] = *constraint.Max
					}
					p["schema"] = schema
				}
				if constraint.Description != "" {
					p["description"] = constraint.Description
				}
			}

			if schema := asMap(p["schema"]); schema != nil {
				if enumVals := asSlice(schema["enum"]); enumVals != nil {
					kept := enumVals[:0]
					for _, v := range enumVals {
						if s, ok := asString(v); ok && strings.HasSuffix(s, "_UNSPECIFIED") {
							continue
						}
						kept = append(kept, v)
					}
					schema["enum"] = kept
				}
			}
		}
	})
}
