package patch

import (
	"strings"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
)

// populateOperationSummaries fills in summary from the first meaningful
// description line on operations that have none. Swagger UI shows
// summary in the collapsed endpoint list; without one the full
// description is displayed, which can be verbose.
func populateOperationSummaries(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		if s, ok := asString(op["summary"]); ok && s != "" {
			return
		}
		desc, ok := asString(op["description"])
		if !ok {
			return
		}
		if summary := extractFirstLine(desc); summary != "" {
			op["summary"] = summary
		}
	})
}

// extractFirstLine returns the first non-empty, non-separator line with
// any trailing period stripped.
func extractFirstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		return strings.TrimSuffix(trimmed, ".")
	}
	return ""
}

func isSeparatorLine(s string) bool {
	for _, c := range s {
		if c != '=' {
			return false
		}
	}
	return true
}

// cleanTagDescriptions keeps only the first meaningful line of each tag
// description. Proto service comments often carry separator lines,
// checklists and flow diagrams that clutter the Swagger UI tag header.
func cleanTagDescriptions(doc map[string]any) {
	for _, tag := range asSlice(doc["tags"]) {
		tagMap := asMap(tag)
		if tagMap == nil {
			continue
		}
		desc, ok := asString(tagMap["description"])
		if !ok {
			continue
		}
		tagMap["description"] = extractTagSummary(desc)
	}
}

func extractTagSummary(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isSeparatorLine(trimmed) {
			continue
		}
		return trimmed
	}
	return strings.TrimSpace(raw)
}

// stripUnspecifiedFromQueryEnums removes the proto zero-value sentinel
// (*_UNSPECIFIED = 0) from parameter schemas and component schema
// properties, including array item enums.
func stripUnspecifiedFromQueryEnums(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		for _, param := range asSlice(op["parameters"]) {
			p := asMap(param)
			if p == nil {
				continue
			}
			in, _ := asString(p["in"])
			if in != "query" && in != "path" {
				continue
			}
			if schema := asMap(p["schema"]); schema != nil {
				stripUnspecifiedEnum(schema)
				if items := asMap(schema["items"]); items != nil {
					stripUnspecifiedEnum(items)
				}
			}
		}
	})

	schemas := getMap(doc, "components", "schemas")
	for _, schema := range schemas {
		props := getMap(asMap(schema), "properties")
		for _, prop := range props {
			pm := asMap(prop)
			if pm == nil {
				continue
			}
			stripUnspecifiedEnum(pm)
			if items := asMap(pm["items"]); items != nil {
				stripUnspecifiedEnum(items)
			}
		}
	}
}

func stripUnspecifiedEnum(schema map[string]any) {
	enumVals := asSlice(schema["enum"])
	if enumVals == nil {
		return
	}
	kept := enumVals[:0]
	for _, v := range enumVals {
		if s, ok := asString(v); ok {
			if s == "unspecified" || strings.HasSuffix(s, "_UNSPECIFIED") || strings.HasSuffix(s, "_unspecified") {
				continue
			}
		}
		kept = append(kept, v)
	}
	schema["enum"] = kept
}

// rewriteEnumValues replaces raw proto enum value names with their
// prefix-stripped spelling, both on the targeted schema properties from
// discovery and globally on inline parameter enums.
func rewriteEnumValues(doc map[string]any, meta *discover.Metadata) {
	if len(meta.EnumRewrites) > 0 {
		schemas := getMap(doc, "components", "schemas")
		for _, rewrite := range meta.EnumRewrites {
			prop := getMap(asMap(schemas[rewrite.Schema]), "properties", rewrite.Field)
			if prop == nil {
				continue
			}

			values := make([]any, len(rewrite.Values))
			for i, v := range rewrite.Values {
				values[i] = v
			}

			// Scalar field
			if _, ok := prop["enum"]; ok {
				prop["enum"] = values
			}
			// Repeated field
			if items := asMap(prop["items"]); items != nil {
				if _, ok := items["enum"]; ok {
					items["enum"] = values
				}
			}
		}
	}

	if len(meta.EnumValueMap) > 0 {
		rewriteInlineEnums(doc, meta.EnumValueMap)
	}
}

// rewriteInlineEnums walks the whole tree and rewrites enum array values
// using the raw-to-stripped map.
func rewriteInlineEnums(value any, valueMap map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		if enumVals := asSlice(v["enum"]); enumVals != nil {
			for i, val := range enumVals {
				if raw, ok := asString(val); ok {
					if stripped, ok := valueMap[raw]; ok {
						enumVals[i] = stripped
					}
				}
			}
		}
		for _, child := range v {
			rewriteInlineEnums(child, valueMap)
		}
	case []any:
		for _, item := range v {
			rewriteInlineEnums(item, valueMap)
		}
	}
}

// markUnimplementedOperations flags operations that currently return
// UNIMPLEMENTED: x-not-implemented, a description notice, and a 501
// response entry.
func markUnimplementedOperations(doc map[string]any, unimplementedOps []string, errorSchemaRef string) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		opID, _ := asString(op["operationId"])
		if !containsString(unimplementedOps, opID) {
			return
		}

		op["x-not-implemented"] = true

		existing, _ := asString(op["description"])
		if !strings.HasPrefix(existing, "⚠️") {
			op["description"] = "⚠️ **Not yet implemented** — returns gRPC UNIMPLEMENTED.\n\n" + existing
		}

		if responses := getMap(op, "responses"); responses != nil {
			if _, ok := responses["501"]; !ok {
				responses["501"] = jsonResponseWithSchemaRef("Not Implemented", errorSchemaRef)
			}
		}
	})
}

// markDeprecatedOperations sets deprecated: true on matching operations,
// which renders as strikethrough in Swagger UI.
func markDeprecatedOperations(doc map[string]any, deprecatedOps []string) {
	if len(deprecatedOps) == 0 {
		return
	}
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		opID, _ := asString(op["operationId"])
		if containsString(deprecatedOps, opID) {
			op["deprecated"] = true
		}
	})
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// removeEmptyRequestBodies drops requestBody from operations whose
// request schema has no properties.
func removeEmptyRequestBodies(doc map[string]any) {
	emptySchemas := collectEmptySchemaNames(doc)

	forEachOperation(doc, func(_, _ string, op map[string]any) {
		ref, ok := requestBodyRef(op)
		if !ok {
			return
		}
		for _, name := range emptySchemas {
			if strings.HasSuffix(ref, name) {
				delete(op, "requestBody")
				return
			}
		}
	})
}

// removeEmptyInlinedRequestBodies drops requestBody entries whose
// inlined schema lost all properties to path field stripping.
func removeEmptyInlinedRequestBodies(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		schema := getMap(op, "requestBody", "content", "application/json", "schema")
		if schema == nil {
			return
		}
		props, ok := schema["properties"]
		if !ok {
			return
		}
		if pm := asMap(props); pm != nil && len(pm) == 0 {
			delete(op, "requestBody")
		}
	})
}

// removeUnusedEmptySchemas prunes empty-property component schemas that
// no $ref points at anymore.
func removeUnusedEmptySchemas(doc map[string]any) {
	empty := collectEmptySchemaNames(doc)
	if len(empty) == 0 {
		return
	}

	referenced := map[string]bool{}
	collectRefs(doc, referenced)

	schemas := getMap(doc, "components", "schemas")
	for _, name := range empty {
		if !referenced["#/components/schemas/"+name] {
			delete(schemas, name)
		}
	}
}

// removeFormatEnum strips the nonstandard format: enum that gnostic
// attaches to enum-typed fields. Not a valid JSON Schema format value.
func removeFormatEnum(doc map[string]any) {
	stripFormatEnumRecursive(doc)
}

func stripFormatEnumRecursive(value any) {
	switch v := value.(type) {
	case map[string]any:
		if format, _ := asString(v["format"]); format == "enum" {
			delete(v, "format")
		}
		for _, child := range v {
			stripFormatEnumRecursive(child)
		}
	case []any:
		for _, item := range v {
			stripFormatEnumRecursive(item)
		}
	}
}

// inlineRequestBodies replaces request body $refs with the full inline
// schema, resolves nested references, injects heuristic examples, and
// prunes schemas that end up orphaned. Example values are best-effort
// guesses from field names and types.
func inlineRequestBodies(doc map[string]any) {
	snapshot := asMap(deepCopy(getMap(doc, "components", "schemas")))
	if snapshot == nil {
		snapshot = map[string]any{}
	}

	forEachOperation(doc, func(_, _ string, op map[string]any) {
		ref, ok := requestBodyRef(op)
		if !ok {
			return
		}
		schemaName, ok := schemaNameFromRef(ref)
		if !ok {
			return
		}
		original := asMap(snapshot[schemaName])
		if original == nil {
			return
		}

		bodySchema := asMap(deepCopy(original))
		desc, hasDesc := asString(bodySchema["description"])
		delete(bodySchema, "description")

		resolveNestedRefs(bodySchema, snapshot)
		example := generateSchemaExample(bodySchema, snapshot)

		rb := asMap(op["requestBody"])
		if rb == nil {
			return
		}
		if hasDesc {
			rb["description"] = desc
		}
		mediaType := getMap(rb, "content", "application/json")
		if mediaType == nil {
			return
		}

		injectPropertyExamples(bodySchema, example)
		mediaType["schema"] = bodySchema
	})

	removeOrphanedSchemas(doc)
}

// injectPropertyExamples moves values from a flat example object into
// per-property example annotations, recursing into nested objects, so
// Swagger UI shows them inline in the Schema tab.
func injectPropertyExamples(schema map[string]any, example any) {
	props := asMap(schema["properties"])
	exampleMap := asMap(example)
	if props == nil || exampleMap == nil {
		return
	}

	for name, prop := range props {
		pm := asMap(prop)
		exVal, ok := exampleMap[name]
		if pm == nil || !ok {
			continue
		}

		// UUID fields from validation injection already carry examples.
		if _, has := pm["example"]; has {
			continue
		}

		if _, nested := pm["properties"]; nested {
			injectPropertyExamples(pm, exVal)
		} else {
			pm["example"] = exVal
		}
	}
}

// resolveNestedRefs inlines allOf: [{$ref: ...}] properties using the
// schema snapshot, preserving the property's own description.
func resolveNestedRefs(schema, snapshot map[string]any) {
	props := asMap(schema["properties"])
	for name, prop := range props {
		pm := asMap(prop)
		if pm == nil {
			continue
		}

		allOf := asSlice(pm["allOf"])
		if len(allOf) == 0 {
			continue
		}
		first := asMap(allOf[0])
		if first == nil {
			continue
		}
		ref, ok := asString(first["$ref"])
		if !ok {
			continue
		}
		refName, ok := schemaNameFromRef(ref)
		if !ok {
			continue
		}
		resolved := asMap(snapshot[refName])
		if resolved == nil {
			continue
		}

		replacement := asMap(deepCopy(resolved))
		if desc, ok := asString(pm["description"]); ok {
			replacement["description"] = desc
		}
		props[name] = replacement
	}
}

// generateSchemaExample builds an example object from a schema's
// properties.
func generateSchemaExample(schema, snapshot map[string]any) map[string]any {
	props := asMap(schema["properties"])
	example := map[string]any{}
	for name, prop := range props {
		example[name] = generateFieldExample(name, prop, snapshot)
	}
	return example
}

// generateFieldExample produces an example value for one field from its
// name, type and constraints. Always returns something, falling back to
// a generic "string".
func generateFieldExample(name string, prop any, snapshot map[string]any) any {
	pm := asMap(prop)
	fieldType, _ := asString(pm["type"])
	format, _ := asString(pm["format"])

	if format == "uuid" {
		return UUIDExample
	}

	if format == "field-mask" {
		if v, ok := exampleFromFieldName(name); ok {
			return v
		}
		return "name,email"
	}

	// Enum fields: first non-unspecified value, fallback to first
	if enumVals := asSlice(pm["enum"]); len(enumVals) > 0 {
		for _, v := range enumVals {
			if s, ok := asString(v); !ok || s != "unspecified" {
				return v
			}
		}
		return enumVals[0]
	}

	// Nested object already inlined
	if fieldType == "object" {
		if _, ok := pm["properties"]; ok {
			return generateSchemaExample(pm, snapshot)
		}
	}

	// Nested allOf reference not yet inlined
	if allOf := asSlice(pm["allOf"]); len(allOf) > 0 {
		if first := asMap(allOf[0]); first != nil {
			if ref, ok := asString(first["$ref"]); ok {
				if refName, ok := schemaNameFromRef(ref); ok {
					if resolved := asMap(snapshot[refName]); resolved != nil {
						return generateSchemaExample(resolved, snapshot)
					}
				}
			}
		}
	}

	if _, ok := pm["additionalProperties"]; ok {
		return map[string]any{"key": "value"}
	}

	if fieldType == "array" {
		if items, ok := pm["items"]; ok {
			return []any{generateFieldExample("item", items, snapshot)}
		}
		return []any{}
	}

	if v, ok := exampleFromFieldName(name); ok {
		return v
	}

	if fieldType == "boolean" {
		return true
	}
	if fieldType == "integer" {
		return numericValue(pm["minimum"])
	}
	if format == "date-time" {
		return "2026-01-15T09:30:00Z"
	}

	return "string"
}

func numericValue(v any) any {
	switch v.(type) {
	case int, int64, uint64, float64:
		return v
	default:
		return 0
	}
}

// exampleFromFieldName maps common field naming conventions to
// realistic example values. Only universal patterns are matched; for
// domain-specific names, post-process the output or override examples
// in the project config.
func exampleFromFieldName(name string) (any, bool) {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "password"):
		// Differentiate so currentPassword and newPassword don't show
		// identical values.
		if strings.HasPrefix(lower, "new") {
			return "N3wP@ssw0rd!456", true
		}
		return "P@ssw0rd123!", true
	// `secret` alone is ambiguous (TOTP secret, API secret) and gets
	// no example.
	case lower == "identifier" || strings.Contains(lower, "email"):
		return "user@example.com", true
	case strings.Contains(lower, "phone"):
		return "+1234567890", true
	case lower == "name" || strings.Contains(lower, "displayname") || strings.Contains(lower, "display_name"):
		return "John Doe", true
	case strings.Contains(lower, "token"):
		return "eyJhbGciOiJIUzI1NiIs...", true
	// `code` alone is ambiguous (OAuth code, error code); match the
	// specific spellings instead.
	case lower == "otp",
		strings.Contains(lower, "verification_code"), strings.Contains(lower, "verificationcode"),
		strings.Contains(lower, "mfa_code"), strings.Contains(lower, "mfacode"),
		strings.Contains(lower, "totp_code"), strings.Contains(lower, "totpcode"):
		return "123456", true
	case lower == "query" || lower == "search":
		return "search term", true
	case strings.Contains(lower, "url") || strings.Contains(lower, "uri"):
		return "https://example.com", true
	case strings.Contains(lower, "version"):
		return "1.0.0", true
	case strings.Contains(lower, "pagesize"), strings.Contains(lower, "page_size"), strings.Contains(lower, "limit"):
		return 20, true
	case strings.Contains(lower, "pagetoken"), strings.Contains(lower, "page_token"), strings.Contains(lower, "cursor"):
		return "eyJpZCI6MTAwfQ==", true
	case lower == "locale":
		return "en-US", true
	case strings.Contains(lower, "timezone") || strings.Contains(lower, "time_zone"):
		return "America/New_York", true
	case lower == "language" || lower == "lang":
		return "en", true
	case lower == "country" || lower == "ipcountry" || lower == "ip_country":
		return "US", true
	case strings.Contains(lower, "idempotency"), strings.Contains(lower, "request_id"), lower == "requestid":
		return UUIDExample, true
	case lower == "description":
		return "A brief description", true
	case lower == "title" || lower == "subject":
		return "Example Title", true
	case strings.Contains(lower, "hostname") || lower == "host":
		return "api.example.com", true
	case lower == "ip",
		strings.Contains(lower, "ip_address"), strings.Contains(lower, "ipaddress"),
		strings.HasPrefix(lower, "ip_created"), strings.HasPrefix(lower, "ipcreated"):
		return "192.168.1.1", true
	case strings.Contains(lower, "user_agent") || strings.Contains(lower, "useragent"):
		return "Mozilla/5.0 (compatible)", true
	case strings.Contains(lower, "content_type"), strings.Contains(lower, "contenttype"),
		strings.Contains(lower, "media_type"), strings.Contains(lower, "mediatype"):
		return "application/json", true
	case lower == "etag":
		return `"33a64df551425fcc55e4d42a148795d9f25f89d4"`, true
	case lower == "deviceid" || lower == "device_id":
		return "a1b2c3d4-e5f6-7890-abcd-ef1234567890", true
	case lower == "devicename" || lower == "device_name":
		return "iPhone 15 Pro", true
	case lower == "devicetype" || lower == "device_type":
		return "mobile", true
	case lower == "installationid" || lower == "installation_id":
		return UUIDExample, true
	}
	return nil, false
}

// enrichSchemaExamples adds per-property example annotations to all
// component schemas using the same heuristics as body inlining. Only
// examples with real documentation value are added; generic string
// fields stay bare.
func enrichSchemaExamples(doc map[string]any) {
	schemas := getMap(doc, "components", "schemas")
	if schemas == nil {
		return
	}
	snapshot := asMap(deepCopy(schemas))

	for _, schema := range schemas {
		props := getMap(asMap(schema), "properties")
		enrichProperties(props, snapshot)
	}
}

// enrichInlineRequestBodyExamples fills the gap enrichSchemaExamples
// leaves: operations whose request bodies were inlined as bare object
// schemas rather than $refs to named schemas.
func enrichInlineRequestBodyExamples(doc map[string]any) {
	snapshot := asMap(deepCopy(getMap(doc, "components", "schemas")))

	forEachOperation(doc, func(_, _ string, op map[string]any) {
		schema := getMap(op, "requestBody", "content", "application/json", "schema")
		if schema == nil {
			return
		}
		if _, isRef := schema["$ref"]; isRef {
			return
		}
		props := asMap(schema["properties"])
		if props == nil {
			return
		}
		enrichProperties(props, snapshot)
	})
}

func enrichProperties(props, snapshot map[string]any) {
	for propName, prop := range props {
		pm := asMap(prop)
		if pm == nil {
			continue
		}
		if _, has := pm["example"]; has {
			continue
		}
		// Composite properties are enriched through their referenced
		// schemas instead.
		if hasAnyKey(pm, "allOf", "oneOf", "$ref", "properties") {
			continue
		}
		if example, ok := meaningfulFieldExample(propName, pm, snapshot); ok {
			pm["example"] = example
		}
	}
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// meaningfulFieldExample generates an example only when it adds real
// documentation value. Unlike generateFieldExample there is no generic
// "string" fallback.
func meaningfulFieldExample(name string, pm map[string]any, snapshot map[string]any) (any, bool) {
	fieldType, _ := asString(pm["type"])
	format, _ := asString(pm["format"])

	if format == "uuid" {
		return UUIDExample, true
	}
	if format == "date-time" {
		return "2026-01-15T09:30:00Z", true
	}
	if format == "field-mask" {
		if v, ok := exampleFromFieldName(name); ok {
			return v, true
		}
		return "name,email", true
	}

	if enumVals := asSlice(pm["enum"]); len(enumVals) > 0 {
		for _, v := range enumVals {
			if s, ok := asString(v); !ok || s != "unspecified" {
				return v, true
			}
		}
		return enumVals[0], true
	}

	if fieldType == "boolean" {
		return true, true
	}
	if fieldType == "integer" {
		return numericValue(pm["minimum"]), true
	}

	// Arrays only when items have meaningful values. $ref arrays are
	// covered by the referenced schema; ["string"] is noise.
	if fieldType == "array" {
		items := asMap(pm["items"])
		if items == nil {
			return nil, false
		}
		if hasAnyKey(items, "$ref", "allOf") {
			return nil, false
		}
		itemExample, ok := meaningfulFieldExample("item", items, snapshot)
		if !ok {
			return nil, false
		}
		return []any{itemExample}, true
	}

	if _, ok := pm["additionalProperties"]; ok {
		return map[string]any{"key": "value"}, true
	}

	return exampleFromFieldName(name)
}

// removeOrphanedSchemas removes component schemas unreachable from any
// $ref outside components.schemas.
//
// Reachability analysis: seed with schemas referenced from paths,
// responses, parameters and the rest of components, then transitively
// follow $ref chains. This catches self-referential clusters like
// google.rpc.Status and google.protobuf.Any that have no external
// consumers.
func removeOrphanedSchemas(doc map[string]any) {
	schemas := getMap(doc, "components", "schemas")
	if len(schemas) == 0 {
		return
	}

	const prefix = "#/components/schemas/"

	externalRefs := collectExternalSchemaRefs(doc)

	reachable := map[string]bool{}
	var frontier []string
	for ref := range externalRefs {
		if name, ok := strings.CutPrefix(ref, prefix); ok {
			if !reachable[name] {
				reachable[name] = true
				frontier = append(frontier, name)
			}
		}
	}

	for len(frontier) > 0 {
		name := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		schema, ok := schemas[name]
		if !ok {
			continue
		}
		innerRefs := map[string]bool{}
		collectRefs(schema, innerRefs)
		for ref := range innerRefs {
			if dep, ok := strings.CutPrefix(ref, prefix); ok {
				if !reachable[dep] {
					reachable[dep] = true
					frontier = append(frontier, dep)
				}
			}
		}
	}

	for name := range schemas {
		if !reachable[name] {
			delete(schemas, name)
		}
	}
}

// collectExternalSchemaRefs gathers $ref strings from everywhere except
// components.schemas.
func collectExternalSchemaRefs(doc map[string]any) map[string]bool {
	refs := map[string]bool{}
	for key, value := range doc {
		if key != "components" {
			collectRefs(value, refs)
			continue
		}
		for compKey, compVal := range asMap(value) {
			if compKey != "schemas" {
				collectRefs(compVal, refs)
			}
		}
	}
	return refs
}
