package patch

import "strings"

// patchEmptyResponses converts 200 responses with an empty content map
// to 204 No Content.
func patchEmptyResponses(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		responses := getMap(op, "responses")
		if responses == nil {
			return
		}
		content, ok := getMap(responses, "200")["content"]
		if !ok {
			return
		}
		cm := asMap(content)
		if cm == nil || len(cm) != 0 {
			return
		}
		delete(responses, "200")
		responses["204"] = map[string]any{"description": "No Content"}
	})
}

// removeRedundantQueryParams drops query parameters that duplicate path
// parameters. The gateway generator emits both for fields bound to the
// path; only the path form is real.
func removeRedundantQueryParams(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		params := asSlice(op["parameters"])
		if params == nil {
			return
		}

		var pathParamNames []string
		for _, p := range params {
			pm := asMap(p)
			if pm == nil {
				continue
			}
			if in, _ := asString(pm["in"]); in == "path" {
				if name, ok := asString(pm["name"]); ok {
					pathParamNames = append(pathParamNames, name)
				}
			}
		}
		if len(pathParamNames) == 0 {
			return
		}

		kept := params[:0]
		for _, p := range params {
			if !isRedundantQueryParam(p, pathParamNames) {
				kept = append(kept, p)
			}
		}
		op["parameters"] = kept
	})
}

func isRedundantQueryParam(p any, pathParamNames []string) bool {
	pm := asMap(p)
	if pm == nil {
		return false
	}
	if in, _ := asString(pm["in"]); in != "query" {
		return false
	}
	name, ok := asString(pm["name"])
	if !ok {
		return false
	}
	for _, pathName := range pathParamNames {
		if snakeToLowerCamelDotted(pathName) == name {
			return true
		}
	}
	return false
}

// patchPlainTextEndpoints rewrites the configured endpoints to answer
// text/plain instead of application/json.
func patchPlainTextEndpoints(doc map[string]any, endpoints []PlainTextEndpoint) {
	if len(endpoints) == 0 {
		return
	}

	forEachOperation(doc, func(path, _ string, op map[string]any) {
		var endpoint *PlainTextEndpoint
		for i := range endpoints {
			if endpoints[i].Path == path {
				endpoint = &endpoints[i]
				break
			}
		}
		if endpoint == nil {
			return
		}

		content := getMap(op, "responses", "200", "content")
		if content == nil {
			return
		}
		if _, ok := content["application/json"]; !ok {
			return
		}
		delete(content, "application/json")

		mediaType := map[string]any{
			"schema": map[string]any{"type": "string"},
		}
		if endpoint.Example != "" {
			mediaType["example"] = endpoint.Example
		}
		content["text/plain"] = mediaType
	})
}

// patchMetricsResponseHeaders documents the Prometheus exposition headers
// on the metrics endpoint. Skipped when no metrics path is configured.
func patchMetricsResponseHeaders(doc map[string]any, metricsPath string) {
	if metricsPath == "" {
		return
	}

	forEachOperation(doc, func(path, method string, op map[string]any) {
		if path != metricsPath || method != "get" {
			return
		}

		response200 := getMap(op, "responses", "200")
		if response200 == nil {
			return
		}

		headers := asMap(response200["headers"])
		if headers == nil {
			headers = map[string]any{}
			response200["headers"] = headers
		}

		headers["Content-Type"] = responseHeader(
			"Prometheus text exposition media type.",
			"text/plain; version=0.0.4; charset=utf-8",
		)
		headers["Cache-Control"] = responseHeader(
			"Caching policy for metrics responses.",
			"no-store, no-cache, max-age=0",
		)
	})
}

// patchReadinessProbeResponses adds a 503 response to the readiness
// probe, reusing the 200 schema. Skipped when no readiness path is
// configured or a 503 already exists.
func patchReadinessProbeResponses(doc map[string]any, readinessPath string) {
	if readinessPath == "" {
		return
	}

	forEachOperation(doc, func(path, method string, op map[string]any) {
		if path != readinessPath || method != "get" {
			return
		}

		responses := getMap(op, "responses")
		if responses == nil {
			return
		}
		if _, ok := responses["503"]; ok {
			return
		}

		schema := getMap(responses, "200", "content", "application/json", "schema")
		if schema == nil {
			return
		}
		schemaRef, ok := asString(schema["$ref"])
		if !ok {
			return
		}

		responses["503"] = jsonResponseWithSchemaRef("Service Unavailable", schemaRef)
	})
}

// patchRedirectEndpoints converts 200 responses on redirect endpoints to
// 302 with a required Location header.
func patchRedirectEndpoints(doc map[string]any, redirectPaths []string) {
	paths := getMap(doc, "paths")
	if paths == nil {
		return
	}

	redirectResponse := func() map[string]any {
		return map[string]any{
			"description": "Redirect to frontend success or error page.",
			"headers": map[string]any{
				"Location": map[string]any{
					"description": "Frontend success or error page URL.",
					"required":    true,
					"schema": map[string]any{
						"type":   "string",
						"format": "uri",
					},
				},
			},
		}
	}

	for _, path := range redirectPaths {
		pathItem := asMap(paths[path])
		if pathItem == nil {
			continue
		}
		for _, method := range []string{"get", "post", "put", "patch", "delete"} {
			op := asMap(pathItem[method])
			if op == nil {
				continue
			}
			responses := getMap(op, "responses")
			if responses == nil {
				continue
			}
			delete(responses, "200")
			responses["302"] = redirectResponse()
		}
	}
}

// ensureRESTErrorSchema creates the shared error response envelope under
// components.schemas if it does not already exist.
func ensureRESTErrorSchema(doc map[string]any, errorSchemaRef string) {
	schemaName := strings.TrimPrefix(errorSchemaRef, "#/components/schemas/")

	components := asMap(doc["components"])
	if components == nil {
		components = map[string]any{}
		doc["components"] = components
	}
	schemas := asMap(components["schemas"])
	if schemas == nil {
		schemas = map[string]any{}
		components["schemas"] = schemas
	}
	if _, ok := schemas[schemaName]; ok {
		return
	}

	schemas[schemaName] = map[string]any{
		"type":        "object",
		"required":    []any{"error"},
		"description": "REST error response envelope.",
		"properties": map[string]any{
			"error": map[string]any{
				"type":     "object",
				"required": []any{"code", "message", "status"},
				"properties": map[string]any{
					"code": map[string]any{
						"type":        "integer",
						"format":      "int32",
						"description": "HTTP status code.",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "Human-readable error message.",
					},
					"status": map[string]any{
						"type":        "string",
						"description": "gRPC status code name (e.g., INVALID_ARGUMENT).",
					},
				},
			},
		},
	}
}

// rewriteDefaultErrorResponses points every operation's default response
// at the shared error schema.
func rewriteDefaultErrorResponses(doc map[string]any, errorSchemaRef string) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		defaultResponse := getMap(op, "responses", "default")
		if defaultResponse == nil {
			return
		}
		if _, ok := defaultResponse["description"]; !ok {
			defaultResponse["description"] = "Default error response"
		}
		defaultResponse["content"] = jsonContentWithSchemaRef(errorSchemaRef)
	})
}

// rewriteCreateResponses changes the success status of resource-creating
// operations from 200 to 201. An operation counts as creating when the
// method part of its operationId starts with Create, SignUp or Register.
func rewriteCreateResponses(doc map[string]any) {
	forEachOperation(doc, func(_, _ string, op map[string]any) {
		opID, ok := asString(op["operationId"])
		if !ok {
			return
		}
		methodName := opID
		if _, after, found := strings.Cut(opID, "_"); found {
			methodName = after
		}
		if !strings.HasPrefix(methodName, "Create") &&
			!strings.HasPrefix(methodName, "SignUp") &&
			!strings.HasPrefix(methodName, "Register") {
			return
		}

		responses := getMap(op, "responses")
		if responses == nil {
			return
		}
		response200, ok := responses["200"]
		if !ok {
			return
		}
		if _, exists := responses["201"]; exists {
			return
		}
		delete(responses, "200")
		if rm := asMap(response200); rm != nil {
			if desc, _ := asString(rm["description"]); desc == "" || desc == "OK" {
				rm["description"] = "Created"
			}
		}
		responses["201"] = response200
	})
}
