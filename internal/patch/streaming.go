package patch

import (
	"strings"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
)

// annotateSSE marks server-streaming operations with custom extensions
// and the event-stream content type.
//
// Detection is method-aware: only the specific HTTP method mapping to a
// server-streaming RPC gets annotated (GET /v1/users can stream while
// POST /v1/users does not). Falls back to a heuristic when the success
// response schema $ref contains "stream".
func annotateSSE(doc map[string]any, streamingOps []discover.StreamingOp) {
	forEachOperation(doc, func(path, method string, op map[string]any) {
		isProtoStreaming := false
		for _, so := range streamingOps {
			if so.Method == method && so.Path == path {
				isProtoStreaming = true
				break
			}
		}
		if !isProtoStreaming && !isStreamingHeuristic(op) {
			return
		}

		op["x-streaming"] = "sse"
		op["x-content-type"] = "text/event-stream"

		rewriteSSEResponseContentType(op)

		existing := "Server-sent events stream."
		if s, ok := asString(op["description"]); ok {
			existing = s
		}
		if !strings.HasPrefix(existing, "**Streaming (SSE):**") {
			op["description"] = "**Streaming (SSE):** " + existing
		}

		addLastEventIDHeader(op)
	})
}

// addLastEventIDHeader adds the SSE reconnection header parameter unless
// the operation already declares one.
func addLastEventIDHeader(op map[string]any) {
	params := asSlice(op["parameters"])

	for _, p := range params {
		if pm := asMap(p); pm != nil {
			if name, _ := asString(pm["name"]); name == "Last-Event-ID" {
				return
			}
		}
	}

	op["parameters"] = append(params, map[string]any{
		"name":        "Last-Event-ID",
		"in":          "header",
		"required":    false,
		"description": "Reconnection cursor from the last received SSE event. When set, the server resumes the stream from this point.",
		"schema":      map[string]any{"type": "string"},
	})
}

func isStreamingHeuristic(op map[string]any) bool {
	schema := getMap(op, "responses", "200", "content", "application/json", "schema")
	if schema == nil {
		return false
	}
	ref, _ := asString(schema["$ref"])
	return strings.Contains(strings.ToLower(ref), "stream")
}

// rewriteSSEResponseContentType rekeys the 200 response content from
// application/json to text/event-stream.
func rewriteSSEResponseContentType(op map[string]any) {
	content := getMap(op, "responses", "200", "content")
	if content == nil {
		return
	}
	if mediaType, ok := content["application/json"]; ok {
		delete(content, "application/json")
		content["text/event-stream"] = mediaType
	}
}
