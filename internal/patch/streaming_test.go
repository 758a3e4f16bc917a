package patch

import (
	"strings"
	"testing"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
)

func TestStreamingOperationAnnotated(t *testing.T) {
	doc := mustParse(t, `
paths:
  /v1/events:
    get:
      description: Watches system events.
      responses:
        '200':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/events.v1.Event'
`)
	annotateSSE(doc, []discover.StreamingOp{{Method: "get", Path: "/v1/events"}})

	op := getMap(doc, "paths", "/v1/events", "get")
	if v, _ := asString(op["x-streaming"]); v != "sse" {
		t.Errorf("x-streaming = %q", v)
	}
	if v, _ := asString(op["x-content-type"]); v != "text/event-stream" {
		t.Errorf("x-content-type = %q", v)
	}

	content := getMap(op, "responses", "200", "content")
	if _, ok := content["application/json"]; ok {
		t.Error("application/json should be rekeyed")
	}
	if _, ok := content["text/event-stream"]; !ok {
		t.Error("text/event-stream should be present")
	}

	if desc, _ := asString(op["description"]); !strings.HasPrefix(desc, "**Streaming (SSE):** ") {
		t.Errorf("description = %q", desc)
	}

	params := asSlice(op["parameters"])
	if len(params) != 1 {
		t.Fatalf("got %d parameters, want 1", len(params))
	}
	if name, _ := asString(asMap(params[0])["name"]); name != "Last-Event-ID" {
		t.Errorf("param name = %q", name)
	}
}

func TestStreamingMethodAware(t *testing.T) {
	doc := mustParse(t, `
paths:
  /v1/users:
    get:
      responses:
        '200':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/user.v1.User'
    post:
      responses:
        '200':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/user.v1.User'
`)
	annotateSSE(doc, []discover.StreamingOp{{Method: "get", Path: "/v1/users"}})

	get := getMap(doc, "paths", "/v1/users", "get")
	if _, ok := get["x-streaming"]; !ok {
		t.Error("GET should be annotated")
	}
	post := getMap(doc, "paths", "/v1/users", "post")
	if _, ok := post["x-streaming"]; ok {
		t.Error("POST on the same path must not be annotated")
	}
}

func TestStreamingHeuristicByRef(t *testing.T) {
	doc := mustParse(t, `
paths:
  /v1/logs:
    get:
      responses:
        '200':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/logs.v1.StreamLogsResponse'
`)
	annotateSSE(doc, nil)

	op := getMap(doc, "paths", "/v1/logs", "get")
	if v, _ := asString(op["x-streaming"]); v != "sse" {
		t.Error("stream-named response schema should trigger the heuristic")
	}
}

func TestLastEventIDNotDuplicated(t *testing.T) {
	doc := mustParse(t, `
paths:
  /v1/events:
    get:
      parameters:
        - name: Last-Event-ID
          in: header
          schema:
            type: string
      responses:
        '200':
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/events.v1.Event'
`)
	annotateSSE(doc, []discover.StreamingOp{{Method: "get", Path: "/v1/events"}})

	params := asSlice(getMap(doc, "paths", "/v1/events", "get")["parameters"])
	if len(params) != 1 {
		t.Errorf("got %d parameters, want 1", len(params))
	}
}

func TestStreamingDescriptionPrefixIdempotent(t *testing.T) {
	doc := mustParse(t, `
paths:
  /v1/events:
    get:
      description: '**Streaming (SSE):** already annotated'
      responses:
        '200':
          content:
            text/event-stream:
              schema:
                type: string
`)
	annotateSSE(doc, []discover.StreamingOp{{Method: "get", Path: "/v1/events"}})

	desc, _ := asString(getMap(doc, "paths", "/v1/events", "get")["description"])
	if strings.Count(desc, "**Streaming (SSE):**") != 1 {
		t.Errorf("prefix duplicated: %q", desc)
	}
}
