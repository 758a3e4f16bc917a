package discover

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/descriptor"
)

func u64(v uint64) *uint64 { return &v }
func u32(v uint32) *uint32 { return &v }
func i32(v int32) *int32   { return &v }

func makeField(name string, typ int32) *descriptor.FieldDescriptorProto {
	return &descriptor.FieldDescriptorProto{Name: name, Type: typ}
}

func makeServiceWithHTTP(service, method string, verb descriptor.Verb, path string, streaming bool) *descriptor.ServiceDescriptorProto {
	return &descriptor.ServiceDescriptorProto{
		Name: service,
		Method: []*descriptor.MethodDescriptorProto{{
			Name:       method,
			InputType:  ".test.v1.Request",
			OutputType: ".test.v1.Response",
			Options: &descriptor.MethodOptions{
				HTTP: &descriptor.HTTPRule{
					Pattern: &descriptor.HTTPPattern{Verb: verb, Path: path},
				},
			},
			ServerStreaming: streaming,
		}},
	}
}

func makeSet(services ...*descriptor.ServiceDescriptorProto) *descriptor.FileDescriptorSet {
	return &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name:  "Request",
				Field: []*descriptor.FieldDescriptorProto{makeField("name", descriptor.TypeString)},
			}},
			Service: services,
		}},
	}
}

func mustDiscover(t *testing.T, fdset *descriptor.FileDescriptorSet) *Metadata {
	t.Helper()
	meta, err := Discover(fdset.Marshal())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	return meta
}

func TestDiscoverExtractsStreamingOps(t *testing.T) {
	meta := mustDiscover(t, makeSet(
		makeServiceWithHTTP("TestService", "ListItems", descriptor.VerbGet, "/v1/items", true),
	))
	if len(meta.StreamingOps) != 1 {
		t.Fatalf("streaming ops: got %d, want 1", len(meta.StreamingOps))
	}
	if meta.StreamingOps[0].Method != "get" || meta.StreamingOps[0].Path != "/v1/items" {
		t.Errorf("unexpected op: %+v", meta.StreamingOps[0])
	}
}

func TestDiscoverSkipsNonStreaming(t *testing.T) {
	meta := mustDiscover(t, makeSet(
		makeServiceWithHTTP("TestService", "GetItem", descriptor.VerbGet, "/v1/items/{id}", false),
	))
	if len(meta.StreamingOps) != 0 {
		t.Errorf("streaming ops: got %d, want 0", len(meta.StreamingOps))
	}
}

func TestDiscoverExtractsOperationIDs(t *testing.T) {
	meta := mustDiscover(t, makeSet(
		makeServiceWithHTTP("ItemService", "CreateItem", descriptor.VerbPost, "/v1/items", false),
	))
	if len(meta.OperationIDs) != 1 {
		t.Fatalf("operation ids: got %d, want 1", len(meta.OperationIDs))
	}
	e := meta.OperationIDs[0]
	if e.MethodName != "CreateItem" || e.OperationID != "ItemService_CreateItem" {
		t.Errorf("unexpected entry: %+v", e)
	}
}

func TestResolveOperationIDs(t *testing.T) {
	meta := mustDiscover(t, makeSet(
		makeServiceWithHTTP("AuthService", "Authenticate", descriptor.VerbPost, "/v1/auth/authenticate", false),
	))
	resolved, err := ResolveOperationIDs(meta, []string{"Authenticate"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(resolved, []string{"AuthService_Authenticate"}) {
		t.Errorf("resolved: %v", resolved)
	}
}

func TestResolveOperationIDsMissing(t *testing.T) {
	meta := mustDiscover(t, makeSet())
	_, err := ResolveOperationIDs(meta, []string{"NonExistent"})
	var notFound *MethodNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected MethodNotFoundError, got %v", err)
	}
	if notFound.Method != "NonExistent" {
		t.Errorf("method: %q", notFound.Method)
	}
}

func TestResolveQualifiedServiceMethod(t *testing.T) {
	fdset := makeSet(
		makeServiceWithHTTP("AuthService", "Delete", descriptor.VerbDelete, "/v1/auth", false),
		makeServiceWithHTTP("UserService", "Delete", descriptor.VerbDelete, "/v1/users", false),
	)
	meta := mustDiscover(t, fdset)

	resolved, err := ResolveOperationIDs(meta, []string{"AuthService.Delete"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved[0] != "AuthService_Delete" {
		t.Errorf("resolved: %v", resolved)
	}

	resolved, err = ResolveOperationIDs(meta, []string{"UserService.Delete"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved[0] != "UserService_Delete" {
		t.Errorf("resolved: %v", resolved)
	}

	_, err = ResolveOperationIDs(meta, []string{"OtherService.Delete"})
	var notFound *MethodNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected MethodNotFoundError, got %v", err)
	}
}

func TestResolveAmbiguousBareName(t *testing.T) {
	fdset := makeSet(
		makeServiceWithHTTP("AuthService", "Delete", descriptor.VerbDelete, "/v1/auth", false),
		makeServiceWithHTTP("UserService", "Delete", descriptor.VerbDelete, "/v1/users", false),
	)
	meta := mustDiscover(t, fdset)

	_, err := ResolveOperationIDs(meta, []string{"Delete"})
	var ambiguous *AmbiguousMethodError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousMethodError, got %v", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("candidates: %v", ambiguous.Candidates)
	}
	msg := err.Error()
	if !strings.Contains(msg, "ambiguous") {
		t.Errorf("error should mention ambiguity: %s", msg)
	}
	if !strings.Contains(msg, "Service.Method") {
		t.Errorf("error should suggest qualified syntax: %s", msg)
	}
}

func TestPartialBodySelectorRejected(t *testing.T) {
	svc := makeServiceWithHTTP("UserService", "UpdateUser", descriptor.VerbPut, "/v1/users/{id}", false)
	svc.Method[0].Options.HTTP.Body = "user"
	_, err := Discover(makeSet(svc).Marshal())

	var unsupported *UnsupportedBodySelectorError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedBodySelectorError, got %v", err)
	}
	if unsupported.Method != "UpdateUser" || unsupported.Body != "user" {
		t.Errorf("unexpected error detail: %+v", unsupported)
	}
}

func TestWholeBodySelectorAccepted(t *testing.T) {
	svc := makeServiceWithHTTP("UserService", "UpdateUser", descriptor.VerbPut, "/v1/users/{id}", false)
	svc.Method[0].Options.HTTP.Body = "*"
	if _, err := Discover(makeSet(svc).Marshal()); err != nil {
		t.Fatalf("body \"*\" should be accepted: %v", err)
	}
}

func TestDiscoverMalformedBytes(t *testing.T) {
	_, err := Discover([]byte{0x0a, 0xff, 0xff})
	var decErr *descriptor.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDetectEnumPrefix(t *testing.T) {
	tests := []struct {
		values []string
		want   string
		ok     bool
	}{
		{[]string{"HEALTH_STATUS_HEALTHY", "HEALTH_STATUS_UNHEALTHY"}, "HEALTH_STATUS_", true},
		{[]string{"FOO", "BAR"}, "", false},
		{[]string{}, "", false},
		{[]string{"A_X", "A_Y"}, "", false}, // prefix "A_" shorter than 3
		{[]string{"STATUS_UNSPECIFIED", "STATUS_ACTIVE"}, "STATUS_", true},
	}
	for _, tt := range tests {
		got, ok := detectEnumPrefix(tt.values)
		if got != tt.want || ok != tt.ok {
			t.Errorf("detectEnumPrefix(%v) = %q,%v; want %q,%v", tt.values, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEnumRewritesDetected(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Response",
				Field: []*descriptor.FieldDescriptorProto{{
					Name:     "status",
					Type:     descriptor.TypeEnum,
					TypeName: ".test.v1.Status",
				}},
			}},
			EnumType: []*descriptor.EnumDescriptorProto{{
				Name: "Status",
				Value: []*descriptor.EnumValueDescriptorProto{
					{Name: "STATUS_UNSPECIFIED"},
					{Name: "STATUS_ACTIVE", Number: 1},
				},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	if len(meta.EnumRewrites) != 1 {
		t.Fatalf("rewrites: got %d, want 1", len(meta.EnumRewrites))
	}
	rw := meta.EnumRewrites[0]
	if rw.Schema != "test.v1.Response" || rw.Field != "status" {
		t.Errorf("unexpected rewrite target: %+v", rw)
	}
	if !reflect.DeepEqual(rw.Values, []string{"unspecified", "active"}) {
		t.Errorf("values: %v", rw.Values)
	}
	if meta.EnumValueMap["STATUS_ACTIVE"] != "active" {
		t.Errorf("value map: %v", meta.EnumValueMap)
	}
}

func TestNestedEnumRewriteUsesQualifiedSchema(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Outer",
				NestedType: []*descriptor.DescriptorProto{{
					Name: "Inner",
					Field: []*descriptor.FieldDescriptorProto{{
						Name:     "status",
						Type:     descriptor.TypeEnum,
						TypeName: ".test.v1.Status",
					}},
				}},
			}},
			EnumType: []*descriptor.EnumDescriptorProto{{
				Name: "Status",
				Value: []*descriptor.EnumValueDescriptorProto{
					{Name: "STATUS_UNSPECIFIED"},
					{Name: "STATUS_ACTIVE", Number: 1},
				},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	if len(meta.EnumRewrites) != 1 {
		t.Fatalf("rewrites: got %d, want 1", len(meta.EnumRewrites))
	}
	if meta.EnumRewrites[0].Schema != "test.v1.Outer.Inner" {
		t.Errorf("schema: got %q, want test.v1.Outer.Inner", meta.EnumRewrites[0].Schema)
	}
}

func TestRedirectPathsDetected(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name:  "RedirectResponse",
				Field: []*descriptor.FieldDescriptorProto{makeField("redirect_url", descriptor.TypeString)},
			}},
			Service: []*descriptor.ServiceDescriptorProto{{
				Name: "TestService",
				Method: []*descriptor.MethodDescriptorProto{{
					Name:       "DoRedirect",
					InputType:  ".test.v1.Request",
					OutputType: ".test.v1.RedirectResponse",
					Options: &descriptor.MethodOptions{
						HTTP: &descriptor.HTTPRule{
							Pattern: &descriptor.HTTPPattern{Verb: descriptor.VerbGet, Path: "/v1/redirect"},
						},
					},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)
	if !reflect.DeepEqual(meta.RedirectPaths, []string{"/v1/redirect"}) {
		t.Errorf("redirect paths: %v", meta.RedirectPaths)
	}
}

func TestNestedMessageConstraintsUseQualifiedPath(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Outer",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "name",
					Type: descriptor.TypeString,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						String: &descriptor.StringRules{MinLen: u64(1), MaxLen: u64(100)},
					}},
				}},
				NestedType: []*descriptor.DescriptorProto{{
					Name: "Inner",
					Field: []*descriptor.FieldDescriptorProto{{
						Name: "value",
						Type: descriptor.TypeString,
						Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
							String: &descriptor.StringRules{MinLen: u64(3)},
						}},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	schemas := make(map[string]bool)
	for _, sc := range meta.FieldConstraints {
		schemas[sc.Schema] = true
	}
	if !schemas["test.v1.Outer"] {
		t.Error("missing test.v1.Outer constraints")
	}
	if !schemas["test.v1.Outer.Inner"] {
		t.Errorf("nested constraints should use qualified path, got %v", schemas)
	}
	if schemas["test.v1.Inner"] {
		t.Error("bare test.v1.Inner schema should not exist")
	}
}

func TestNestedMessagePathParamLookup(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name:  "Outer",
				Field: []*descriptor.FieldDescriptorProto{makeField("name", descriptor.TypeString)},
				NestedType: []*descriptor.DescriptorProto{{
					Name:  "Inner",
					Field: []*descriptor.FieldDescriptorProto{makeField("value", descriptor.TypeString)},
				}},
			}},
			Service: []*descriptor.ServiceDescriptorProto{{
				Name: "Svc",
				Method: []*descriptor.MethodDescriptorProto{{
					Name:       "Do",
					InputType:  ".test.v1.Outer.Inner",
					OutputType: ".test.v1.Outer",
					Options: &descriptor.MethodOptions{
						HTTP: &descriptor.HTTPRule{
							Pattern: &descriptor.HTTPPattern{Verb: descriptor.VerbGet, Path: "/v1/outer/{value}"},
						},
					},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)
	if len(meta.PathParamConstraints) == 0 {
		t.Fatal("should resolve path params via nested message FQN")
	}
}

func TestInt32BoundaryValues(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Request",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "count",
					Type: descriptor.TypeInt32,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						Int32: &descriptor.Int32Rules{Gte: i32(-100), Lte: i32(100)},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	if len(meta.FieldConstraints) != 1 {
		t.Fatalf("constraints: %+v", meta.FieldConstraints)
	}
	fc := meta.FieldConstraints[0].Fields[0]
	if fc.SignedMin == nil || *fc.SignedMin != -100 {
		t.Errorf("signed min: %v", fc.SignedMin)
	}
	if fc.SignedMax == nil || *fc.SignedMax != 100 {
		t.Errorf("signed max: %v", fc.SignedMax)
	}
	if !fc.IsNumeric {
		t.Error("should be numeric")
	}
	if fc.Min != nil || fc.Max != nil {
		t.Error("unsigned bounds must stay empty for signed constraints")
	}
}

func TestInt32ExclusiveBoundsAtExtremes(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Request",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "count",
					Type: descriptor.TypeInt32,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						Int32: &descriptor.Int32Rules{Gt: i32(2147483647), Lt: i32(-2147483648)},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	fc := meta.FieldConstraints[0].Fields[0]
	if fc.SignedMin == nil || *fc.SignedMin != 2147483648 {
		t.Errorf("gt at int32 max should widen, got %v", fc.SignedMin)
	}
	if fc.SignedMax == nil || *fc.SignedMax != -2147483649 {
		t.Errorf("lt at int32 min should widen, got %v", fc.SignedMax)
	}
}

func TestUint32LtZeroSaturates(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Request",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "count",
					Type: descriptor.TypeUint32,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						Uint32: &descriptor.Uint32Rules{Lt: u32(0)},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	fc := meta.FieldConstraints[0].Fields[0]
	if fc.Max == nil || *fc.Max != 0 {
		t.Errorf("lt:0 should saturate to max 0, got %v", fc.Max)
	}
}

func TestUint64ExclusiveBoundsConverted(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Request",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "content_size",
					Type: descriptor.TypeUint64,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						Uint64: &descriptor.Uint64Rules{Gt: u64(0), Lte: u64(10485760)},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	fc := meta.FieldConstraints[0].Fields[0]
	if fc.Field != "contentSize" {
		t.Errorf("field: %q", fc.Field)
	}
	if fc.Min == nil || *fc.Min != 1 {
		t.Errorf("gt:0 should become minimum 1, got %v", fc.Min)
	}
	if fc.Max == nil || *fc.Max != 10485760 {
		t.Errorf("max: %v", fc.Max)
	}
	if !fc.IsNumeric {
		t.Error("should be numeric")
	}
}

func TestUint64BeyondJSONSafeDropped(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "Request",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "size",
					Type: descriptor.TypeUint64,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						Uint64: &descriptor.Uint64Rules{Lte: u64(JSONSafeIntMax + 1)},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)
	if len(meta.FieldConstraints) != 0 {
		t.Errorf("bounds above 2^53-1 should be dropped, got %+v", meta.FieldConstraints)
	}
}

func TestUUIDSchemaDetected(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "core.proto",
			Package: "core.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "UUID",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "value",
					Type: descriptor.TypeString,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						String: &descriptor.StringRules{
							Pattern: "^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$",
						},
					}},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)
	if meta.UUIDSchema != "core.v1.UUID" {
		t.Errorf("uuid schema: %q", meta.UUIDSchema)
	}
}

func TestPathParamConstraintsCamelized(t *testing.T) {
	fdset := &descriptor.FileDescriptorSet{
		File: []*descriptor.FileDescriptorProto{{
			Name:    "test.proto",
			Package: "test.v1",
			MessageType: []*descriptor.DescriptorProto{{
				Name: "GetSessionRequest",
				Field: []*descriptor.FieldDescriptorProto{{
					Name: "device_id",
					Type: descriptor.TypeString,
					Options: &descriptor.FieldOptions{Rules: &descriptor.FieldRules{
						String: &descriptor.StringRules{MinLen: u64(1), MaxLen: u64(128)},
					}},
				}},
			}},
			Service: []*descriptor.ServiceDescriptorProto{{
				Name: "SessionService",
				Method: []*descriptor.MethodDescriptorProto{{
					Name:       "GetSession",
					InputType:  ".test.v1.GetSessionRequest",
					OutputType: ".test.v1.Response",
					Options: &descriptor.MethodOptions{
						HTTP: &descriptor.HTTPRule{
							Pattern: &descriptor.HTTPPattern{Verb: descriptor.VerbGet, Path: "/v1/sessions/{device_id}"},
						},
					},
				}},
			}},
		}},
	}
	meta := mustDiscover(t, fdset)

	if len(meta.PathParamConstraints) != 1 {
		t.Fatalf("path params: %+v", meta.PathParamConstraints)
	}
	info := meta.PathParamConstraints[0]
	if info.Path != "/v1/sessions/{deviceId}" {
		t.Errorf("path: %q", info.Path)
	}
	p := info.Params[0]
	if p.Name != "deviceId" {
		t.Errorf("name: %q", p.Name)
	}
	if p.Min == nil || *p.Min != 1 || p.Max == nil || *p.Max != 128 {
		t.Errorf("bounds: min=%v max=%v", p.Min, p.Max)
	}
}

func TestCamelPathTemplate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/v1/sessions/{device_id}", "/v1/sessions/{deviceId}"},
		{"/v1/users/{user_id.value}", "/v1/users/{userId.value}"},
		{"/v1/items", "/v1/items"},
	}
	for _, tt := range tests {
		if got := CamelPathTemplate(tt.in); got != tt.want {
			t.Errorf("CamelPathTemplate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
