// Package discover extracts RPC metadata from a compiled descriptor set.
//
// A single pass over the descriptors produces:
//   - streaming ops: (HTTP method, path) pairs for server-streaming RPCs
//   - operation IDs: Service_Method for every annotated RPC
//   - validation constraints: validate.rules mapped to JSON Schema shapes
//   - enum rewrites: prefix-stripped enum value mappings
//   - redirect paths: endpoints answering with 302 redirects
//   - the UUID wrapper schema, when one exists
//   - path parameter constraints per endpoint
//
// This keeps proto files as the single source of truth: the document
// patcher auto-detects streaming endpoints and resolves operation IDs
// instead of relying on hardcoded lists.
package discover

import (
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/descriptor"
)

// JSONSafeIntMax is the largest integer a JSON number can carry without
// precision loss (2^53 - 1). Unsigned 64-bit bounds above it are dropped.
const JSONSafeIntMax uint64 = 9_007_199_254_740_991

// StreamingOp is a server-streaming RPC exposed over HTTP.
type StreamingOp struct {
	Method string
	Path   string
}

// OperationEntry maps a short proto method name to its operation ID.
type OperationEntry struct {
	MethodName  string
	OperationID string
}

// SchemaConstraints holds the validation constraints of one schema.
type SchemaConstraints struct {
	// Schema name in document format (e.g. "auth.v1.ClientInfo").
	Schema string
	Fields []FieldConstraint
}

// FieldConstraint is a single field's validation rule mapped to JSON
// Schema terms.
type FieldConstraint struct {
	// Field name in camelCase, matching the document's property names.
	Field string
	// Min is minLength for strings, minimum for unsigned integers.
	Min *uint64
	// Max is maxLength for strings, maximum for unsigned integers.
	Max *uint64
	// SignedMin and SignedMax carry signed integer bounds. Mutually
	// exclusive with Min/Max so a negative bound can never be forced
	// through an unsigned representation.
	SignedMin *int64
	SignedMax *int64
	Pattern   string
	// EnumValues is the allowed string value set (validate.rules.string.in).
	EnumValues []string
	Required   bool
	IsUUID     bool
	// IsNumeric selects the bound representation: minimum/maximum when
	// true, minLength/maxLength when false.
	IsNumeric bool
}

// EnumRewrite is a schema field whose enum values are serialized with the
// shared name prefix stripped.
type EnumRewrite struct {
	Schema string
	Field  string
	Values []string
}

// PathParamInfo holds path parameter constraints for one endpoint.
type PathParamInfo struct {
	// Path is the HTTP path template with camelCase variables.
	Path   string
	Params []PathParamConstraint
}

// PathParamConstraint describes a single path parameter.
type PathParamConstraint struct {
	// Name as it appears in the URL template, root segment camelized.
	Name string
	// Description from the proto field comment, when available.
	Description string
	IsUUID      bool
	Min         *uint64
	Max         *uint64
}

// Metadata is the aggregate result of one discovery pass. Built once,
// read by every patch phase, never mutated afterwards.
type Metadata struct {
	StreamingOps         []StreamingOp
	OperationIDs         []OperationEntry
	FieldConstraints     []SchemaConstraints
	EnumRewrites         []EnumRewrite
	RedirectPaths        []string
	UUIDSchema           string
	PathParamConstraints []PathParamInfo
	// EnumValueMap maps raw enum value names to their stripped spelling
	// for values appearing inline rather than inside a named schema.
	EnumValueMap map[string]string
}

// Discover parses descriptor bytes and extracts all RPC metadata.
//
// Accepts raw FileDescriptorSet bytes, e.g. from
// `buf build -o fdset.binpb` or a protoc `--descriptor_set_out` run.
func Discover(descriptorBytes []byte) (*Metadata, error) {
	fdset, err := descriptor.Unmarshal(descriptorBytes)
	if err != nil {
		return nil, err
	}

	if err := rejectPartialBodySelectors(fdset); err != nil {
		return nil, err
	}

	rewrites, valueMap := extractEnumRewrites(fdset)
	return &Metadata{
		StreamingOps:         extractStreamingOps(fdset),
		OperationIDs:         extractOperationIDs(fdset),
		FieldConstraints:     extractFieldConstraints(fdset),
		EnumRewrites:         rewrites,
		RedirectPaths:        extractRedirectPaths(fdset),
		UUIDSchema:           detectUUIDSchema(fdset),
		PathParamConstraints: extractPathParamConstraints(fdset),
		EnumValueMap:         valueMap,
	}, nil
}

// rejectPartialBodySelectors fails on body selectors other than "" (no
// body) and "*" (whole message). Partial selectors would need sub-message
// binding semantics nothing downstream implements, so they are an error
// rather than a guess.
func rejectPartialBodySelectors(fdset *descriptor.FileDescriptorSet) error {
	for _, file := range fdset.File {
		for _, svc := range file.Service {
			for _, method := range svc.Method {
				body := descriptor.BodySelector(method)
				if body != "" && body != "*" {
					return &UnsupportedBodySelectorError{
						Method: method.Name,
						Body:   body,
					}
				}
			}
		}
	}
	return nil
}

func extractStreamingOps(fdset *descriptor.FileDescriptorSet) []StreamingOp {
	var ops []StreamingOp
	for _, file := range fdset.File {
		for _, svc := range file.Service {
			for _, method := range svc.Method {
				if !method.ServerStreaming {
					continue
				}
				pattern := descriptor.HTTPPatternOf(method)
				if pattern == nil {
					continue
				}
				ops = append(ops, StreamingOp{
					Method: pattern.Verb.String(),
					Path:   pattern.Path,
				})
			}
		}
	}
	return ops
}

func extractOperationIDs(fdset *descriptor.FileDescriptorSet) []OperationEntry {
	var entries []OperationEntry
	for _, file := range fdset.File {
		for _, svc := range file.Service {
			for _, method := range svc.Method {
				if descriptor.HTTPPatternOf(method) == nil {
					continue
				}
				entries = append(entries, OperationEntry{
					MethodName:  method.Name,
					OperationID: svc.Name + "_" + method.Name,
				})
			}
		}
	}
	return entries
}

func extractFieldConstraints(fdset *descriptor.FileDescriptorSet) []SchemaConstraints {
	var result []SchemaConstraints
	for _, file := range fdset.File {
		collectMessageConstraints(&result, file.Package, file.MessageType)
	}
	return result
}

func collectMessageConstraints(result *[]SchemaConstraints, parentPath string, messages []*descriptor.DescriptorProto) {
	for _, msg := range messages {
		schema := parentPath + "." + msg.Name

		var fields []FieldConstraint
		for _, field := range msg.Field {
			if fc := fieldToConstraint(field); fc != nil {
				fields = append(fields, *fc)
			}
		}
		if len(fields) > 0 {
			*result = append(*result, SchemaConstraints{Schema: schema, Fields: fields})
		}

		collectMessageConstraints(result, schema, msg.NestedType)
	}
}

func satAddU64(v uint64) uint64 {
	if v == ^uint64(0) {
		return v
	}
	return v + 1
}

func satSubU64(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	return v - 1
}

// fieldToConstraint translates one field's validate.rules into exactly one
// FieldConstraint shape, or nil when the field carries no mapped rule.
func fieldToConstraint(field *descriptor.FieldDescriptorProto) *FieldConstraint {
	if field.Options == nil || field.Options.Rules == nil {
		return nil
	}
	rules := field.Options.Rules
	camelName := strcase.ToLowerCamel(field.Name)

	msgRequired := rules.Message != nil && rules.Message.Required

	if sr := rules.String; sr != nil {
		hasContent := sr.MinLen != nil || sr.MaxLen != nil ||
			sr.Pattern != "" || len(sr.In) > 0 || sr.UUID
		if hasContent || msgRequired {
			impliedRequired := (sr.MinLen != nil && *sr.MinLen >= 1) || len(sr.In) > 0
			return &FieldConstraint{
				Field:      camelName,
				Min:        sr.MinLen,
				Max:        sr.MaxLen,
				Pattern:    sr.Pattern,
				EnumValues: sr.In,
				Required:   msgRequired || impliedRequired,
				IsUUID:     sr.UUID,
			}
		}
	}

	// int32: widen to int64 so exclusive-to-inclusive conversion cannot
	// overflow at the extremes.
	if ir := rules.Int32; ir != nil {
		var min, max *int64
		if ir.Gte != nil {
			v := int64(*ir.Gte)
			min = &v
		} else if ir.Gt != nil {
			v := int64(*ir.Gt) + 1
			min = &v
		}
		if ir.Lte != nil {
			v := int64(*ir.Lte)
			max = &v
		} else if ir.Lt != nil {
			v := int64(*ir.Lt) - 1
			max = &v
		}
		if min != nil || max != nil {
			return &FieldConstraint{
				Field:     camelName,
				SignedMin: min,
				SignedMax: max,
				Required:  msgRequired,
				IsNumeric: true,
			}
		}
	}

	// uint32: saturate lt=0 instead of underflowing.
	if ur := rules.Uint32; ur != nil {
		var min, max *uint64
		if ur.Gte != nil {
			v := uint64(*ur.Gte)
			min = &v
		} else if ur.Gt != nil {
			v := uint64(*ur.Gt) + 1
			min = &v
		}
		if ur.Lte != nil {
			v := uint64(*ur.Lte)
			max = &v
		} else if ur.Lt != nil {
			v := satSubU64(uint64(*ur.Lt))
			max = &v
		}
		if min != nil || max != nil {
			return &FieldConstraint{
				Field:     camelName,
				Min:       min,
				Max:       max,
				Required:  msgRequired,
				IsNumeric: true,
			}
		}
	}

	// uint64: only propagate bounds that fit the JSON-safe integer
	// envelope, so no consumer silently rounds them.
	if ur := rules.Uint64; ur != nil {
		var min, max *uint64
		if ur.Gte != nil {
			min = ur.Gte
		} else if ur.Gt != nil {
			v := satAddU64(*ur.Gt)
			min = &v
		}
		if ur.Lte != nil {
			max = ur.Lte
		} else if ur.Lt != nil {
			v := satSubU64(*ur.Lt)
			max = &v
		}

		fitsInJSON := max != nil && *max <= JSONSafeIntMax
		if fitsInJSON || msgRequired {
			fc := &FieldConstraint{
				Field:     camelName,
				Required:  msgRequired,
				IsNumeric: fitsInJSON,
			}
			if fitsInJSON {
				if min != nil && *min > 0 {
					fc.Min = min
				}
				fc.Max = max
			}
			return fc
		}
	}

	// enum: not_in containing 0 means "must not be UNSPECIFIED", which
	// maps to a plain required flag.
	if er := rules.Enum; er != nil {
		enumRequired := false
		for _, v := range er.NotIn {
			if v == 0 {
				enumRequired = true
				break
			}
		}
		if enumRequired || msgRequired {
			return &FieldConstraint{
				Field:    camelName,
				Required: true,
			}
		}
	}

	if msgRequired {
		isUUID := field.Type == descriptor.TypeMessage &&
			strings.HasSuffix(field.TypeName, ".UUID")
		return &FieldConstraint{
			Field:    camelName,
			Required: true,
			IsUUID:   isUUID,
		}
	}

	return nil
}

type prefixEnum struct {
	fqn      string
	stripped []string
}

func extractEnumRewrites(fdset *descriptor.FileDescriptorSet) ([]EnumRewrite, map[string]string) {
	var prefixEnums []prefixEnum

	for _, file := range fdset.File {
		for _, enum := range file.EnumType {
			fqn := "." + file.Package + "." + enum.Name
			values := enumValueNames(enum)

			prefix, ok := detectEnumPrefix(values)
			if !ok {
				continue
			}

			stripped := make([]string, len(values))
			for i, v := range values {
				stripped[i] = strings.ToLower(v[len(prefix):])
			}
			prefixEnums = append(prefixEnums, prefixEnum{fqn: fqn, stripped: stripped})
		}
	}

	if len(prefixEnums) == 0 {
		return nil, map[string]string{}
	}

	valueMap := make(map[string]string)
	for _, file := range fdset.File {
		for _, enum := range file.EnumType {
			values := enumValueNames(enum)
			prefix, ok := detectEnumPrefix(values)
			if !ok {
				continue
			}
			for _, raw := range values {
				valueMap[raw] = strings.ToLower(strings.TrimPrefix(raw, prefix))
			}
		}
	}

	var rewrites []EnumRewrite
	for _, file := range fdset.File {
		collectEnumRewriteFields(&rewrites, file.Package, file.MessageType, prefixEnums)
	}

	return rewrites, valueMap
}

func enumValueNames(enum *descriptor.EnumDescriptorProto) []string {
	names := make([]string, 0, len(enum.Value))
	for _, v := range enum.Value {
		names = append(names, v.Name)
	}
	return names
}

func collectEnumRewriteFields(rewrites *[]EnumRewrite, parentPath string, messages []*descriptor.DescriptorProto, prefixEnums []prefixEnum) {
	for _, msg := range messages {
		schema := parentPath + "." + msg.Name

		for _, field := range msg.Field {
			if field.Type != descriptor.TypeEnum || field.TypeName == "" {
				continue
			}
			for _, pe := range prefixEnums {
				if pe.fqn != field.TypeName {
					continue
				}
				*rewrites = append(*rewrites, EnumRewrite{
					Schema: schema,
					Field:  strcase.ToLowerCamel(field.Name),
					Values: pe.stripped,
				})
				break
			}
		}

		collectEnumRewriteFields(rewrites, schema, msg.NestedType, prefixEnums)
	}
}

// detectEnumPrefix finds the common prefix shared by all enum value names,
// truncated at its last underscore. Prefixes shorter than 3 characters do
// not count.
func detectEnumPrefix(values []string) (string, bool) {
	if len(values) == 0 {
		return "", false
	}

	common := values[0]
	for _, v := range values[1:] {
		for !strings.HasPrefix(v, common) {
			common = common[:len(common)-1]
			if common == "" {
				return "", false
			}
		}
	}

	idx := strings.LastIndex(common, "_")
	if idx < 0 {
		return "", false
	}
	prefix := common[:idx+1]
	if len(prefix) < 3 {
		return "", false
	}
	return prefix, true
}

func extractRedirectPaths(fdset *descriptor.FileDescriptorSet) []string {
	var redirectTypes []string
	for _, file := range fdset.File {
		collectRedirectMessageTypes(&redirectTypes, file.Package, file.MessageType)
	}
	if len(redirectTypes) == 0 {
		return nil
	}

	var paths []string
	for _, file := range fdset.File {
		for _, svc := range file.Service {
			for _, method := range svc.Method {
				found := false
				for _, t := range redirectTypes {
					if t == method.OutputType {
						found = true
						break
					}
				}
				if !found {
					continue
				}
				if pattern := descriptor.HTTPPatternOf(method); pattern != nil {
					paths = append(paths, pattern.Path)
				}
			}
		}
	}
	return paths
}

// collectRedirectMessageTypes finds messages with a redirect_url field;
// their methods answer with HTTP redirects at runtime.
func collectRedirectMessageTypes(result *[]string, pkg string, messages []*descriptor.DescriptorProto) {
	for _, msg := range messages {
		for _, f := range msg.Field {
			if f.Name == "redirect_url" {
				*result = append(*result, "."+pkg+"."+msg.Name)
				break
			}
		}
		collectRedirectMessageTypes(result, pkg, msg.NestedType)
	}
}

// detectUUIDSchema finds the UUID wrapper type: a single-field message
// whose field is named "value", typed string, with a hex-class validation
// pattern. First match wins.
func detectUUIDSchema(fdset *descriptor.FileDescriptorSet) string {
	for _, file := range fdset.File {
		for _, msg := range file.MessageType {
			if len(msg.Field) != 1 {
				continue
			}
			field := msg.Field[0]
			if field.Name != "value" || field.Type != descriptor.TypeString {
				continue
			}
			if field.Options == nil || field.Options.Rules == nil || field.Options.Rules.String == nil {
				continue
			}
			if strings.Contains(field.Options.Rules.String.Pattern, "0-9a-fA-F") {
				return file.Package + "." + msg.Name
			}
		}
	}
	return ""
}

func extractPathParamConstraints(fdset *descriptor.FileDescriptorSet) []PathParamInfo {
	messages := make(map[string][]*descriptor.FieldDescriptorProto)
	for _, file := range fdset.File {
		collectMessageFields(messages, file.Package, file.MessageType)
	}

	var result []PathParamInfo
	for _, file := range fdset.File {
		for _, svc := range file.Service {
			for _, method := range svc.Method {
				pattern := descriptor.HTTPPatternOf(method)
				if pattern == nil {
					continue
				}

				paramNames := templateVars(pattern.Path)
				if len(paramNames) == 0 {
					continue
				}

				fields := messages[method.InputType]
				var params []PathParamConstraint
				for _, param := range paramNames {
					root := param
					if i := strings.Index(param, "."); i >= 0 {
						root = param[:i]
					}
					var field *descriptor.FieldDescriptorProto
					for _, f := range fields {
						if f.Name == root {
							field = f
							break
						}
					}
					if field == nil {
						continue
					}

					isUUID := field.Type == descriptor.TypeMessage &&
						strings.HasSuffix(field.TypeName, ".UUID")

					var min, max *uint64
					if field.Options != nil && field.Options.Rules != nil && field.Options.Rules.String != nil {
						min = field.Options.Rules.String.MinLen
						max = field.Options.Rules.String.MaxLen
					}

					params = append(params, PathParamConstraint{
						Name:   camelTemplateVar(param),
						IsUUID: isUUID,
						Min:    min,
						Max:    max,
					})
				}

				if len(params) > 0 {
					result = append(result, PathParamInfo{
						Path:   CamelPathTemplate(pattern.Path),
						Params: params,
					})
				}
			}
		}
	}
	return result
}

// templateVars returns the {var} names of a path template in order.
func templateVars(path string) []string {
	var names []string
	rest := path
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			break
		}
		rest = rest[start+1:]
		end := strings.Index(rest, "}")
		if end < 0 {
			break
		}
		names = append(names, rest[:end])
		rest = rest[end+1:]
	}
	return names
}

// camelTemplateVar camelizes the root segment of a template variable,
// keeping any trailing ".sub" segments untouched.
func camelTemplateVar(v string) string {
	if root, suffix, ok := strings.Cut(v, "."); ok {
		return strcase.ToLowerCamel(root) + "." + suffix
	}
	return strcase.ToLowerCamel(v)
}

// CamelPathTemplate converts the template variables of a path to the
// document's camelCase naming.
func CamelPathTemplate(path string) string {
	var b strings.Builder
	b.Grow(len(path))
	rest := path
	for {
		start := strings.Index(rest, "{")
		if start < 0 {
			break
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			break
		}
		end += start
		b.WriteString(rest[:start+1])
		b.WriteString(camelTemplateVar(rest[start+1 : end]))
		b.WriteString("}")
		rest = rest[end+1:]
	}
	b.WriteString(rest)
	return b.String()
}

func collectMessageFields(result map[string][]*descriptor.FieldDescriptorProto, parentPath string, messages []*descriptor.DescriptorProto) {
	for _, msg := range messages {
		fqn := "." + parentPath + "." + msg.Name
		result[fqn] = msg.Field
		collectMessageFields(result, fqn[1:], msg.NestedType)
	}
}
