package patch

import (
	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
	"github.com/outrigger-dev/grpc-openapi-patch/internal/document"
)

// PlainTextEndpoint is an endpoint answering text/plain instead of JSON.
type PlainTextEndpoint struct {
	Path    string
	Example string
}

// Server is an entry for the servers block.
type Server struct {
	URL         string
	Description string
}

// Contact is the info.contact block.
type Contact struct {
	Name  string
	Email string
	URL   string
}

// License is the info.license block.
type License struct {
	Name string
	URL  string
}

// ExternalDocs is the externalDocs block.
type ExternalDocs struct {
	URL         string
	Description string
}

// Info holds overrides for the document's info block.
type Info struct {
	Title          string
	Version        string
	Description    string
	Contact        *Contact
	License        *License
	ExternalDocs   *ExternalDocs
	TermsOfService string
}

// Transforms holds the per-phase-group on/off switches. All default to
// enabled; see DefaultTransforms.
type Transforms struct {
	UpgradeTo31            bool
	AnnotateSSE            bool
	InjectValidation       bool
	AddSecurity            bool
	InlineRequestBodies    bool
	FlattenUUIDRefs        bool
	NormalizeLineEndings   bool
	InjectServers          bool
	RewriteCreateResponses bool
	AnnotateFieldAccess    bool
}

// DefaultTransforms returns the toggle set with every transform enabled.
func DefaultTransforms() Transforms {
	return Transforms{
		UpgradeTo31:            true,
		AnnotateSSE:            true,
		InjectValidation:       true,
		AddSecurity:            true,
		InlineRequestBodies:    true,
		FlattenUUIDRefs:        true,
		NormalizeLineEndings:   true,
		InjectServers:          true,
		RewriteCreateResponses: true,
		AnnotateFieldAccess:    true,
	}
}

// Config controls the patch pipeline for one run. Built once, read only.
type Config struct {
	// Metadata is the discovery result the phases consult.
	Metadata *discover.Metadata

	// Raw proto method names, resolved to operation IDs when Apply runs.
	UnimplementedMethods []string
	PublicMethods        []string
	DeprecatedMethods    []string

	// ErrorSchemaRef is the $ref of the shared error response schema.
	ErrorSchemaRef string

	PlainTextEndpoints []PlainTextEndpoint
	MetricsPath        string
	ReadinessPath      string

	// BearerDescription overrides the bearer scheme description.
	BearerDescription string

	Servers []Server
	Info    Info

	// Extra substring patterns for writeOnly/readOnly annotation.
	WriteOnlyFields []string
	ReadOnlyFields  []string

	Transforms Transforms
}

// NewConfig returns a config with every transform enabled and default
// settings.
func NewConfig(meta *discover.Metadata) *Config {
	return &Config{
		Metadata:       meta,
		ErrorSchemaRef: DefaultErrorSchemaRef,
		Transforms:     DefaultTransforms(),
	}
}

// step is one entry of the ordered pipeline. The whole ordering contract
// lives in the steps slice built by pipeline, so it can be inspected and
// tested as data.
type step struct {
	name    string
	enabled bool
	apply   func(doc map[string]any)
}

// resolvedOps holds the method lists after operation-ID resolution.
type resolvedOps struct {
	unimplemented []string
	public        []string
	deprecated    []string
}

func (c *Config) resolveOps() (*resolvedOps, error) {
	r := &resolvedOps{}
	var err error
	if r.unimplemented, err = resolveList(c.Metadata, c.UnimplementedMethods); err != nil {
		return nil, err
	}
	if r.public, err = resolveList(c.Metadata, c.PublicMethods); err != nil {
		return nil, err
	}
	if r.deprecated, err = resolveList(c.Metadata, c.DeprecatedMethods); err != nil {
		return nil, err
	}
	return r, nil
}

func resolveList(meta *discover.Metadata, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return discover.ResolveOperationIDs(meta, names)
}

// pipeline builds the ordered step list for one run.
//
// Ordering dependencies:
//  1. structural: 3.0 → 3.1 upgrade and server/info injection run first so
//     every later phase sees the final structural shape.
//  2. streaming: must precede response fixes so they see the final
//     content-type keys.
//  3. responses: status codes, plain text, redirects, error schemas,
//     201 rewrite.
//  4. enum rewrites before sentinel stripping — the rewritten arrays
//     still carry the "unspecified" value in its new spelling.
//  5. markers: 501/deprecated; after phase 3 so the added 501 reuses the
//     ensured error schema.
//  6. security.
//  7. cleanup: removes empty bodies before constraint injection.
//  8. UUID flattening before validation, so flattened fields receive
//     their constraints, and before path stripping, which matches final
//     path keys.
//  9. validation injection while schemas still carry their original
//     property set.
//  10. path-field stripping after injection (clones carry constraints),
//     before inlining (inlining sees stripped shapes).
//  11. body inlining and orphan pruning last among content transforms.
//  12. line ending normalization, always last.
func (c *Config) pipeline(meta *discover.Metadata, ops *resolvedOps) []step {
	t := c.Transforms
	return []step{
		{"oas31/upgrade-version", t.UpgradeTo31, func(doc map[string]any) {
			upgradeVersion(doc)
			convertNullable(doc)
		}},
		{"oas31/servers-info", t.InjectServers, func(doc map[string]any) {
			injectServersAndInfo(doc, c.Servers, &c.Info)
		}},
		{"streaming/annotate-sse", t.AnnotateSSE, func(doc map[string]any) {
			annotateSSE(doc, meta.StreamingOps)
		}},
		{"responses/fixups", true, func(doc map[string]any) {
			patchEmptyResponses(doc)
			removeRedundantQueryParams(doc)
			patchPlainTextEndpoints(doc, c.PlainTextEndpoints)
			patchMetricsResponseHeaders(doc, c.MetricsPath)
			patchReadinessProbeResponses(doc, c.ReadinessPath)
			patchRedirectEndpoints(doc, meta.RedirectPaths)
			ensureRESTErrorSchema(doc, c.ErrorSchemaRef)
			rewriteDefaultErrorResponses(doc, c.ErrorSchemaRef)
		}},
		{"responses/create-201", t.RewriteCreateResponses, rewriteCreateResponses},
		{"enums/rewrite-and-strip", true, func(doc map[string]any) {
			rewriteEnumValues(doc, meta)
			stripUnspecifiedFromQueryEnums(doc)
		}},
		{"markers/unimplemented", len(ops.unimplemented) > 0, func(doc map[string]any) {
			markUnimplementedOperations(doc, ops.unimplemented, c.ErrorSchemaRef)
		}},
		{"markers/deprecated", len(ops.deprecated) > 0, func(doc map[string]any) {
			markDeprecatedOperations(doc, ops.deprecated)
		}},
		{"security/bearer", t.AddSecurity, func(doc map[string]any) {
			addSecuritySchemes(doc, ops.public, c.BearerDescription)
		}},
		{"cleanup/descriptions", true, func(doc map[string]any) {
			cleanTagDescriptions(doc)
			populateOperationSummaries(doc)
			removeEmptyRequestBodies(doc)
			removeUnusedEmptySchemas(doc)
			removeFormatEnum(doc)
		}},
		{"uuid/flatten-paths", true, flattenUUIDPathTemplates},
		{"uuid/flatten-refs", t.FlattenUUIDRefs, func(doc map[string]any) {
			flattenUUIDRefs(doc, meta.UUIDSchema)
		}},
		{"uuid/query-params", true, simplifyUUIDQueryParams},
		{"validation/constraints", t.InjectValidation, func(doc map[string]any) {
			injectValidationConstraints(doc, meta.FieldConstraints)
		}},
		{"validation/field-access", t.AnnotateFieldAccess, func(doc map[string]any) {
			annotateFieldAccess(doc, c.WriteOnlyFields, c.ReadOnlyFields)
		}},
		{"validation/durations", true, annotateDurationFields},
		{"bodies/strip-path-fields", true, func(doc map[string]any) {
			stripPathFieldsFromBody(doc)
			enrichPathParams(doc, meta.PathParamConstraints)
		}},
		{"bodies/inline", t.InlineRequestBodies, inlineRequestBodies},
		{"bodies/enrich-shared", !t.InlineRequestBodies, enrichSchemaExamples},
		{"bodies/finalize", true, func(doc map[string]any) {
			enrichInlineRequestBodyExamples(doc)
			removeEmptyInlinedRequestBodies(doc)
			removeOrphanedSchemas(doc)
		}},
		{"normalize/line-endings", t.NormalizeLineEndings, normalizeLineEndings},
	}
}

// Apply runs the configured pipeline over an OpenAPI YAML document and
// returns the patched YAML.
//
// The run can fail only at document parse, method-name resolution, and
// final serialization; each individual phase is total.
func Apply(input []byte, cfg *Config) ([]byte, error) {
	doc, err := document.Parse(input)
	if err != nil {
		return nil, err
	}

	ops, err := cfg.resolveOps()
	if err != nil {
		return nil, err
	}

	for _, s := range cfg.pipeline(cfg.Metadata, ops) {
		if !s.enabled {
			continue
		}
		s.apply(doc)
	}

	return document.Render(doc)
}
