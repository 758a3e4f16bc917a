// Package settings loads the project TOML configuration controlling the
// patch pipeline.
package settings

import (
	"fmt"
	"os"
	"strings"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"

	"github.com/outrigger-dev/grpc-openapi-patch/internal/discover"
	"github.com/outrigger-dev/grpc-openapi-patch/internal/patch"
)

// Settings contains all project settings read from the TOML file.
type Settings struct {
	// ErrorSchemaRef is the $ref of the shared error response schema.
	ErrorSchemaRef string `toml:"error_schema_ref" default:"#/components/schemas/ErrorResponse"`

	// Method lists accept short ("CreateUser") or qualified
	// ("UserService.CreateUser") proto method names.
	UnimplementedMethods []string `toml:"unimplemented_methods"`
	PublicMethods        []string `toml:"public_methods"`
	DeprecatedMethods    []string `toml:"deprecated_methods"`

	PlainTextEndpoints []PlainTextEndpoint `toml:"plain_text_endpoints"`
	MetricsPath        string              `toml:"metrics_path"`
	ReadinessPath      string              `toml:"readiness_path"`

	BearerDescription string `toml:"bearer_description"`

	Servers []Server `toml:"servers"`
	Info    *Info    `toml:"info" default:"{}"`

	WriteOnlyFields []string `toml:"write_only_fields"`
	ReadOnlyFields  []string `toml:"read_only_fields"`

	Transforms *Transforms `toml:"transforms" default:"{}"`
}

// PlainTextEndpoint is an endpoint answering text/plain instead of JSON.
type PlainTextEndpoint struct {
	Path    string `toml:"path"`
	Example string `toml:"example"`
}

// Server is one entry for the servers block.
type Server struct {
	URL         string `toml:"url"`
	Description string `toml:"description"`
}

// Info holds overrides merged into the document's info block.
type Info struct {
	Title          string        `toml:"title"`
	Version        string        `toml:"version"`
	Description    string        `toml:"description"`
	Contact        *Contact      `toml:"contact"`
	License        *License      `toml:"license"`
	ExternalDocs   *ExternalDocs `toml:"external_docs"`
	TermsOfService string        `toml:"terms_of_service"`
}

// Contact is the info.contact block.
type Contact struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
	URL   string `toml:"url"`
}

// License is the info.license block.
type License struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// ExternalDocs is the externalDocs block.
type ExternalDocs struct {
	URL         string `toml:"url"`
	Description string `toml:"description"`
}

// Transforms holds the per-phase-group toggles. Pointers distinguish
// "unset, use the default" from an explicit false in the TOML file.
type Transforms struct {
	UpgradeTo31            *bool `toml:"upgrade_to_3_1" default:"true"`
	AnnotateSSE            *bool `toml:"annotate_sse" default:"true"`
	InjectValidation       *bool `toml:"inject_validation" default:"true"`
	AddSecurity            *bool `toml:"add_security" default:"true"`
	InlineRequestBodies    *bool `toml:"inline_request_bodies" default:"true"`
	FlattenUUIDRefs        *bool `toml:"flatten_uuid_refs" default:"true"`
	NormalizeLineEndings   *bool `toml:"normalize_line_endings" default:"true"`
	InjectServers          *bool `toml:"inject_servers" default:"true"`
	RewriteCreateResponses *bool `toml:"rewrite_create_responses" default:"true"`
	AnnotateFieldAccess    *bool `toml:"annotate_field_access" default:"true"`
}

// Load reads settings from the given TOML file. An empty filename yields
// the defaults.
func Load(filename string) (*Settings, error) {
	var settings Settings

	if filename != "" {
		file, err := os.ReadFile(filename)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(file, &settings); err != nil {
			return nil, err
		}
	}

	defaultSettings, err := loadDefaultSettings()
	if err != nil {
		return nil, err
	}
	if err := mergo.Merge(&settings, defaultSettings); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return &settings, nil
}

func loadDefaultSettings() (*Settings, error) {
	s := &Settings{}
	if err := defaults.Set(s); err != nil {
		return nil, err
	}

	return s, nil
}

// Validate checks field shapes that would otherwise fail deep inside the
// pipeline.
func (s *Settings) Validate() error {
	if !strings.HasPrefix(s.ErrorSchemaRef, "#/components/schemas/") {
		return fmt.Errorf("error_schema_ref %q must point into #/components/schemas/", s.ErrorSchemaRef)
	}
	for _, e := range s.PlainTextEndpoints {
		if e.Path == "" {
			return fmt.Errorf("plain_text_endpoints entries need a path")
		}
	}
	for _, srv := range s.Servers {
		if srv.URL == "" {
			return fmt.Errorf("servers entries need a url")
		}
	}
	return nil
}

// ToPatchConfig builds the pipeline configuration from the settings and
// the discovery result.
func (s *Settings) ToPatchConfig(meta *discover.Metadata) *patch.Config {
	cfg := patch.NewConfig(meta)

	cfg.ErrorSchemaRef = s.ErrorSchemaRef
	cfg.UnimplementedMethods = s.UnimplementedMethods
	cfg.PublicMethods = s.PublicMethods
	cfg.DeprecatedMethods = s.DeprecatedMethods
	cfg.MetricsPath = s.MetricsPath
	cfg.ReadinessPath = s.ReadinessPath
	cfg.BearerDescription = s.BearerDescription
	cfg.WriteOnlyFields = s.WriteOnlyFields
	cfg.ReadOnlyFields = s.ReadOnlyFields

	for _, e := range s.PlainTextEndpoints {
		cfg.PlainTextEndpoints = append(cfg.PlainTextEndpoints, patch.PlainTextEndpoint{
			Path:    e.Path,
			Example: e.Example,
		})
	}
	for _, srv := range s.Servers {
		cfg.Servers = append(cfg.Servers, patch.Server{
			URL:         srv.URL,
			Description: srv.Description,
		})
	}

	if s.Info != nil {
		cfg.Info.Title = s.Info.Title
		cfg.Info.Version = s.Info.Version
		cfg.Info.Description = s.Info.Description
		if c := s.Info.Contact; c != nil {
			cfg.Info.Contact = &patch.Contact{Name: c.Name, Email: c.Email, URL: c.URL}
		}
		if l := s.Info.License; l != nil {
			cfg.Info.License = &patch.License{Name: l.Name, URL: l.URL}
		}
		if e := s.Info.ExternalDocs; e != nil {
			cfg.Info.ExternalDocs = &patch.ExternalDocs{URL: e.URL, Description: e.Description}
		}
		cfg.Info.TermsOfService = s.Info.TermsOfService
	}

	if t := s.Transforms; t != nil {
		cfg.Transforms = patch.Transforms{
			UpgradeTo31:            enabled(t.UpgradeTo31),
			AnnotateSSE:            enabled(t.AnnotateSSE),
			InjectValidation:       enabled(t.InjectValidation),
			AddSecurity:            enabled(t.AddSecurity),
			InlineRequestBodies:    enabled(t.InlineRequestBodies),
			FlattenUUIDRefs:        enabled(t.FlattenUUIDRefs),
			NormalizeLineEndings:   enabled(t.NormalizeLineEndings),
			InjectServers:          enabled(t.InjectServers),
			RewriteCreateResponses: enabled(t.RewriteCreateResponses),
			AnnotateFieldAccess:    enabled(t.AnnotateFieldAccess),
		}
	}

	return cfg
}

func enabled(v *bool) bool {
	return v == nil || *v
}
