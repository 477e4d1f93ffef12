package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultVersion is assigned to manifests that do not declare a version.
const DefaultVersion = "0.0.0"

// ErrParse is matched by every *ParseError via errors.Is.
var ErrParse = errors.New("manifest: invalid descriptor")

// Routes declares the base paths a module owns in each router.
type Routes struct {
	Frontend string `json:"frontend" yaml:"frontend"`
	API      string `json:"api" yaml:"api"`
}

// Manifest is the normalized description of a module. Values returned by
// the parsers never share slices with their input or with each other.
type Manifest struct {
	Name         string   `json:"name" yaml:"name"`
	Version      string   `json:"version" yaml:"version"`
	Enabled      bool     `json:"enabled" yaml:"enabled"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Routes       Routes   `json:"routes" yaml:"routes"`
}

// Clone returns a deep copy of the manifest.
func (m Manifest) Clone() Manifest {
	clone := m
	clone.Dependencies = append([]string{}, m.Dependencies...)
	return clone
}

// DependsOn reports whether the manifest declares name as a dependency.
func (m Manifest) DependsOn(name string) bool {
	for _, dep := range m.Dependencies {
		if dep == name {
			return true
		}
	}
	return false
}

// ParseError reports a descriptor that could not be decoded.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest: parse %s: %v", e.Format, e.Err)
}

// Unwrap exposes both ErrParse and the decoder error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// rawManifest distinguishes absent keys (nil) from zero values so defaults
// only apply to what the descriptor left out.
type rawManifest struct {
	Name         *string    `json:"name" yaml:"name" toml:"name"`
	Version      *string    `json:"version" yaml:"version" toml:"version"`
	Enabled      *bool      `json:"enabled" yaml:"enabled" toml:"enabled"`
	Dependencies []string   `json:"dependencies" yaml:"dependencies" toml:"dependencies"`
	Routes       *rawRoutes `json:"routes" yaml:"routes" toml:"routes"`
}

type rawRoutes struct {
	Frontend *string `json:"frontend" yaml:"frontend" toml:"frontend"`
	API      *string `json:"api" yaml:"api" toml:"api"`
}

func (raw rawManifest) withDefaults() Manifest {
	m := Manifest{
		Name:         stringOr(raw.Name, ""),
		Version:      stringOr(raw.Version, DefaultVersion),
		Dependencies: append([]string{}, raw.Dependencies...),
	}
	if raw.Enabled != nil {
		m.Enabled = *raw.Enabled
	}
	if raw.Routes != nil {
		m.Routes = Routes{
			Frontend: stringOr(raw.Routes.Frontend, ""),
			API:      stringOr(raw.Routes.API, ""),
		}
	}
	return m
}

func stringOr(value *string, fallback string) string {
	if value == nil {
		return fallback
	}
	return *value
}

var (
	errNotObject = errors.New("descriptor must be an object")
	errNull      = errors.New("descriptor is null")
)

// ParseJSON decodes a module.json payload and fills every absent field with
// its default. Only JSON syntax is checked: a top level that is not an
// object yields an all-default manifest, and a known key holding the wrong
// type falls back to that key's default. Strict checks live in contracts.
func ParseJSON(content string) (Manifest, error) {
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return Manifest{}, &ParseError{Format: "json", Err: err}
	}
	if doc == nil {
		return Manifest{}, &ParseError{Format: "json", Err: errNull}
	}
	fields, ok := doc.(map[string]any)
	if !ok {
		return rawManifest{}.withDefaults(), nil
	}
	return rawFromFields(fields).withDefaults(), nil
}

// rawFromFields keeps the known keys whose values have the expected JSON
// type. Everything else is treated as absent.
func rawFromFields(fields map[string]any) rawManifest {
	var raw rawManifest
	raw.Name = stringField(fields, "name")
	raw.Version = stringField(fields, "version")
	if enabled, ok := fields["enabled"].(bool); ok {
		raw.Enabled = &enabled
	}
	if deps, ok := fields["dependencies"].([]any); ok {
		names := make([]string, 0, len(deps))
		for _, dep := range deps {
			name, ok := dep.(string)
			if !ok {
				names = nil
				break
			}
			names = append(names, name)
		}
		raw.Dependencies = names
	}
	if routes, ok := fields["routes"].(map[string]any); ok {
		raw.Routes = &rawRoutes{
			Frontend: stringField(routes, "frontend"),
			API:      stringField(routes, "api"),
		}
	}
	return raw
}

func stringField(fields map[string]any, key string) *string {
	value, ok := fields[key].(string)
	if !ok {
		return nil
	}
	return &value
}

// ParseYAML decodes a module.yaml payload with the same defaults as ParseJSON.
func ParseYAML(data []byte) (Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, &ParseError{Format: "yaml", Err: errors.New("payload is empty")}
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Manifest{}, &ParseError{Format: "yaml", Err: err}
	}
	if len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return Manifest{}, &ParseError{Format: "yaml", Err: errNotObject}
	}
	var raw rawManifest
	if err := node.Content[0].Decode(&raw); err != nil {
		return Manifest{}, &ParseError{Format: "yaml", Err: err}
	}
	return raw.withDefaults(), nil
}

// ParseTOML decodes a module.toml payload with the same defaults as ParseJSON.
func ParseTOML(data []byte) (Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, &ParseError{Format: "toml", Err: errors.New("payload is empty")}
	}
	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Manifest{}, &ParseError{Format: "toml", Err: err}
	}
	return raw.withDefaults(), nil
}
