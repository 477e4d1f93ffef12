package contracts

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kingrea/fieldstack/internal/manifest"
	"golang.org/x/mod/semver"
)

var moduleNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// FieldError explains why a single manifest field is not well-formed.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ValidateManifest checks a parsed manifest against the strict module
// contract. Parsing already filled defaults, so an empty field here means
// the descriptor omitted it.
func ValidateManifest(m manifest.Manifest) []FieldError {
	var errs []FieldError
	switch {
	case m.Name == "":
		errs = append(errs, FieldError{Field: "name", Reason: "is required"})
	case !moduleNamePattern.MatchString(m.Name):
		errs = append(errs, FieldError{Field: "name", Reason: fmt.Sprintf("%q must be lowercase letters, digits, '.', '_' or '-'", m.Name)})
	}
	if !isSemVer(m.Version) {
		errs = append(errs, FieldError{Field: "version", Reason: fmt.Sprintf("%q is not a semantic version", m.Version)})
	}
	errs = append(errs, validateRoute("routes.frontend", m.Routes.Frontend)...)
	errs = append(errs, validateRoute("routes.api", m.Routes.API)...)

	seen := map[string]struct{}{}
	for index, dep := range m.Dependencies {
		field := fmt.Sprintf("dependencies[%d]", index)
		if strings.TrimSpace(dep) == "" {
			errs = append(errs, FieldError{Field: field, Reason: "is empty"})
			continue
		}
		if dep == m.Name {
			errs = append(errs, FieldError{Field: field, Reason: "references the module itself"})
		}
		if _, exists := seen[dep]; exists {
			errs = append(errs, FieldError{Field: field, Reason: fmt.Sprintf("duplicates %q", dep)})
		}
		seen[dep] = struct{}{}
	}
	return errs
}

func validateRoute(field, path string) []FieldError {
	if path == "" {
		return []FieldError{{Field: field, Reason: "is required"}}
	}
	if !strings.HasPrefix(path, "/") {
		return []FieldError{{Field: field, Reason: fmt.Sprintf("%q must start with /", path)}}
	}
	if strings.ContainsAny(path, " \t\n?#") {
		return []FieldError{{Field: field, Reason: fmt.Sprintf("%q contains whitespace, query or fragment", path)}}
	}
	return nil
}

// isSemVer accepts full major.minor.patch versions with or without a leading
// "v". The x/mod shorthands "v1" and "v1.2" are rejected.
func isSemVer(version string) bool {
	version = strings.TrimPrefix(version, "v")
	core, _, _ := strings.Cut(version, "-")
	core, _, _ = strings.Cut(core, "+")
	if strings.Count(core, ".") != 2 {
		return false
	}
	return semver.IsValid("v" + version)
}

// validateJSONShape reports known keys whose JSON types do not match the
// manifest schema. The parser treats such keys as absent, so the mismatch
// is only visible here.
func validateJSONShape(content string) []FieldError {
	var doc any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil
	}
	fields, ok := doc.(map[string]any)
	if !ok {
		return []FieldError{{Field: "manifest", Reason: "must be a JSON object"}}
	}
	var errs []FieldError
	for _, key := range []string{"name", "version"} {
		if !isType[string](fields[key]) {
			errs = append(errs, FieldError{Field: key, Reason: "must be a string"})
		}
	}
	if !isType[bool](fields["enabled"]) {
		errs = append(errs, FieldError{Field: "enabled", Reason: "must be a boolean"})
	}
	if deps, present := fields["dependencies"]; present && deps != nil {
		list, ok := deps.([]any)
		if !ok {
			errs = append(errs, FieldError{Field: "dependencies", Reason: "must be an array of strings"})
		}
		for index, dep := range list {
			if _, ok := dep.(string); !ok {
				errs = append(errs, FieldError{Field: fmt.Sprintf("dependencies[%d]", index), Reason: "must be a string"})
			}
		}
	}
	if routes, present := fields["routes"]; present && routes != nil {
		table, ok := routes.(map[string]any)
		if !ok {
			return append(errs, FieldError{Field: "routes", Reason: "must be an object"})
		}
		for _, key := range []string{"frontend", "api"} {
			if !isType[string](table[key]) {
				errs = append(errs, FieldError{Field: "routes." + key, Reason: "must be a string"})
			}
		}
	}
	return errs
}

// isType reports whether value is absent, null or a T.
func isType[T any](value any) bool {
	if value == nil {
		return true
	}
	_, ok := value.(T)
	return ok
}
