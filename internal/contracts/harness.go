package contracts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kingrea/fieldstack/internal/manifest"
)

// Report captures validation results for a module descriptor file.
type Report struct {
	Path     string
	Module   string
	Manifest manifest.Manifest
	Errors   []FieldError
}

// ValidateManifestFile reads, parses and validates a module.json,
// module.yaml or module.toml descriptor. Parse failures are returned as
// errors; contract violations, including JSON keys of the wrong type, are
// collected on the report.
func ValidateManifestFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest file: %w", err)
	}
	var (
		m     manifest.Manifest
		shape []FieldError
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err = manifest.ParseYAML(data)
	case ".toml":
		m, err = manifest.ParseTOML(data)
	default:
		m, err = manifest.ParseJSON(string(data))
		shape = validateJSONShape(string(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parse manifest file: %w", err)
	}
	return &Report{
		Path:     path,
		Module:   m.Name,
		Manifest: m,
		Errors:   append(shape, ValidateManifest(m)...),
	}, nil
}

// IsValid reports whether the validation passed.
func (r *Report) IsValid() bool {
	return r != nil && len(r.Errors) == 0
}

// ValidateEntry validates a discovered source entry. Like
// ValidateManifestFile it checks the manifest as written, so an entry that
// relies on its fallback name fails the name contract.
func ValidateEntry(entry manifest.SourceEntry) (*Report, error) {
	m, err := manifest.ParseJSON(entry.ManifestJSON)
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", entry.Path, err)
	}
	module := m.Name
	if module == "" {
		module = entry.Name
	}
	return &Report{
		Path:     entry.Path,
		Module:   module,
		Manifest: m,
		Errors:   append(validateJSONShape(entry.ManifestJSON), ValidateManifest(m)...),
	}, nil
}
