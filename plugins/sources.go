package plugins

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// descriptorNames lists the files looked up inside a module directory, in
// priority order.
var descriptorNames = []string{"module.json", "module.yaml", "module.yml", "module.toml"}

// LoadSourceFile reads a descriptor from disk and returns it as a source
// entry in JSON wire form. YAML and TOML descriptors are converted without
// applying defaults so manifest.ParseJSON stays the single place defaults
// are filled.
func LoadSourceFile(path, fallbackName string) (manifest.SourceEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return manifest.SourceEntry{}, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return manifest.SourceEntry{}, fmt.Errorf("plugin: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest.SourceEntry{}, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	payload := string(data)
	switch {
	case isYAMLFile(path):
		payload, err = yamlToJSON(data)
	case isTOMLFile(path):
		payload, err = tomlToJSON(data)
	}
	if err != nil {
		return manifest.SourceEntry{}, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return manifest.SourceEntry{
		Name:         fallbackName,
		ManifestJSON: payload,
		Path:         filepath.Clean(path),
	}, nil
}

// LoadSourceDir scans a modules directory for descriptors. Each
// subdirectory contributes its module.json (or module.yaml / module.toml)
// named after the directory; loose descriptor files are named after their
// stem. A descriptor that cannot be read or converted is returned as a
// failure and the rest of the directory still loads. Missing directories
// are treated as "no modules" to simplify startup.
func LoadSourceDir(dir string) ([]manifest.SourceEntry, []LoadFailure, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var (
		sources  []manifest.SourceEntry
		failures []LoadFailure
	)
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(trimmed, name)
		fallback := stem(name)
		if entry.IsDir() {
			descriptor, ok := findDescriptor(path)
			if !ok {
				continue
			}
			path, fallback = descriptor, name
		} else if !isJSONFile(name) && !isYAMLFile(name) && !isTOMLFile(name) {
			continue
		}
		source, err := LoadSourceFile(path, fallback)
		if err != nil {
			failures = append(failures, LoadFailure{Module: fallback, Path: filepath.Clean(path), Err: err})
			continue
		}
		sources = append(sources, source)
	}
	sortByPath(sources)
	return sources, failures, nil
}

func findDescriptor(dir string) (string, bool) {
	for _, candidate := range descriptorNames {
		path := filepath.Join(dir, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func yamlToJSON(data []byte) (string, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", &manifest.ParseError{Format: "yaml", Err: err}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", &manifest.ParseError{Format: "yaml", Err: err}
	}
	return string(payload), nil
}

func tomlToJSON(data []byte) (string, error) {
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", &manifest.ParseError{Format: "toml", Err: err}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", &manifest.ParseError{Format: "toml", Err: err}
	}
	return string(payload), nil
}

func sortByPath(sources []manifest.SourceEntry) {
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Path < sources[j].Path })
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func isJSONFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".json")
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

func isTOMLFile(name string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(name)), ".toml")
}
