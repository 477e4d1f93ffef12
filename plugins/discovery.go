package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/kingrea/fieldstack/internal/module"
)

// LoadFailure records a module descriptor that could not be read or
// parsed. Other modules in the same directory are unaffected.
type LoadFailure struct {
	Module string `json:"module"`
	Path   string `json:"path"`
	Err    error  `json:"-"`
}

func (f LoadFailure) Error() string {
	return fmt.Sprintf("module %s (%s): %v", f.Module, f.Path, f.Err)
}

func (f LoadFailure) Unwrap() error {
	return f.Err
}

// MarshalJSON includes the error text.
func (f LoadFailure) MarshalJSON() ([]byte, error) {
	type failure LoadFailure
	reason := ""
	if f.Err != nil {
		reason = f.Err.Error()
	}
	return json.Marshal(struct {
		failure
		Reason string `json:"error"`
	}{failure(f), reason})
}

// Dir discovers module descriptors (JSON, YAML, TOML and Go) under a modules
// directory. It implements manifest.Source.
type Dir struct {
	Path string
}

// Load returns every descriptor under the directory sorted by path.
// Descriptors that could not be read are reported as failures instead of
// failing the whole directory.
func (d Dir) Load(ctx context.Context) ([]manifest.SourceEntry, []LoadFailure, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sources, failures, err := LoadSourceDir(d.Path)
	if err != nil {
		return nil, nil, err
	}
	goSources, err := LoadGoSourceDir(d.Path)
	if err != nil {
		return nil, nil, err
	}
	all := append(sources, goSources...)
	sortByPath(all)
	return all, failures, nil
}

// Entries returns every descriptor under the directory sorted by path. Any
// unreadable descriptor fails the call.
func (d Dir) Entries(ctx context.Context) ([]manifest.SourceEntry, error) {
	entries, failures, err := d.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(failures) > 0 {
		errs := make([]error, 0, len(failures))
		for _, failure := range failures {
			errs = append(errs, failure)
		}
		return nil, fmt.Errorf("plugin: %w", errors.Join(errs...))
	}
	return entries, nil
}

// ScanModules loads and parses every descriptor under dir, keeping the
// enabled modules in path order. A descriptor that cannot be read or parsed
// is skipped and reported; the other modules still load.
func ScanModules(ctx context.Context, dir string) ([]manifest.Manifest, []LoadFailure, error) {
	scanned, failures, err := scanDir(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	manifests := make([]manifest.Manifest, 0, len(scanned))
	for _, item := range scanned {
		manifests = append(manifests, item.manifest)
	}
	return manifests, failures, nil
}

// RegisterModules scans the project's modules directory and installs every
// enabled module into reg, returning the manifests in scan order together
// with the descriptors that failed to load. A name claimed twice is
// rejected with both descriptor paths.
func RegisterModules(ctx context.Context, reg *module.Registry, cfg *config.Config) ([]manifest.Manifest, []LoadFailure, error) {
	if reg == nil || cfg == nil {
		return nil, nil, nil
	}
	scanned, failures, err := scanDir(ctx, cfg.ModulesDir())
	if err != nil {
		return nil, nil, err
	}
	seen := make(map[string]string)
	installed := make([]manifest.Manifest, 0, len(scanned))
	for _, item := range scanned {
		m := item.manifest
		if existing, ok := seen[m.Name]; ok {
			return nil, nil, fmt.Errorf("plugin: duplicate module name %s (%s and %s)", m.Name, existing, item.path)
		}
		seen[m.Name] = item.path
		if err := reg.Register(m); err != nil {
			return nil, nil, fmt.Errorf("plugin: register %s from %s: %w", m.Name, item.path, err)
		}
		installed = append(installed, m)
	}
	return installed, failures, nil
}

type scannedModule struct {
	manifest manifest.Manifest
	path     string
}

func scanDir(ctx context.Context, dir string) ([]scannedModule, []LoadFailure, error) {
	entries, failures, err := Dir{Path: dir}.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	var scanned []scannedModule
	for _, entry := range entries {
		manifests, err := manifest.Scan(ctx, []manifest.SourceEntry{entry})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			failures = append(failures, LoadFailure{Module: entry.Name, Path: entry.Path, Err: err})
			continue
		}
		for _, m := range manifests {
			scanned = append(scanned, scannedModule{manifest: m, path: entry.Path})
		}
	}
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return scanned, failures, nil
}
