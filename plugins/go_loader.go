package plugins

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"

	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"golang.org/x/sync/errgroup"
)

const goManifestFuncName = "ModuleManifests"

// LoadGoSourceDir evaluates every .go file in dir and collects the module
// descriptors declared via ModuleManifests(). Files are interpreted
// concurrently, each in its own interpreter.
func LoadGoSourceDir(dir string) ([]manifest.SourceEntry, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if filepath.Ext(entry.Name()) != ".go" || strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}
		paths = append(paths, filepath.Join(trimmed, entry.Name()))
	}
	if len(paths) == 0 {
		return nil, nil
	}

	results := make([][]manifest.SourceEntry, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for idx, path := range paths {
		g.Go(func() error {
			fileSources, err := loadGoSourceFile(path)
			if err != nil {
				return err
			}
			results[idx] = fileSources
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var sources []manifest.SourceEntry
	for _, fileSources := range results {
		sources = append(sources, fileSources...)
	}
	if len(sources) == 0 {
		return nil, nil
	}
	sortByPath(sources)
	return sources, nil
}

func loadGoSourceFile(path string) ([]manifest.SourceEntry, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goManifestFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s() ([]map[string]any, error): %w", path, goManifestFuncName, err)
	}
	defs, callErr := invokeManifestFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, callErr)
	}
	base := stem(filepath.Base(path))
	sources := make([]manifest.SourceEntry, 0, len(defs))
	for idx, raw := range defs {
		payload, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s manifest[%d]: %w", path, idx, err)
		}
		name := base
		if len(defs) > 1 {
			name = fmt.Sprintf("%s-%d", base, idx+1)
		}
		sources = append(sources, manifest.SourceEntry{
			Name:         name,
			ManifestJSON: string(payload),
			Path:         fmt.Sprintf("%s#%d", filepath.Clean(path), idx+1),
		})
	}
	return sources, nil
}

func invokeManifestFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", goManifestFuncName)
	}
	fn := value
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goManifestFuncName)
	}
	if fn.Type().NumIn() != 0 {
		return nil, fmt.Errorf("%s must not take arguments", goManifestFuncName)
	}
	results := fn.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goManifestFuncName)
	}
	defsVal := results[0]
	if len(results) == 2 {
		if !results[1].IsNil() {
			if e, ok := results[1].Interface().(error); ok && e != nil {
				return nil, e
			}
			return nil, fmt.Errorf("%s returned non-error second value", goManifestFuncName)
		}
	}
	defs, ok := defsVal.Interface().([]map[string]any)
	if ok {
		return defs, nil
	}
	if defsVal.Kind() == reflect.Slice {
		result := make([]map[string]any, defsVal.Len())
		for i := 0; i < defsVal.Len(); i++ {
			entry := defsVal.Index(i).Interface()
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not map[string]any", goManifestFuncName, i)
			}
			result[i] = m
		}
		return result, nil
	}
	return nil, fmt.Errorf("%s must return []map[string]any", goManifestFuncName)
}
