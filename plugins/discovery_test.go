package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/kingrea/fieldstack/internal/module"
)

func initTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	if err := config.InitProjectDir(root); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return &config.Config{
		ProjectDir: root,
		StateDir:   filepath.Join(root, config.ProjectDirName),
		Project:    config.ProjectConfig{ModulesDir: ".fieldstack/modules"},
	}
}

func TestDirEntriesMergesDescriptorKinds(t *testing.T) {
	cfg := initTestConfig(t)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "ledger", "module.json"), `{"enabled":true}`)
	if err := os.WriteFile(filepath.Join(cfg.ModulesDir(), "billing.go"), []byte(goPluginSource), 0644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	entries, err := Dir{Path: cfg.ModulesDir()}.Entries(context.Background())
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "billing" || entries[1].Name != "ledger" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestDirEntriesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (Dir{Path: t.TempDir()}).Entries(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRegisterModules(t *testing.T) {
	cfg := initTestConfig(t)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "ledger", "module.json"), `{"version":"1.0.0","enabled":true}`)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "reports.yaml"), sampleYAML)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "legacy.json"), `{"enabled":false}`)

	reg := module.NewRegistry()
	manifests, failures, err := RegisterModules(context.Background(), reg, cfg)
	if err != nil || len(failures) != 0 {
		t.Fatalf("register modules: %v %+v", err, failures)
	}
	if len(manifests) != 2 {
		t.Fatalf("expected 2 enabled modules, got %+v", manifests)
	}
	if _, ok := reg.Lookup("reports"); !ok {
		t.Fatalf("reports should be registered")
	}
	if _, ok := reg.Lookup("legacy"); ok {
		t.Fatalf("disabled module must not be registered")
	}
}

func TestRegisterModulesRejectsDuplicateNames(t *testing.T) {
	cfg := initTestConfig(t)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "ledger", "module.json"), `{"enabled":true}`)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "ledger.json"), `{"enabled":true}`)

	_, _, err := RegisterModules(context.Background(), module.NewRegistry(), cfg)
	if err == nil || !strings.Contains(err.Error(), "duplicate module name ledger") {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
}

func TestRegisterModulesWithoutDirectory(t *testing.T) {
	cfg := initTestConfig(t)
	cfg.Project.ModulesDir = "missing"
	manifests, failures, err := RegisterModules(context.Background(), module.NewRegistry(), cfg)
	if err != nil || len(manifests) != 0 || len(failures) != 0 {
		t.Fatalf("expected no modules, got %v %v %v", manifests, failures, err)
	}
}

func TestRegisterModulesSkipsUnparsableDescriptors(t *testing.T) {
	cfg := initTestConfig(t)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "ledger", "module.json"), `{"enabled":true}`)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "broken", "module.json"), `{"enabled":`)

	reg := module.NewRegistry()
	manifests, failures, err := RegisterModules(context.Background(), reg, cfg)
	if err != nil {
		t.Fatalf("register modules: %v", err)
	}
	if len(manifests) != 1 || manifests[0].Name != "ledger" {
		t.Fatalf("expected ledger only, got %+v", manifests)
	}
	if len(failures) != 1 || failures[0].Module != "broken" || !errors.Is(failures[0], manifest.ErrParse) {
		t.Fatalf("unexpected failures %+v", failures)
	}
	if _, ok := reg.Lookup("broken"); ok {
		t.Fatalf("broken module must not be registered")
	}

	payload, err := json.Marshal(failures[0])
	if err != nil {
		t.Fatalf("marshal failure: %v", err)
	}
	if !strings.Contains(string(payload), `"module":"broken"`) || !strings.Contains(string(payload), `"error":"manifest: scan`) {
		t.Fatalf("unexpected failure json %s", payload)
	}
}

func TestDirEntriesFailsOnBadDescriptor(t *testing.T) {
	cfg := initTestConfig(t)
	writeFile(t, filepath.Join(cfg.ModulesDir(), "reports.yaml"), "routes: [unterminated\n")
	if _, err := (Dir{Path: cfg.ModulesDir()}).Entries(context.Background()); !errors.Is(err, manifest.ErrParse) {
		t.Fatalf("expected parse error from Entries, got %v", err)
	}
}
