package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/fieldstack/internal/api"
	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/logging"
	"github.com/kingrea/fieldstack/internal/manifest"
)

func newProject(t *testing.T, modules map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	if err := config.InitProjectDir(dir); err != nil {
		t.Fatalf("init project: %v", err)
	}
	for rel, content := range modules {
		path := filepath.Join(dir, config.ProjectDirName, "modules", rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

var sampleModules = map[string]string{
	"ledger/module.json": `{"name":"ledger","version":"1.0.0","enabled":true,"dependencies":["subscription"],"routes":{"frontend":"/ledger","api":"/api/ledger"}}`,
	"subscription.yaml":  "name: subscription\nversion: 1.0.0\nenabled: true\nroutes:\n  frontend: /subscription\n  api: /api/subscription\n",
	"legacy.json":        `{"name":"legacy","enabled":false}`,
}

func TestModulesCommandJSON(t *testing.T) {
	dir := newProject(t, sampleModules)
	out, err := run(t, "--dir", dir, "--json", "modules")
	if err != nil {
		t.Fatalf("modules: %v", err)
	}
	var manifests []manifest.Manifest
	if err := json.Unmarshal([]byte(out), &manifests); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(manifests) != 2 || manifests[0].Name != "ledger" || manifests[1].Name != "subscription" {
		t.Fatalf("unexpected manifests %+v", manifests)
	}
}

func TestRoutesAPICommand(t *testing.T) {
	dir := newProject(t, sampleModules)
	out, err := run(t, "--dir", dir, "--json", "routes", "api")
	if err != nil {
		t.Fatalf("routes api: %v", err)
	}
	var routes []api.RouteRegistration
	if err := json.Unmarshal([]byte(out), &routes); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(routes) != 2 || routes[0].APIBasePath != "/api/ledger" {
		t.Fatalf("unexpected routes %+v", routes)
	}
}

func TestRoutesWebAndNavCommands(t *testing.T) {
	dir := newProject(t, sampleModules)
	out, err := run(t, "--dir", dir, "routes", "web")
	if err != nil {
		t.Fatalf("routes web: %v", err)
	}
	for _, want := range []string{`"routes"`, `"navigation"`, `"path": "/subscription"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("route manifest missing %s:\n%s", want, out)
		}
	}
	out, err = run(t, "--dir", dir, "nav")
	if err != nil {
		t.Fatalf("nav: %v", err)
	}
	if !strings.Contains(out, "ledger") || strings.Contains(out, "legacy") {
		t.Fatalf("unexpected nav output:\n%s", out)
	}
}

func TestDepsCommand(t *testing.T) {
	dir := newProject(t, map[string]string{
		"ledger.json": `{"enabled":true,"dependencies":["subscription"]}`,
	})
	out, err := run(t, "--dir", dir, "--json", "deps")
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	var report depsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(report.Issues) != 1 || report.Issues[0].ModuleName != "ledger" {
		t.Fatalf("unexpected issues %+v", report.Issues)
	}

	configPath := filepath.Join(dir, config.ProjectDirName, "config.yaml")
	if err := os.WriteFile(configPath, []byte("dependency_policy: block\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := run(t, "--dir", dir, "deps"); err == nil {
		t.Fatalf("expected block policy to fail deps")
	}
}

func TestDepsCommandReportsSkippedModules(t *testing.T) {
	dir := newProject(t, map[string]string{
		"ledger.json": `{"enabled":true}`,
		"broken.json": `{"enabled":`,
	})
	out, err := run(t, "--dir", dir, "--json", "deps")
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	var report depsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(report.ParseFailures) != 1 || report.ParseFailures[0].Module != "broken" {
		t.Fatalf("unexpected parse failures %+v", report.ParseFailures)
	}
	if len(report.LoadOrder) != 1 || report.LoadOrder[0] != "ledger" {
		t.Fatalf("expected ledger to still load, got %+v", report.LoadOrder)
	}
}

func TestValidateCommand(t *testing.T) {
	dir := newProject(t, sampleModules)
	out, err := run(t, "--dir", dir, "validate")
	if err == nil {
		t.Fatalf("expected legacy (no version, no routes) to fail validation")
	}
	if !strings.Contains(out, "OK:") || !strings.Contains(out, "Invalid:") || !strings.Contains(out, "routes.frontend is required") {
		t.Fatalf("unexpected validate output:\n%s", out)
	}

	path := filepath.Join(dir, config.ProjectDirName, "modules", "ledger", "module.json")
	if _, err := run(t, "validate", path); err != nil {
		t.Fatalf("validate ledger: %v", err)
	}
}

func TestLoadModulesMountsProject(t *testing.T) {
	dir := newProject(t, sampleModules)
	cfg, err := config.NewConfig(dir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	srv := api.NewServer(api.ServerSettingsFromConfig(cfg), logging.Discard())
	if err := loadModules(context.Background(), srv, cfg, logging.Discard()); err != nil {
		t.Fatalf("load modules: %v", err)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ledger/balance", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"module":"ledger"`) {
		t.Fatalf("unexpected module response %d %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/routes.json", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"navigation"`) {
		t.Fatalf("unexpected route manifest response %d %s", rec.Code, rec.Body.String())
	}
}
