package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/manifest"
)

func testManifests() []manifest.Manifest {
	return []manifest.Manifest{
		{Name: "ledger", Version: "1.0.0", Enabled: true, Dependencies: []string{"subscription"}, Routes: manifest.Routes{Frontend: "/ledger", API: "/api/ledger"}},
		{Name: "reports", Version: "0.2.0", Enabled: true, Dependencies: []string{"ledger"}, Routes: manifest.Routes{Frontend: "/reports"}},
	}
}

func newTestApp(t *testing.T, loader Loader) *App {
	t.Helper()
	app := NewApp(nil, WithLoader(loader), WithLogPath(""))
	model, _ := app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return model.(*App)
}

// runInit executes the initial load command and feeds its message back.
func runInit(t *testing.T, app *App) *App {
	t.Helper()
	cmd := app.Init()
	if cmd == nil {
		t.Fatalf("expected init command")
	}
	model, _ := app.Update(cmd())
	return model.(*App)
}

func TestAppLoadsSnapshot(t *testing.T) {
	app := newTestApp(t, func(context.Context) (Snapshot, error) {
		return NewSnapshot(config.InstallModeNormal, testManifests()), nil
	})
	if !strings.Contains(app.View(), "Scanning modules") {
		t.Fatalf("expected loading view before init")
	}
	app = runInit(t, app)

	if got := len(app.modules.Items()); got != 2 {
		t.Fatalf("expected 2 list items, got %d", got)
	}
	item, ok := app.selected()
	if !ok || item.manifest.Name != "ledger" {
		t.Fatalf("expected ledger selected, got %+v", item)
	}
	if len(item.missing) != 1 || item.missing[0] != "subscription" {
		t.Fatalf("expected missing subscription on ledger, got %v", item.missing)
	}
	view := app.View()
	for _, want := range []string{"FIELDSTACK", "ledger", "subscription (missing)", "Used by: reports", "1 module(s) with missing dependencies"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestAppNavigatesModules(t *testing.T) {
	app := runInit(t, newTestApp(t, func(context.Context) (Snapshot, error) {
		return NewSnapshot(config.InstallModeNormal, testManifests()), nil
	}))
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyDown})
	app = model.(*App)
	item, ok := app.selected()
	if !ok || item.manifest.Name != "reports" {
		t.Fatalf("expected reports after moving down, got %+v", item)
	}
	if !strings.Contains(app.View(), "Load order: ledger → reports") {
		t.Fatalf("expected load order in detail pane:\n%s", app.View())
	}
}

func TestAppReloadAndQuit(t *testing.T) {
	calls := 0
	app := runInit(t, newTestApp(t, func(context.Context) (Snapshot, error) {
		calls++
		return NewSnapshot(config.InstallModeNormal, testManifests()[:calls]), nil
	}))
	if len(app.modules.Items()) != 1 {
		t.Fatalf("expected first load to return one module")
	}

	model, cmd := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	app = model.(*App)
	if cmd == nil || !app.loading {
		t.Fatalf("expected reload command")
	}
	model, _ = app.Update(cmd())
	app = model.(*App)
	if len(app.modules.Items()) != 2 {
		t.Fatalf("expected reload to pick up second module, got %d", len(app.modules.Items()))
	}

	_, cmd = app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestAppShowsLoadErrors(t *testing.T) {
	app := runInit(t, newTestApp(t, func(context.Context) (Snapshot, error) {
		return Snapshot{}, errors.New("modules dir unreadable")
	}))
	if !strings.Contains(app.View(), "Load failed: modules dir unreadable") {
		t.Fatalf("expected load error in view:\n%s", app.View())
	}
}

func TestAppShowsBypassAndCycles(t *testing.T) {
	cyclic := []manifest.Manifest{
		{Name: "a", Version: "0.0.0", Enabled: true, Dependencies: []string{"b"}},
		{Name: "b", Version: "0.0.0", Enabled: true, Dependencies: []string{"a"}},
	}
	app := runInit(t, newTestApp(t, func(context.Context) (Snapshot, error) {
		return NewSnapshot(config.InstallModeBypass, cyclic), nil
	}))
	view := app.View()
	for _, want := range []string{"DEV INSTALL BYPASS ACTIVE", "cycle"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestDefaultLoaderScansModulesDir(t *testing.T) {
	projectDir := t.TempDir()
	if err := config.InitProjectDir(projectDir); err != nil {
		t.Fatalf("init project: %v", err)
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	path := filepath.Join(cfg.ModulesDir(), "ledger.json")
	if err := os.WriteFile(path, []byte(`{"enabled":true,"dependencies":["subscription"]}`), 0o644); err != nil {
		t.Fatalf("write module: %v", err)
	}
	snapshot, err := defaultLoader(cfg)(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snapshot.Manifests) != 1 || snapshot.Manifests[0].Name != "ledger" {
		t.Fatalf("unexpected manifests %+v", snapshot.Manifests)
	}
	if len(snapshot.Issues) != 1 {
		t.Fatalf("expected one dependency issue, got %+v", snapshot.Issues)
	}
}
