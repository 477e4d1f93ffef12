// internal/tui/app.go
//
// This is the module browser for Fieldstack. It uses bubbletea, which
// follows The Elm Architecture:
//
// 1. Model: the loaded module snapshot and the list cursor
// 2. Update: key presses and reload results change the model
// 3. View: the model renders to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kingrea/fieldstack/internal/api"
	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/logging"
	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/kingrea/fieldstack/internal/resolver"
	"github.com/kingrea/fieldstack/plugins"
)

const logPanelLines = 6

// Snapshot is everything the browser renders.
type Snapshot struct {
	InstallMode string
	Manifests   []manifest.Manifest
	Issues      []manifest.DependencyIssue
	LoadOrder   []string
	// CycleErr is set when the dependency graph has a cycle.
	CycleErr error
	resolver *resolver.Resolver
}

// Loader produces a fresh snapshot. The default scans the project's modules
// directory.
type Loader func(ctx context.Context) (Snapshot, error)

// AppOption customizes App construction for tests.
type AppOption func(*App)

// WithLoader overrides the snapshot loader.
func WithLoader(loader Loader) AppOption {
	return func(a *App) {
		if loader != nil {
			a.loader = loader
		}
	}
}

// WithLogPath shows the tail of the given log file under the detail pane.
func WithLogPath(path string) AppOption {
	return func(a *App) {
		a.logPath = path
	}
}

type snapshotMsg struct {
	snapshot Snapshot
	err      error
}

// moduleItem implements list.Item for one installed module.
type moduleItem struct {
	manifest manifest.Manifest
	missing  []string
}

func (i moduleItem) Title() string {
	if len(i.missing) > 0 {
		return fmt.Sprintf("%s  ⚠", i.manifest.Name)
	}
	return i.manifest.Name
}

func (i moduleItem) Description() string {
	return fmt.Sprintf("v%s · %s", i.manifest.Version, i.manifest.Routes.Frontend)
}

func (i moduleItem) FilterValue() string { return i.manifest.Name }

// App is the browser model.
type App struct {
	loader   Loader
	logPath  string
	snapshot Snapshot
	modules  list.Model
	err      error
	loading  bool

	width  int
	height int
}

// NewApp creates a browser over the project described by cfg.
func NewApp(cfg *config.Config, opts ...AppOption) *App {
	modules := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	modules.Title = "Installed Modules"
	modules.SetShowStatusBar(false)

	app := &App{
		loader:  defaultLoader(cfg),
		modules: modules,
		loading: true,
	}
	if cfg != nil {
		app.logPath = filepath.Join(cfg.LogsDir(), logging.FileName)
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	return app
}

func defaultLoader(cfg *config.Config) Loader {
	return func(ctx context.Context) (Snapshot, error) {
		if cfg == nil {
			return Snapshot{}, fmt.Errorf("tui: config is required")
		}
		mode, _ := api.ResolveInstallMode(cfg)
		manifests, err := manifest.ScanSource(ctx, plugins.Dir{Path: cfg.ModulesDir()})
		if err != nil {
			return Snapshot{}, err
		}
		return NewSnapshot(mode, manifests), nil
	}
}

// NewSnapshot derives dependency issues and load order from manifests.
func NewSnapshot(installMode string, manifests []manifest.Manifest) Snapshot {
	res := resolver.New(manifests)
	order, err := res.Order()
	return Snapshot{
		InstallMode: installMode,
		Manifests:   manifests,
		Issues:      manifest.ValidateDependencies(manifests),
		LoadOrder:   order,
		CycleErr:    err,
		resolver:    res,
	}
}

func (a *App) load() tea.Cmd {
	loader := a.loader
	return func() tea.Msg {
		snapshot, err := loader(context.Background())
		return snapshotMsg{snapshot: snapshot, err: err}
	}
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.load()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.modules.SetSize(max(20, msg.Width/2-4), max(5, msg.Height-logPanelLines-8))
		return a, nil

	case snapshotMsg:
		a.loading = false
		a.err = msg.err
		if msg.err == nil {
			a.setSnapshot(msg.snapshot)
		}
		return a, nil

	case tea.KeyMsg:
		if a.modules.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "r":
			a.loading = true
			return a, a.load()
		}
	}

	var cmd tea.Cmd
	a.modules, cmd = a.modules.Update(msg)
	return a, cmd
}

func (a *App) setSnapshot(snapshot Snapshot) {
	if snapshot.resolver == nil {
		snapshot.resolver = resolver.New(snapshot.Manifests)
	}
	a.snapshot = snapshot
	missing := make(map[string][]string, len(snapshot.Issues))
	for _, issue := range snapshot.Issues {
		missing[issue.ModuleName] = issue.MissingDependencies
	}
	items := make([]list.Item, 0, len(snapshot.Manifests))
	for _, m := range snapshot.Manifests {
		items = append(items, moduleItem{manifest: m, missing: missing[m.Name]})
	}
	a.modules.SetItems(items)
}

func (a *App) selected() (moduleItem, bool) {
	item, ok := a.modules.SelectedItem().(moduleItem)
	return item, ok
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB347")).Bold(true)
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	header := headerStyle.Render("⬡ FIELDSTACK")
	if a.snapshot.InstallMode == config.InstallModeBypass {
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", warnStyle.Render("DEV INSTALL BYPASS ACTIVE"))
	}

	var left string
	switch {
	case a.err != nil:
		left = warnStyle.Render(fmt.Sprintf("Load failed: %v", a.err))
	case a.loading && len(a.snapshot.Manifests) == 0:
		left = "Scanning modules..."
	case len(a.snapshot.Manifests) == 0:
		left = "No enabled modules installed."
	default:
		left = a.modules.View()
	}
	rightWidth := max(30, width/2-4)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(max(20, width/2-4)).Render(left),
		boxStyle.Width(rightWidth).Render(a.renderDetail()),
	)

	sections := []string{header, body}
	if panel := a.renderLogPanel(width - 4); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, footerStyle.Render("↑/↓ select · / filter · r reload · q quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) renderDetail() string {
	item, ok := a.selected()
	if !ok {
		return a.renderSummary()
	}
	m := item.manifest
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(m.Name),
		field("Version", m.Version),
		field("Frontend", orDash(m.Routes.Frontend)),
		field("API", orDash(m.Routes.API)),
	}
	if len(m.Dependencies) == 0 {
		lines = append(lines, field("Depends on", "-"))
	} else {
		lines = append(lines, labelStyle.Render("Depends on:"))
		for _, dep := range m.Dependencies {
			if contains(item.missing, dep) {
				lines = append(lines, "  "+warnStyle.Render(dep+" (missing)"))
				continue
			}
			lines = append(lines, "  "+okStyle.Render(dep))
		}
	}
	if a.snapshot.resolver != nil {
		if dependents := a.snapshot.resolver.Dependents(m.Name); len(dependents) > 0 {
			lines = append(lines, field("Used by", strings.Join(dependents, ", ")))
		}
	}
	lines = append(lines, "", a.renderSummary())
	return strings.Join(lines, "\n")
}

func (a *App) renderSummary() string {
	lines := []string{field("Modules", fmt.Sprintf("%d", len(a.snapshot.Manifests)))}
	if len(a.snapshot.Issues) == 0 {
		lines = append(lines, okStyle.Render("All dependencies satisfied"))
	} else {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d module(s) with missing dependencies", len(a.snapshot.Issues))))
	}
	if a.snapshot.CycleErr != nil {
		lines = append(lines, warnStyle.Render(a.snapshot.CycleErr.Error()))
	} else if len(a.snapshot.LoadOrder) > 0 {
		lines = append(lines, field("Load order", strings.Join(a.snapshot.LoadOrder, " → ")))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderLogPanel(width int) string {
	lines := logging.Tail(a.logPath, logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Render("LOG · " + logging.FileName)
	body := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render(strings.Join(lines, "\n"))
	return boxStyle.Width(max(20, width)).Render(head + "\n" + body)
}

func field(label, value string) string {
	return labelStyle.Render(label+":") + " " + value
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
