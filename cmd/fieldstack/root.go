package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/logging"
	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/kingrea/fieldstack/plugins"
	"github.com/spf13/cobra"
)

// rootFlags holds the persistent flags shared by every command.
type rootFlags struct {
	projectDir string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "fieldstack",
		Short: "Discover, validate and mount Fieldstack modules",
		Long: TitleStyle.Render("fieldstack") + MutedStyle.Render(" - module manifest loader") + `

Modules live under .fieldstack/modules as <name>/module.json,
<name>/module.yaml, loose <name>.json / <name>.yaml files, or Go plugin
files exposing ModuleManifests().`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.projectDir, "dir", "C", "", "project directory (default is the working directory)")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "print machine-readable JSON")

	root.AddCommand(
		newInitCmd(flags),
		newModulesCmd(flags),
		newValidateCmd(flags),
		newDepsCmd(flags),
		newRoutesCmd(flags),
		newNavCmd(flags),
		newServeCmd(flags),
		newWatchCmd(flags),
		newBrowseCmd(flags),
	)
	return root
}

func (f *rootFlags) dir() (string, error) {
	if f.projectDir != "" {
		return f.projectDir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return cwd, nil
}

func (f *rootFlags) config() (*config.Config, error) {
	dir, err := f.dir()
	if err != nil {
		return nil, err
	}
	return config.NewConfig(dir)
}

// logger opens the project log, mirrored to stderr for long-running commands.
func (f *rootFlags) logger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	if stderr == nil {
		return logging.New(cfg.ProjectDir, cfg.Project.LogLevel)
	}
	return logging.New(cfg.ProjectDir, cfg.Project.LogLevel, stderr)
}

// scan returns the enabled manifests under the configured modules directory.
func scan(ctx context.Context, cfg *config.Config) ([]manifest.Manifest, error) {
	return manifest.ScanSource(ctx, plugins.Dir{Path: cfg.ModulesDir()})
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
