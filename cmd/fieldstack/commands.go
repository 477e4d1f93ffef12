package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kingrea/fieldstack/internal/api"
	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/contracts"
	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/kingrea/fieldstack/internal/resolver"
	"github.com/kingrea/fieldstack/internal/web"
	"github.com/kingrea/fieldstack/plugins"
	"github.com/spf13/cobra"
)

func newInitCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .fieldstack directory and default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := flags.dir()
			if err != nil {
				return err
			}
			if err := config.InitProjectDir(dir); err != nil {
				return fmt.Errorf("initialize %s: %w", config.ProjectDirName, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Initialized ")+MutedStyle.Render(dir))
			return nil
		},
	}
}

func newModulesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List enabled modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			manifests, err := scan(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				return writeJSON(out, manifests)
			}
			if len(manifests) == 0 {
				fmt.Fprintln(out, MutedStyle.Render("No enabled modules in "+cfg.ModulesDir()))
				return nil
			}
			for _, m := range manifests {
				fmt.Fprintf(out, "%s %s  %s %s\n", TitleStyle.Render(m.Name), MutedStyle.Render(m.Version), m.Routes.Frontend, m.Routes.API)
			}
			for _, dup := range manifest.Duplicates(manifests) {
				fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf("warning: %s declared %d times", dup.Name, dup.Count)))
			}
			return nil
		},
	}
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path...]",
		Short: "Check module descriptors against the strict manifest contract",
		Long: `Validate the given descriptor files, or every descriptor in the
modules directory when no paths are given. Disabled modules are checked too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reports []*contracts.Report
			if len(args) > 0 {
				for _, path := range args {
					report, err := contracts.ValidateManifestFile(path)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					reports = append(reports, report)
				}
			} else {
				cfg, err := flags.config()
				if err != nil {
					return err
				}
				entries, err := plugins.Dir{Path: cfg.ModulesDir()}.Entries(cmd.Context())
				if err != nil {
					return err
				}
				for _, entry := range entries {
					report, err := contracts.ValidateEntry(entry)
					if err != nil {
						return err
					}
					reports = append(reports, report)
				}
			}

			out := cmd.OutOrStdout()
			invalid := 0
			for _, report := range reports {
				if report.IsValid() {
					fmt.Fprintf(out, "%s %s %s\n", SuccessStyle.Render("OK:"), report.Module, MutedStyle.Render(report.Path))
					continue
				}
				invalid++
				fmt.Fprintf(out, "%s %s %s\n", ErrorStyle.Render("Invalid:"), report.Module, MutedStyle.Render(report.Path))
				for _, fieldErr := range report.Errors {
					fmt.Fprintf(out, "  - %v\n", fieldErr)
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d manifests invalid", invalid, len(reports))
			}
			return nil
		},
	}
}

// depsReport is the JSON form of the deps command.
type depsReport struct {
	Issues        []manifest.DependencyIssue `json:"issues"`
	LoadOrder     []string                   `json:"loadOrder"`
	Cycle         []string                   `json:"cycle,omitempty"`
	ParseFailures []plugins.LoadFailure      `json:"parseFailures,omitempty"`
}

func newDepsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Report missing dependencies and the module load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			manifests, failures, err := plugins.ScanModules(cmd.Context(), cfg.ModulesDir())
			if err != nil {
				return err
			}
			report := depsReport{
				Issues:        manifest.ValidateDependencies(manifests),
				LoadOrder:     []string{},
				ParseFailures: failures,
			}
			order, orderErr := resolver.New(manifests).Order()
			var cycleErr *resolver.CycleError
			switch {
			case errors.As(orderErr, &cycleErr):
				report.Cycle = cycleErr.Cycle
			case orderErr != nil:
				return orderErr
			default:
				report.LoadOrder = order
			}

			out := cmd.OutOrStdout()
			if flags.jsonOutput {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				for _, failure := range report.ParseFailures {
					fmt.Fprintf(out, "%s %s %s\n", ErrorStyle.Render("skipped:"), failure.Module, MutedStyle.Render(failure.Err.Error()))
				}
				if len(report.Issues) == 0 {
					fmt.Fprintln(out, SuccessStyle.Render("All dependencies satisfied"))
				}
				for _, issue := range report.Issues {
					fmt.Fprintf(out, "%s %s needs %s\n", WarningStyle.Render("missing:"), issue.ModuleName, strings.Join(issue.MissingDependencies, ", "))
				}
				if report.Cycle != nil {
					fmt.Fprintf(out, "%s %s\n", WarningStyle.Render("cycle:"), strings.Join(report.Cycle, " -> "))
				} else if len(report.LoadOrder) > 0 {
					fmt.Fprintf(out, "%s %s\n", MutedStyle.Render("load order:"), strings.Join(report.LoadOrder, " -> "))
				}
			}
			if cfg.BlocksOnMissingDependencies() && (len(report.Issues) > 0 || report.Cycle != nil) {
				return fmt.Errorf("dependency policy %q: unresolved module dependencies", cfg.Project.DependencyPolicy)
			}
			return nil
		},
	}
}

func newRoutesCmd(flags *rootFlags) *cobra.Command {
	routes := &cobra.Command{
		Use:   "routes",
		Short: "Print the route tables built from enabled modules",
	}
	routes.AddCommand(&cobra.Command{
		Use:   "api",
		Short: "Print API route registrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			manifests, err := scan(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			registrations := api.BuildRouteRegistrations(manifests)
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), registrations)
			}
			for _, route := range registrations {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", route.ModuleName, orNone(route.APIBasePath))
			}
			return nil
		},
	}, &cobra.Command{
		Use:   "web",
		Short: "Print the client-side route manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			manifests, err := scan(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			data, err := web.RouteManifest(manifests)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return routes
}

func newNavCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "nav",
		Short: "Print navigation items for enabled modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config()
			if err != nil {
				return err
			}
			manifests, err := scan(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			items := web.BuildNavigationItems(manifests)
			if flags.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			for _, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", item.Label, orNone(item.Path))
			}
			return nil
		},
	}
}

func orNone(value string) string {
	if value == "" {
		return MutedStyle.Render("(none)")
	}
	return value
}
