package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kingrea/fieldstack/internal/config"
	"github.com/kingrea/fieldstack/internal/logging"
	"github.com/kingrea/fieldstack/internal/manifest"
	"github.com/kingrea/fieldstack/internal/module"
	"github.com/kingrea/fieldstack/internal/resolver"
	"github.com/kingrea/fieldstack/plugins"
)

// MissingDependenciesError is returned by Bootstrap when the block policy is
// active and at least one module declares an uninstalled dependency.
type MissingDependenciesError struct {
	Issues []manifest.DependencyIssue
}

func (e *MissingDependenciesError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, fmt.Sprintf("%s needs %s", issue.ModuleName, strings.Join(issue.MissingDependencies, ", ")))
	}
	return fmt.Sprintf("api: missing module dependencies: %s", strings.Join(parts, "; "))
}

// Runtime is the loaded module state of an API host.
type Runtime struct {
	// LoadID identifies one Bootstrap call so reloads can be told apart.
	LoadID      string
	InstallMode string
	Registry    *module.Registry
	Manifests   []manifest.Manifest
	Issues      []manifest.DependencyIssue
	// LoadOrder is empty when the dependency graph has a cycle.
	LoadOrder []string
	Routes    []RouteRegistration
	// LoadFailures lists descriptors that were skipped because they could
	// not be read or parsed.
	LoadFailures []plugins.LoadFailure
}

// Bootstrap discovers the project's modules, installs the enabled ones,
// checks their dependencies and builds the API route table. A descriptor
// that cannot be parsed is logged and skipped without affecting the other
// modules. Missing
// dependencies and cycles are logged; with the block policy they abort
// startup unless the development install bypass is active.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api: config is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}
	loadID := uuid.NewString()
	logger = logger.With("load_id", loadID)
	mode, warnings := ResolveInstallMode(cfg)
	for _, warning := range warnings {
		logger.Warn(warning)
	}
	logger.Info("install mode resolved", "mode", mode)

	reg := module.NewRegistry()
	manifests, failures, err := plugins.RegisterModules(ctx, reg, cfg)
	if err != nil {
		return nil, err
	}
	for _, failure := range failures {
		logger.Error("module skipped", "module", failure.Module, "path", failure.Path, "err", failure.Err)
	}
	logger.Info("modules loaded", "count", len(manifests), "dir", cfg.ModulesDir())

	blocking := cfg.BlocksOnMissingDependencies() && mode != config.InstallModeBypass
	issues := manifest.ValidateDependencies(manifests)
	for _, issue := range issues {
		logger.Warn("missing module dependencies", "module", issue.ModuleName, "missing", strings.Join(issue.MissingDependencies, ","))
	}
	if blocking && len(issues) > 0 {
		return nil, &MissingDependenciesError{Issues: issues}
	}

	order, err := resolver.New(manifests).Order()
	if err != nil {
		var cycleErr *resolver.CycleError
		if !errors.As(err, &cycleErr) || blocking {
			return nil, err
		}
		logger.Warn("module dependency cycle", "cycle", strings.Join(cycleErr.Cycle, " -> "))
	}

	routes := BuildRouteRegistrations(manifests)
	for _, route := range routes {
		if route.APIBasePath == "" {
			logger.Warn("module declares no api route", "module", route.ModuleName)
			continue
		}
		logger.Debug("api route", "module", route.ModuleName, "path", route.APIBasePath)
	}

	return &Runtime{
		LoadID:       loadID,
		InstallMode:  mode,
		Registry:     reg,
		Manifests:    manifests,
		Issues:       issues,
		LoadOrder:    order,
		Routes:       routes,
		LoadFailures: failures,
	}, nil
}
