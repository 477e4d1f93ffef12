package api

import (
	"fmt"

	"github.com/kingrea/fieldstack/internal/config"
)

// ResolveInstallMode returns the effective install mode. Bypass is only
// honoured in the development environment; anywhere else the request is
// ignored and a warning is returned for the caller to log.
func ResolveInstallMode(cfg *config.Config) (string, []string) {
	if cfg == nil {
		return config.InstallModeNormal, nil
	}
	if cfg.Project.InstallMode != config.InstallModeBypass {
		return config.InstallModeNormal, nil
	}
	if cfg.IsDevelopment() {
		return config.InstallModeBypass, []string{"DEV INSTALL BYPASS ACTIVE"}
	}
	return config.InstallModeNormal, []string{
		fmt.Sprintf("install_mode=bypass ignored outside %s (environment %q)", config.EnvironmentDevelopment, cfg.Project.Environment),
	}
}
