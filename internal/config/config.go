// internal/config/config.go
//
// This package handles configuration and the .fieldstack directory structure.
// Every project that hosts Fieldstack modules gets a .fieldstack/ folder in
// its root holding config.yaml, logs and (by default) the modules directory.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each project
	ProjectDirName = ".fieldstack"

	// EnvPrefix prefixes every environment override (FIELDSTACK_ENV, ...).
	EnvPrefix = "FIELDSTACK"

	defaultModulesDir = ".fieldstack/modules"
)

// Dependency policies decide what a host does with missing dependencies.
const (
	DependencyPolicyWarn  = "warn"
	DependencyPolicyBlock = "block"
)

// Install modes. Bypass is only honoured in the development environment.
const (
	InstallModeNormal = "normal"
	InstallModeBypass = "bypass"
)

// EnvironmentDevelopment is the only environment that honours bypass installs.
const EnvironmentDevelopment = "development"

const defaultProjectConfigYAML = `# fieldstack project configuration
version: 1

# Directory scanned for module descriptors, relative to the project root.
modules_dir: .fieldstack/modules

# Runtime environment. INSTALL bypass is ignored outside development.
environment: production
install_mode: normal

# What to do when a module declares a dependency that is not installed:
# warn logs the issue and keeps going, block refuses to start.
dependency_policy: warn

log_level: info

# Listener for "fieldstack serve".
server:
  host: 127.0.0.1
  port: 8080
`

// ProjectConfig models .fieldstack/config.yaml.
type ProjectConfig struct {
	Version          int          `yaml:"version"`
	ModulesDir       string       `yaml:"modules_dir"`
	Environment      string       `yaml:"environment"`
	InstallMode      string       `yaml:"install_mode"`
	DependencyPolicy string       `yaml:"dependency_policy"`
	LogLevel         string       `yaml:"log_level"`
	Server           ServerConfig `yaml:"server"`
}

// ServerConfig configures the API host listener. A zero port in
// config.yaml means the default; FIELDSTACK_SERVER_PORT=0 picks a free port.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Config holds the runtime configuration for a Fieldstack host.
type Config struct {
	// ProjectDir is the directory where the host was started from
	ProjectDir string

	// StateDir is ProjectDir/.fieldstack
	StateDir string

	Project ProjectConfig
}

// InitProjectDir creates the .fieldstack directory structure in the given
// project directory.
//
// Structure created:
// .fieldstack/
// ├── config.yaml
// ├── logs/
// └── modules/   <- module descriptors (module.json / module.yaml / *.go)
func InitProjectDir(projectDir string) error {
	stateDir := filepath.Join(projectDir, ProjectDirName)
	dirs := []string{
		filepath.Join(stateDir, "logs"),
		filepath.Join(stateDir, "modules"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(stateDir, "config.yaml"))
}

// NewConfig creates a Config populated from config.yaml and FIELDSTACK_*
// environment overrides. A missing config file means defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateDir:   filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(viper.New()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateDir, "logs")
}

// ModulesDir returns the absolute modules directory.
func (c *Config) ModulesDir() string {
	return resolvePath(c.ProjectDir, c.Project.ModulesDir)
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateDir, "config.yaml")
}

// IsDevelopment reports whether the configured environment is development.
func (c *Config) IsDevelopment() bool {
	return c.Project.Environment == EnvironmentDevelopment
}

// BlocksOnMissingDependencies reports whether missing dependencies must
// abort startup.
func (c *Config) BlocksOnMissingDependencies() bool {
	return c.Project.DependencyPolicy == DependencyPolicyBlock
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

// applyEnvOverrides lets FIELDSTACK_<KEY> replace any config.yaml value.
func (c *Config) applyEnvOverrides(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	overrides := map[string]*string{
		"env":               &c.Project.Environment,
		"modules_dir":       &c.Project.ModulesDir,
		"install_mode":      &c.Project.InstallMode,
		"dependency_policy": &c.Project.DependencyPolicy,
		"log_level":         &c.Project.LogLevel,
	}
	for key, target := range overrides {
		if value := strings.TrimSpace(v.GetString(key)); value != "" {
			*target = value
		}
	}
	if value := strings.TrimSpace(v.GetString("server_host")); value != "" {
		c.Project.Server.Host = value
	}
	if v.IsSet("server_port") {
		port, err := strconv.Atoi(strings.TrimSpace(v.GetString("server_port")))
		if err != nil {
			return fmt.Errorf("config: environment: server port: %w", err)
		}
		c.Project.Server.Port = port
	}
	c.Project.normalize()
	if err := c.Project.validate(); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:          1,
		ModulesDir:       defaultModulesDir,
		Environment:      "production",
		InstallMode:      InstallModeNormal,
		DependencyPolicy: DependencyPolicyWarn,
		LogLevel:         "info",
		Server:           ServerConfig{Host: "127.0.0.1", Port: 8080},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	defaults := defaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = defaults.Version
	}
	if strings.TrimSpace(pc.ModulesDir) == "" {
		pc.ModulesDir = defaults.ModulesDir
	}
	if strings.TrimSpace(pc.Environment) == "" {
		pc.Environment = defaults.Environment
	}
	if strings.TrimSpace(pc.InstallMode) == "" {
		pc.InstallMode = defaults.InstallMode
	}
	if strings.TrimSpace(pc.DependencyPolicy) == "" {
		pc.DependencyPolicy = defaults.DependencyPolicy
	}
	if strings.TrimSpace(pc.LogLevel) == "" {
		pc.LogLevel = defaults.LogLevel
	}
	if strings.TrimSpace(pc.Server.Host) == "" {
		pc.Server.Host = defaults.Server.Host
	}
	if pc.Server.Port == 0 {
		pc.Server.Port = defaults.Server.Port
	}
}

func (pc *ProjectConfig) normalize() {
	pc.ModulesDir = strings.TrimSpace(pc.ModulesDir)
	pc.Environment = normalizeValue(pc.Environment)
	pc.InstallMode = normalizeValue(pc.InstallMode)
	pc.DependencyPolicy = normalizeValue(pc.DependencyPolicy)
	pc.LogLevel = normalizeValue(pc.LogLevel)
	pc.Server.Host = strings.TrimSpace(pc.Server.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	switch pc.InstallMode {
	case InstallModeNormal, InstallModeBypass:
	default:
		return fmt.Errorf("install_mode must be 'normal' or 'bypass'")
	}
	switch pc.DependencyPolicy {
	case DependencyPolicyWarn, DependencyPolicyBlock:
	default:
		return fmt.Errorf("dependency_policy must be 'warn' or 'block'")
	}
	switch pc.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if pc.Server.Port < 0 || pc.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535")
	}
	return nil
}

func normalizeValue(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
