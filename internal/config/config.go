// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/cueutil"
	"github.com/modforge/modforge/pkg/platform"
)

const (
	// AppName is the application name.
	AppName = "modforge"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is the project-level config file, looked up in the
	// working directory when no user config exists.
	LocalConfigFile = ".modforge.cue"
	// EnvPrefix prefixes environment overrides, e.g. MODFORGE_CACHE_DIR.
	EnvPrefix = "MODFORGE"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the modforge configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configDir, AppName), nil
}

// DefaultCacheDir returns <user cache dir>/modforge.
func DefaultCacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// ResolvedCacheDir returns the configured cache directory or the default.
func (c *Config) ResolvedCacheDir() (string, error) {
	if c.CacheDir != "" {
		return string(c.CacheDir), nil
	}
	return DefaultCacheDir()
}

// loadWithOptions performs option-driven config loading. It returns the
// config and the path of the file it was read from ("" for defaults only).
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := configFilePath(opts)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Use 'modforge config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}
	return &cfg, path, nil
}

// setDefaults registers every key so environment overrides apply to all of them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cache_dir", string(d.CacheDir))
	v.SetDefault("install_root", d.InstallRoot)
	v.SetDefault("registry.dir", d.Registry.Dir)
	v.SetDefault("registry.url", d.Registry.URL)
	v.SetDefault("registry.user_agent", d.Registry.UserAgent)
	v.SetDefault("registry.max_retries", d.Registry.MaxRetries)
	v.SetDefault("resolve.strict", d.Resolve.Strict)
	v.SetDefault("resolve.workers", d.Resolve.Workers)
	v.SetDefault("resolve.severity.circular", string(d.Resolve.Severity.Circular))
	v.SetDefault("resolve.severity.version_mismatch", string(d.Resolve.Severity.VersionMismatch))
	v.SetDefault("resolve.severity.unresolved", string(d.Resolve.Severity.Unresolved))
	v.SetDefault("log.level", string(d.Log.Level))
}

// configFilePath picks the file to load: the explicit path, the user config,
// then the project-local file. No file is not an error.
func configFilePath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	if p := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt); fileExists(p) {
		return p, nil
	}
	if p := filepath.Join(opts.BaseDir, LocalConfigFile); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper.
//
// Fields are optional in the schema, so validation is not concrete and the
// result is decoded to a map for Viper rather than to Config directly.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}
	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default config file unless one exists.
// It returns the path of the file.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cfgPath) {
		return cfgPath, nil
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg in the config file format.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// modforge configuration\n\n")
	if cfg.CacheDir != "" {
		fmt.Fprintf(&sb, "cache_dir: %q\n", cfg.CacheDir)
	}
	fmt.Fprintf(&sb, "install_root: %q\n", cfg.InstallRoot)

	sb.WriteString("\nregistry: {\n")
	if cfg.Registry.Dir != "" {
		fmt.Fprintf(&sb, "\tdir: %q\n", cfg.Registry.Dir)
	}
	if cfg.Registry.URL != "" {
		fmt.Fprintf(&sb, "\turl: %q\n", cfg.Registry.URL)
	}
	if cfg.Registry.UserAgent != "" {
		fmt.Fprintf(&sb, "\tuser_agent: %q\n", cfg.Registry.UserAgent)
	}
	fmt.Fprintf(&sb, "\tmax_retries: %d\n", cfg.Registry.MaxRetries)
	sb.WriteString("}\n")

	sb.WriteString("\nresolve: {\n")
	fmt.Fprintf(&sb, "\tstrict: %v\n", cfg.Resolve.Strict)
	fmt.Fprintf(&sb, "\tworkers: %d\n", cfg.Resolve.Workers)
	sb.WriteString("\tseverity: {\n")
	fmt.Fprintf(&sb, "\t\tcircular: %q\n", cfg.Resolve.Severity.Circular)
	fmt.Fprintf(&sb, "\t\tversion_mismatch: %q\n", cfg.Resolve.Severity.VersionMismatch)
	fmt.Fprintf(&sb, "\t\tunresolved: %q\n", cfg.Resolve.Severity.Unresolved)
	sb.WriteString("\t}\n")
	sb.WriteString("}\n")

	sb.WriteString("\nlog: {\n")
	fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	sb.WriteString("}\n")

	return sb.String()
}
