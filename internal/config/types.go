// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/resolver"
)

const (
	// SeverityInfo reports a resolution problem as informational.
	SeverityInfo SeverityName = "info"
	// SeverityWarning reports a resolution problem as a warning.
	SeverityWarning SeverityName = "warning"
	// SeverityError reports a resolution problem as an error.
	SeverityError SeverityName = "error"

	// LogLevelDebug enables debug output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo is the default log level.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn only reports warnings and errors.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError only reports errors.
	LogLevelError LogLevel = "error"

	// DefaultInstallRoot is where modules are installed, relative to the project.
	DefaultInstallRoot = "modules"
	// DefaultMaxRetries bounds retries of a failed registry request.
	DefaultMaxRetries = 3
)

var (
	// ErrInvalidCacheDirPath is returned when a CacheDirPath value is whitespace-only.
	ErrInvalidCacheDirPath = errors.New("invalid cache dir path")
	// ErrInvalidSeverityName is returned when a SeverityName value is not recognized.
	ErrInvalidSeverityName = errors.New("invalid severity")
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidRegistryConfig is the sentinel error wrapped by InvalidRegistryConfigError.
	ErrInvalidRegistryConfig = errors.New("invalid registry config")
	// ErrInvalidResolveConfig is the sentinel error wrapped by InvalidResolveConfigError.
	ErrInvalidResolveConfig = errors.New("invalid resolve config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// CacheDirPath is the release archive cache directory. The zero value
	// means the platform user cache directory.
	CacheDirPath string

	// InvalidCacheDirPathError is returned when a CacheDirPath value is
	// non-empty but whitespace-only.
	InvalidCacheDirPathError struct {
		Value CacheDirPath
	}

	// SeverityName is the configured spelling of a diagnostic severity.
	SeverityName string

	// InvalidSeverityNameError is returned when a SeverityName value is not recognized.
	InvalidSeverityNameError struct {
		Field string
		Value SeverityName
	}

	// LogLevel is the minimum level the CLI logger emits.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// RegistryConfig selects where releases come from. Dir takes a local
	// directory of release files; URL a remote registry. At most one is set.
	RegistryConfig struct {
		Dir        string `json:"dir,omitempty" mapstructure:"dir"`
		URL        string `json:"url,omitempty" mapstructure:"url"`
		UserAgent  string `json:"user_agent,omitempty" mapstructure:"user_agent"`
		MaxRetries int    `json:"max_retries" mapstructure:"max_retries"`
	}

	// InvalidRegistryConfigError wraps the field errors of a RegistryConfig.
	InvalidRegistryConfigError struct {
		FieldErrors []error
	}

	// SeverityConfig sets how each resolution problem is reported.
	SeverityConfig struct {
		Circular        SeverityName `json:"circular" mapstructure:"circular"`
		VersionMismatch SeverityName `json:"version_mismatch" mapstructure:"version_mismatch"`
		Unresolved      SeverityName `json:"unresolved" mapstructure:"unresolved"`
	}

	// ResolveConfig controls dependency resolution.
	ResolveConfig struct {
		// Strict fails a run before installing when resolution reported errors.
		Strict   bool           `json:"strict" mapstructure:"strict"`
		Workers  int            `json:"workers" mapstructure:"workers"`
		Severity SeverityConfig `json:"severity" mapstructure:"severity"`
	}

	// InvalidResolveConfigError wraps the field errors of a ResolveConfig.
	InvalidResolveConfigError struct {
		FieldErrors []error
	}

	// LogConfig controls CLI logging.
	LogConfig struct {
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// Config is the modforge configuration.
	Config struct {
		CacheDir    CacheDirPath   `json:"cache_dir,omitempty" mapstructure:"cache_dir"`
		InstallRoot string         `json:"install_root" mapstructure:"install_root"`
		Registry    RegistryConfig `json:"registry" mapstructure:"registry"`
		Resolve     ResolveConfig  `json:"resolve" mapstructure:"resolve"`
		Log         LogConfig      `json:"log" mapstructure:"log"`
	}

	// InvalidConfigError wraps the field errors of a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheDir:    "", // platform user cache directory
		InstallRoot: DefaultInstallRoot,
		Registry: RegistryConfig{
			MaxRetries: DefaultMaxRetries,
		},
		Resolve: ResolveConfig{
			Strict:  false,
			Workers: resolver.DefaultWorkers,
			Severity: SeverityConfig{
				Circular:        SeverityWarning,
				VersionMismatch: SeverityWarning,
				Unresolved:      SeverityError,
			},
		},
		Log: LogConfig{Level: LogLevelInfo},
	}
}

// String returns the string representation of the CacheDirPath.
func (p CacheDirPath) String() string { return string(p) }

// IsValid returns whether the CacheDirPath is valid.
// The zero value ("") is valid (means "use default cache directory").
// Non-zero values must not be whitespace-only.
func (p CacheDirPath) IsValid() (bool, []error) {
	if p == "" {
		return true, nil
	}
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidCacheDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidCacheDirPathError.
func (e *InvalidCacheDirPathError) Error() string {
	return fmt.Sprintf("invalid cache dir path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidCacheDirPath for errors.Is() compatibility.
func (e *InvalidCacheDirPathError) Unwrap() error { return ErrInvalidCacheDirPath }

// Severity converts the name to a diagnostic severity.
func (s SeverityName) Severity() (diag.Severity, error) {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return diag.ParseSeverity(string(s))
	}
	return 0, &InvalidSeverityNameError{Value: s}
}

// Error implements the error interface for InvalidSeverityNameError.
func (e *InvalidSeverityNameError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid severity %q for %s (valid: info, warning, error)", e.Value, e.Field)
	}
	return fmt.Sprintf("invalid severity %q (valid: info, warning, error)", e.Value)
}

// Unwrap returns ErrInvalidSeverityName for errors.Is() compatibility.
func (e *InvalidSeverityNameError) Unwrap() error { return ErrInvalidSeverityName }

// Level converts the configured level to a logger level.
func (l LogLevel) Level() (log.Level, error) {
	switch l {
	case LogLevelDebug:
		return log.DebugLevel, nil
	case LogLevelInfo:
		return log.InfoLevel, nil
	case LogLevelWarn:
		return log.WarnLevel, nil
	case LogLevelError:
		return log.ErrorLevel, nil
	}
	return log.InfoLevel, &InvalidLogLevelError{Value: l}
}

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	if _, err := l.Level(); err != nil {
		return false, []error{err}
	}
	return true, nil
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// IsValid returns whether the RegistryConfig has valid fields.
func (c RegistryConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Dir != "" && c.URL != "" {
		errs = append(errs, errors.New("registry.dir and registry.url are mutually exclusive"))
	}
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("registry.url %q must be an http(s) URL", c.URL))
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("registry.max_retries must not be negative, got %d", c.MaxRetries))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidRegistryConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidRegistryConfigError.
func (e *InvalidRegistryConfigError) Error() string {
	return fmt.Sprintf("invalid registry config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidRegistryConfig for errors.Is() compatibility.
func (e *InvalidRegistryConfigError) Unwrap() error { return ErrInvalidRegistryConfig }

// Severities converts the configured names to resolver severities.
func (c SeverityConfig) Severities() (resolver.Severities, error) {
	var s resolver.Severities
	var errs []error
	for _, f := range []struct {
		field string
		name  SeverityName
		dst   *diag.Severity
	}{
		{"resolve.severity.circular", c.Circular, &s.Circular},
		{"resolve.severity.version_mismatch", c.VersionMismatch, &s.VersionMismatch},
		{"resolve.severity.unresolved", c.Unresolved, &s.Unresolved},
	} {
		sev, err := f.name.Severity()
		if err != nil {
			errs = append(errs, &InvalidSeverityNameError{Field: f.field, Value: f.name})
			continue
		}
		*f.dst = sev
	}
	return s, errors.Join(errs...)
}

// IsValid returns whether the ResolveConfig has valid fields.
func (c ResolveConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("resolve.workers must not be negative, got %d", c.Workers))
	}
	if _, err := c.Severity.Severities(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidResolveConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidResolveConfigError.
func (e *InvalidResolveConfigError) Error() string {
	return fmt.Sprintf("invalid resolve config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidResolveConfig for errors.Is() compatibility.
func (e *InvalidResolveConfigError) Unwrap() error { return ErrInvalidResolveConfig }

// IsValid returns whether the Config has valid fields. It delegates to
// each section's IsValid.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.CacheDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if strings.TrimSpace(c.InstallRoot) == "" {
		errs = append(errs, errors.New("install_root must not be empty"))
	}
	if valid, fieldErrs := c.Registry.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Resolve.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
