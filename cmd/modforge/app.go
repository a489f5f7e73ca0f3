// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/modforge/modforge/internal/config"
	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/internal/registry"
	"github.com/modforge/modforge/pkg/cache"
	"github.com/modforge/modforge/pkg/resolver"
)

type (
	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error)
	}

	// App wires CLI services and shared dependencies. All command handlers
	// receive an App and reach configuration, the registry and output
	// streams through it.
	App struct {
		Config ConfigProvider
		// Registry overrides the configured release source when set.
		Registry resolver.Registry
		// Metrics receives the cache counters; nil leaves them unregistered.
		Metrics prometheus.Registerer

		stdout io.Writer
		stderr io.Writer

		// Set by the root command before any handler runs.
		cfg     *config.Config
		cfgPath string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config   ConfigProvider
		Registry resolver.Registry
		Metrics  prometheus.Registerer
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// session holds what a resolving command needs for one invocation.
	session struct {
		cache    *cache.Cache
		resolver *resolver.Resolver
		closer   io.Closer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config:   deps.Config,
		Registry: deps.Registry,
		Metrics:  deps.Metrics,
		stdout:   deps.Stdout,
		stderr:   deps.Stderr,
	}
}

// loadConfig loads configuration once; later calls return the same value.
func (a *App) loadConfig(ctx context.Context, cfgFile string) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, path, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		return nil, err
	}
	a.cfg, a.cfgPath = cfg, path
	return cfg, nil
}

// cacheDir resolves the configured cache directory.
func (a *App) cacheDir() (string, error) {
	dir, err := a.cfg.ResolvedCacheDir()
	if err != nil {
		return "", issue.NewErrorContext().
			WithOperation("locate cache directory").
			WithSuggestion("Set cache_dir in the configuration or MODFORGE_CACHE_DIR").
			Wrap(err).
			BuildError()
	}
	return dir, nil
}

// openRegistry returns the injected registry or builds the configured one.
// The closer is nil when nothing needs releasing.
func (a *App) openRegistry(logger *log.Logger) (resolver.Registry, io.Closer, error) {
	if a.Registry != nil {
		return a.Registry, nil, nil
	}
	rc := a.cfg.Registry
	switch {
	case rc.Dir != "":
		return registry.NewDir(rc.Dir), nil, nil
	case rc.URL != "":
		reg, err := registry.NewHTTP(rc.URL,
			registry.WithUserAgent(rc.UserAgent),
			registry.WithMaxRetries(rc.MaxRetries),
			registry.WithHTTPLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return reg, reg, nil
	}
	return nil, nil, issue.NewErrorContext().
		WithOperation("open registry").
		WithSuggestion("Set registry.dir to a directory of release files").
		WithSuggestion("Or set registry.url to a registry endpoint").
		Wrap(fmt.Errorf("no registry configured")).
		BuildError()
}

// newSession builds the cache and resolver for a resolving command.
func (a *App) newSession(ctx context.Context, strict bool) (*session, error) {
	logger := loggerFromContext(ctx)

	reg, closer, err := a.openRegistry(logger)
	if err != nil {
		return nil, err
	}
	dir, err := a.cacheDir()
	if err != nil {
		return nil, err
	}
	c := cache.New(dir, reg,
		cache.WithLogger(logger),
		cache.WithMetrics(cache.NewMetrics(a.Metrics)),
	)

	severities, err := a.cfg.Resolve.Severity.Severities()
	if err != nil {
		return nil, err
	}
	r, err := resolver.New(reg, c,
		resolver.WithLogger(logger),
		resolver.WithStrict(strict || a.cfg.Resolve.Strict),
		resolver.WithWorkers(a.cfg.Resolve.Workers),
		resolver.WithSeverities(severities),
	)
	if err != nil {
		return nil, err
	}
	return &session{cache: c, resolver: r, closer: closer}, nil
}

func (s *session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// installRoot resolves the configured install root against the project directory.
func (a *App) installRoot(projectDir, override string) string {
	root := a.cfg.InstallRoot
	if override != "" {
		root = override
	}
	if filepath.IsAbs(root) {
		return root
	}
	return filepath.Join(projectDir, root)
}
