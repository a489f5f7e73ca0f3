// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/config"
)

// newConfigCommand creates the `modforge config` command tree. The root
// command has already loaded the configuration into app.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage modforge configuration",
		Long: `Manage modforge configuration.

Configuration is stored in:
  - Linux: ~/.config/modforge/config.cue
  - macOS: ~/Library/Application Support/modforge/config.cue
  - Windows: %APPDATA%\modforge\config.cue

A .modforge.cue in the working directory is used when no user file exists.
MODFORGE_* environment variables override both (e.g. MODFORGE_CACHE_DIR).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfig(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(_ *cobra.Command, _ []string) error {
			return showConfigPath(app)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(path))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(app *App) error {
	cfg := app.cfg
	key := CmdStyle.Render
	val := SuccessStyle.Render
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if app.cfgPath != "" {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), app.cfgPath)
	} else {
		fmt.Fprintf(w, "%s: %s\n", key("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	cacheDir, err := app.cacheDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s\n", key("cache_dir"), val(cacheDir))
	fmt.Fprintf(w, "%s: %s\n", key("install_root"), val(cfg.InstallRoot))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("registry"))
	switch {
	case cfg.Registry.Dir != "":
		fmt.Fprintf(w, "  dir: %s\n", val(cfg.Registry.Dir))
	case cfg.Registry.URL != "":
		fmt.Fprintf(w, "  url: %s\n", val(cfg.Registry.URL))
	default:
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	fmt.Fprintf(w, "  max_retries: %s\n", val(strconv.Itoa(cfg.Registry.MaxRetries)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("resolve"))
	fmt.Fprintf(w, "  strict: %s\n", val(strconv.FormatBool(cfg.Resolve.Strict)))
	fmt.Fprintf(w, "  workers: %s\n", val(strconv.Itoa(cfg.Resolve.Workers)))
	fmt.Fprintf(w, "  severity.circular: %s\n", val(string(cfg.Resolve.Severity.Circular)))
	fmt.Fprintf(w, "  severity.version_mismatch: %s\n", val(string(cfg.Resolve.Severity.VersionMismatch)))
	fmt.Fprintf(w, "  severity.unresolved: %s\n", val(string(cfg.Resolve.Severity.Unresolved)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", key("log"))
	fmt.Fprintf(w, "  level: %s\n", val(string(cfg.Log.Level)))
	return nil
}

func showConfigPath(app *App) error {
	if app.cfgPath != "" {
		fmt.Fprintln(app.stdout, app.cfgPath)
		return nil
	}
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	path := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
	fmt.Fprintf(app.stdout, "%s %s\n", path, SubtitleStyle.Render("(not created)"))
	return nil
}
