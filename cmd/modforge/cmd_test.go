// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modforge/modforge/internal/config"
	"github.com/modforge/modforge/internal/testutil"
)

type (
	// staticConfig serves a fixed configuration.
	staticConfig struct {
		cfg  *config.Config
		path string
	}

	testCLI struct {
		app    *App
		stdout *bytes.Buffer
		stderr *bytes.Buffer
	}

	testDep struct {
		name, rangeText string
	}
)

func (s staticConfig) Load(_ context.Context, _ config.LoadOptions) (*config.Config, string, error) {
	return s.cfg, s.path, nil
}

// newTestCLI returns an App whose cache lives in a temp dir and whose
// registry is the directory regDir.
func newTestCLI(t *testing.T, regDir string) *testCLI {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.CacheDir = config.CacheDirPath(filepath.Join(t.TempDir(), "cache"))
	cfg.Registry.Dir = regDir
	cfg.Resolve.Workers = 2

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	return &testCLI{
		app: NewApp(Dependencies{
			Config: staticConfig{cfg: cfg},
			Stdout: stdout,
			Stderr: stderr,
		}),
		stdout: stdout,
		stderr: stderr,
	}
}

func (c *testCLI) run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(c.app)
	root.SetArgs(args)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	return root.ExecuteContext(t.Context())
}

// descriptorJSON renders a minimal metadata.json.
func descriptorJSON(t *testing.T, name, version string, deps ...testDep) string {
	t.Helper()
	desc := map[string]any{"name": name, "version": version}
	list := []map[string]string{}
	for _, d := range deps {
		entry := map[string]string{"name": d.name}
		if d.rangeText != "" {
			entry["version_requirement"] = d.rangeText
		}
		list = append(list, entry)
	}
	desc["dependencies"] = list
	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// publish writes a release archive of name at version into the registry dir.
func publish(t *testing.T, regDir, name, version string, files map[string]string, deps ...testDep) {
	t.Helper()
	all := map[string]string{"metadata.json": descriptorJSON(t, name, version, deps...)}
	for k, v := range files {
		all[k] = v
	}
	top := name + "-" + version
	data := testutil.ReleaseTarGz(t, top, all)
	testutil.MustWriteFile(t, filepath.Join(regDir, top+".tar.gz"), string(data), 0o644)
}
