// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modforge/modforge/internal/config"
	"github.com/modforge/modforge/internal/issue"
)

func TestGetVersionString(t *testing.T) {
	// Not parallel: subtests mutate package-level Version/Commit/BuildDate vars.

	t.Run("ldflags version", func(t *testing.T) {
		origVersion, origCommit, origBuildDate := Version, Commit, BuildDate
		t.Cleanup(func() {
			Version, Commit, BuildDate = origVersion, origCommit, origBuildDate
		})

		Version = "v1.2.3"
		Commit = "abc1234"
		BuildDate = "2025-06-15T10:00:00Z"

		got := getVersionString()
		want := "v1.2.3 (commit: abc1234, built: 2025-06-15T10:00:00Z)"
		if got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})

	t.Run("dev build", func(t *testing.T) {
		origVersion := Version
		t.Cleanup(func() { Version = origVersion })

		Version = "dev"
		if got, want := getVersionString(), "dev (built from source)"; got != want {
			t.Errorf("getVersionString() = %q, want %q", got, want)
		}
	})
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	ae := issue.NewErrorContext().
		WithOperation("open registry").
		WithSuggestion("Set registry.dir").
		Wrap(errors.New("no registry configured")).
		BuildError()

	tests := []struct {
		name    string
		err     error
		verbose bool
		want    []string
		notWant []string
	}{
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: []string{"Error: ", "boom"},
		},
		{
			name:    "actionable error",
			err:     ae,
			want:    []string{"failed to open registry", "• Set registry.dir"},
			notWant: []string{"Error chain:"},
		},
		{
			name:    "actionable error verbose",
			err:     ae,
			verbose: true,
			want:    []string{"Error chain:", "1. no registry configured"},
		},
		{
			name: "exit error without cause",
			err:  &ExitError{Code: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := formatErrorForDisplay(tt.err, tt.verbose)
			if len(tt.want) == 0 && got != "" {
				t.Errorf("formatErrorForDisplay() = %q, want empty", got)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("formatErrorForDisplay() = %q, want %q", got, w)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(got, w) {
					t.Errorf("formatErrorForDisplay() = %q, must not contain %q", got, w)
				}
			}
		})
	}
}

func TestVerboseFromArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"modforge", "install"}, false},
		{[]string{"modforge", "-v", "install"}, true},
		{[]string{"modforge", "install", "--verbose"}, true},
		{[]string{"modforge", "install", "--verbose=true"}, true},
	}
	for _, tt := range tests {
		if got := verboseFromArgs(tt.args); got != tt.want {
			t.Errorf("verboseFromArgs(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

type failingConfig struct{ err error }

func (f failingConfig) Load(context.Context, config.LoadOptions) (*config.Config, string, error) {
	return nil, "", f.err
}

func TestRoot_ConfigErrorStopsCommand(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("bad config")
	stdout := &bytes.Buffer{}
	root := NewRootCommand(NewApp(Dependencies{Config: failingConfig{err: wantErr}, Stdout: stdout, Stderr: &bytes.Buffer{}}))
	root.SetArgs([]string{"cache", "dir"})

	if err := root.ExecuteContext(t.Context()); !errors.Is(err, wantErr) {
		t.Fatalf("Execute() error = %v, want %v", err, wantErr)
	}
	if stdout.Len() != 0 {
		t.Errorf("command ran despite the config error: %q", stdout)
	}
}

func TestRoot_VerboseLogging(t *testing.T) {
	t.Parallel()

	regDir, project := newInstallFixture(t, testDep{"acme-c", ""})
	cli := newTestCLI(t, regDir)

	if err := cli.run(t, "-v", "install", "--dry-run", project); err != nil {
		t.Fatalf("install error = %v", err)
	}
	if !strings.Contains(cli.stderr.String(), "DEBU") {
		t.Errorf("verbose run produced no debug logs:\n%s", cli.stderr)
	}
}
