// SPDX-License-Identifier: MPL-2.0

package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"github.com/modforge/modforge/internal/testutil"
)

func newTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"metadata.json":          `{"name": "acme-widget"}`,
		"manifests/init.pp":      "class widget {}",
		"manifests/config.pp":    "class widget::config {}",
		"pkg/acme-widget.tar.gz": "build output",
		"checksums.json":         "{}",
	})
	return root
}

func TestDigestFile(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, "hello.txt")
	testutil.MustWriteFile(t, path, "hello\n", 0o644)

	tests := []struct {
		algo Algorithm
		want string
	}{
		{MD5, "b1946ac92492d2347c6235b4d2611184"},
		{XXHash64, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.algo), func(t *testing.T) {
			t.Parallel()
			e, err := New(tt.algo)
			if err != nil {
				t.Fatalf("New(%q) error = %v", tt.algo, err)
			}
			got, err := e.DigestFile(path)
			if err != nil {
				t.Fatalf("DigestFile() error = %v", err)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("DigestFile() = %s, want %s", got, tt.want)
			}
			if len(got) == 0 {
				t.Error("DigestFile() returned empty digest")
			}
		})
	}
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	t.Parallel()

	if _, err := New("sha3"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Errorf("New(sha3) error = %v, want ErrUnknownAlgorithm", err)
	}
	e, err := New("")
	if err != nil || e.Algorithm() != MD5 {
		t.Errorf("New(\"\") = %v, %v; want MD5 engine", e, err)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	e := Default()
	exclude := ExcludeNames("pkg", ManifestFile)

	first, err := e.Build(root, exclude)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	second, err := e.Build(root, exclude)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !first.Equal(second) {
		t.Errorf("Build() not deterministic:\n%v\n%v", first, second)
	}

	want := []string{"manifests/config.pp", "manifests/init.pp", "metadata.json"}
	if got := first.Paths(); !slices.Equal(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}
}

func TestBuild_SkipsSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}

	root := newTree(t)
	testutil.MustSymlink(t, "manifests/init.pp", filepath.Join(root, "link.pp"))

	m, err := Default().Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := m["link.pp"]; ok {
		t.Error("Build() recorded a symlink entry")
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	e := Default()
	exclude := ExcludeNames("pkg", ManifestFile)

	old, err := e.Build(root, exclude)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	changed, err := e.Diff(old, root, exclude)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(changed) != 0 {
		t.Fatalf("Diff() on unmodified tree = %v, want none", changed)
	}

	testutil.MustWriteFile(t, filepath.Join(root, "manifests", "init.pp"), "class widget { }", 0o644)
	testutil.MustWriteFile(t, filepath.Join(root, "README.md"), "# widget", 0o644)
	if err := os.Remove(filepath.Join(root, "manifests", "config.pp")); err != nil {
		t.Fatal(err)
	}

	changed, err = e.Diff(old, root, exclude)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	want := []string{"README.md", "manifests/init.pp"}
	if !slices.Equal(changed, want) {
		t.Errorf("Diff() = %v, want %v", changed, want)
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	e := Default()
	expected, err := e.Build(root, nil)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	bad, err := e.Verify(expected, root)
	if err != nil || len(bad) != 0 {
		t.Fatalf("Verify() = %v, %v; want clean", bad, err)
	}

	if err := os.Remove(filepath.Join(root, "metadata.json")); err != nil {
		t.Fatal(err)
	}
	bad, err = e.Verify(expected, root)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !slices.Equal(bad, []string{"metadata.json"}) {
		t.Errorf("Verify() = %v, want [metadata.json]", bad)
	}
}

func TestManifest_WriteRead(t *testing.T) {
	t.Parallel()

	root := newTree(t)
	e := Default()
	m, err := e.Build(root, ExcludeNames(ManifestFile))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), ManifestFile)
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest() error = %v", err)
	}
	got, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	if !got.Equal(m) {
		t.Errorf("ReadManifest() = %v, want %v", got, m)
	}
}
