// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/modforge/modforge/internal/testutil"
	"github.com/modforge/modforge/pkg/diag"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		files    map[string]string
		wantFile string
		wantAuth string
	}{
		{
			name:     "strict",
			files:    map[string]string{JSONFile: `{"name": "acme-widget", "version": "1.0.0", "author": "json"}`},
			wantFile: JSONFile,
			wantAuth: "json",
		},
		{
			name:     "legacy",
			files:    map[string]string{LegacyFile: "name 'acme-widget'\nversion '1.0.0'\nauthor 'legacy'\n"},
			wantFile: LegacyFile,
			wantAuth: "legacy",
		},
		{
			name: "strict wins",
			files: map[string]string{
				JSONFile:   `{"name": "acme-widget", "version": "1.0.0", "author": "json"}`,
				LegacyFile: "name 'acme-widget'\nversion '1.0.0'\nauthor 'legacy'\n",
			},
			wantFile: JSONFile,
			wantAuth: "json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			testutil.WriteTree(t, dir, tt.files)

			var chain diag.Chain
			m, err := Load(dir, &chain)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if m.File != filepath.Join(dir, tt.wantFile) {
				t.Errorf("File = %s, want %s", m.File, tt.wantFile)
			}
			if m.Author != tt.wantAuth {
				t.Errorf("Author = %q, want %q", m.Author, tt.wantAuth)
			}
			if chain.HasErrors() {
				t.Errorf("diagnostics = %v", chain.Diagnostics())
			}
		})
	}
}

func TestLoadNoDescriptor(t *testing.T) {
	t.Parallel()

	_, err := Load(t.TempDir(), nil)
	if !errors.Is(err, ErrNoDescriptor) {
		t.Errorf("Load() error = %v, want ErrNoDescriptor", err)
	}
}
