// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestLockRoundTrip(t *testing.T) {
	t.Parallel()

	want := Lock{
		Root: "pkg:puppet/acme/a@0.1.0",
		Releases: []LockedRelease{
			{Name: "acme-b", Version: "1.2.0", Range: "1.x", PURL: "pkg:puppet/acme/b@1.2.0", RequiredBy: "acme-a", Archive: "/cache/acme/b/acme-b-1.2.0.tar.gz"},
			{Name: "acme-c", Version: "2.0.0", PURL: "pkg:puppet/acme/c@2.0.0"},
		},
	}
	path := filepath.Join(t.TempDir(), LockFile)
	if err := WriteLock(path, want); err != nil {
		t.Fatalf("WriteLock() error = %v", err)
	}
	got, err := ReadLock(path)
	if err != nil {
		t.Fatalf("ReadLock() error = %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadLock() = %+v, want %+v", got, want)
	}
}
