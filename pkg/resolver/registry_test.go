// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"sync"
	"testing"

	"github.com/modforge/modforge/internal/testutil"
	"github.com/modforge/modforge/pkg/cache"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/semver"
)

// dep is a declared dependency of a fake release.
type dep struct {
	name   string
	rangeT string
}

// memRegistry serves releases built in memory.
type memRegistry struct {
	t *testing.T

	mu        sync.Mutex
	archives  map[string]map[string][]byte
	fetches   map[string]int
	fetchErrs map[string]error
	listErrs  map[string]error
}

func newMemRegistry(t *testing.T) *memRegistry {
	return &memRegistry{
		t:         t,
		archives:  map[string]map[string][]byte{},
		fetches:   map[string]int{},
		fetchErrs: map[string]error{},
		listErrs:  map[string]error{},
	}
}

// add publishes name at version with a strict descriptor and the given
// extra files. Checksums of the extra files are recorded when withSums is set.
func (m *memRegistry) add(name, version string, deps []dep, files map[string]string, withSums bool) {
	m.t.Helper()
	n := metadata.MustParseModuleName(name)

	desc := map[string]any{"name": n.String(), "version": version}
	var list []map[string]string
	for _, d := range deps {
		entry := map[string]string{"name": d.name}
		if d.rangeT != "" {
			entry["version_requirement"] = d.rangeT
		}
		list = append(list, entry)
	}
	if len(list) > 0 {
		desc["dependencies"] = list
	}
	if withSums {
		sums := map[string]string{}
		for rel, content := range files {
			sum := md5.Sum([]byte(content))
			sums[rel] = hex.EncodeToString(sum[:])
		}
		desc["checksums"] = sums
	}
	data, err := json.Marshal(desc)
	if err != nil {
		m.t.Fatal(err)
	}

	all := maps.Clone(files)
	if all == nil {
		all = map[string]string{}
	}
	all[metadata.JSONFile] = string(data)
	m.addRaw(name, version, all)
}

// addRaw publishes an archive holding exactly files.
func (m *memRegistry) addRaw(name, version string, files map[string]string) {
	m.t.Helper()
	n := metadata.MustParseModuleName(name)
	top := n.String() + "-" + version

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.archives[n.String()] == nil {
		m.archives[n.String()] = map[string][]byte{}
	}
	m.archives[n.String()][version] = testutil.ReleaseTarGz(m.t, top, files)
}

func (m *memRegistry) Versions(_ context.Context, name metadata.ModuleName) ([]semver.Version, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErrs[name.String()]; err != nil {
		return nil, err
	}
	releases, ok := m.archives[name.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	var out []semver.Version
	for v := range releases {
		out = append(out, semver.MustParse(v))
	}
	return out, nil
}

func (m *memRegistry) Fetch(_ context.Context, name metadata.ModuleName, version semver.Version) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name.String() + "@" + version.String()
	m.fetches[key]++
	if err := m.fetchErrs[name.String()]; err != nil {
		return nil, err
	}
	data, ok := m.archives[name.String()][version.String()]
	if !ok {
		return nil, errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memRegistry) fetchCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[key]
}

// newTestResolver wires a resolver to reg with a fresh cache.
func newTestResolver(t *testing.T, reg *memRegistry, opts ...Option) *Resolver {
	t.Helper()
	r, err := New(reg, cache.New(t.TempDir(), reg), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

// rootModule parses a root descriptor declaring deps.
func rootModule(t *testing.T, name string, deps ...dep) *metadata.Metadata {
	t.Helper()
	desc := map[string]any{"name": name, "version": "0.1.0"}
	var list []map[string]string
	for _, d := range deps {
		list = append(list, map[string]string{"name": d.name, "version_requirement": d.rangeT})
	}
	if len(list) > 0 {
		desc["dependencies"] = list
	}
	data, err := json.Marshal(desc)
	if err != nil {
		t.Fatal(err)
	}
	m, err := metadata.ParseJSON(data, metadata.JSONFile, nil)
	if err != nil {
		t.Fatal(err)
	}
	return m
}
