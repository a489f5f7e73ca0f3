// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/modforge/modforge/pkg/cache"
	"github.com/modforge/modforge/pkg/checksum"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/semver"
)

var (
	// ErrUnknownModule is returned by a Registry that has no releases of a module.
	ErrUnknownModule = errors.New("unknown module")

	// ErrStrictFailure is returned when strict mode fails a run that produced
	// error diagnostics.
	ErrStrictFailure = errors.New("resolution produced errors in strict mode")

	// ErrUnsafeInstallDir is returned when a module's short name does not map
	// to a single directory directly below the install root.
	ErrUnsafeInstallDir = errors.New("install directory escapes the install root")
)

type (
	// Registry lists and serves module releases.
	Registry interface {
		cache.Fetcher
		// Versions lists the available releases of name in any order. A
		// module the registry does not know yields an error wrapping ErrUnknownModule.
		Versions(ctx context.Context, name metadata.ModuleName) ([]semver.Version, error)
	}

	// Release is one selected dependency.
	Release struct {
		Name    metadata.ModuleName
		Version semver.Version
		// Range and RangeText are what the first dependent declared.
		Range      semver.Range
		RangeText  string
		RequiredBy metadata.ModuleName
		// Archive is the cached release archive.
		Archive string
		// Metadata is nil when the release carries no readable descriptor.
		Metadata *metadata.Metadata

		// Dir is set by Install to the installation directory.
		Dir string
		// Skipped reports an installed tree that already matched its checksums.
		Skipped bool
	}

	// Result is the outcome of Plan or Install. It is returned even when the
	// run fails, holding whatever was resolved before the failure.
	Result struct {
		Root        *metadata.Metadata
		Releases    []Release
		Diagnostics *diag.Chain
		State       State
	}

	// Resolver resolves and installs dependency graphs. A Resolver may serve
	// several runs concurrently; each run has its own seen set and diagnostics.
	Resolver struct {
		registry   Registry
		cache      *cache.Cache
		logger     *log.Logger
		severities Severities
		strict     bool
		workers    int
		checksums  *checksum.Engine

		descriptorCacheSize int
		descriptors         *lru.Cache[string, descriptor]
	}

	// run is the state of one resolution pass.
	run struct {
		r      *Resolver
		result *Result
		logger *log.Logger

		// seen maps a resolved module to its index in result.Releases.
		seen map[metadata.ModuleName]int
		// excluded holds modules that could not be resolved or fetched.
		excluded map[metadata.ModuleName]bool
		path     []metadata.ModuleName

		mu       sync.Mutex
		group    singleflight.Group
		versions map[metadata.ModuleName]lookup
		releases map[string]fetched
	}

	lookup struct {
		versions []semver.Version
		err      error
	}

	fetched struct {
		archive string
		desc    descriptor
		err     error
	}
)

// Release returns the selected release of name.
func (res *Result) Release(name metadata.ModuleName) (Release, bool) {
	for _, rel := range res.Releases {
		if rel.Name == name {
			return rel, true
		}
	}
	return Release{}, false
}

// New returns a Resolver that lists releases in registry and obtains archives
// through c.
func New(registry Registry, c *cache.Cache, opts ...Option) (*Resolver, error) {
	if registry == nil || c == nil {
		return nil, errors.New("resolver requires a registry and a cache")
	}
	r := &Resolver{
		registry:            registry,
		cache:               c,
		logger:              log.New(io.Discard),
		severities:          DefaultSeverities(),
		workers:             DefaultWorkers,
		checksums:           checksum.Default(),
		descriptorCacheSize: DefaultDescriptorCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	descriptors, err := lru.New[string, descriptor](r.descriptorCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create descriptor cache: %w", err)
	}
	r.descriptors = descriptors
	return r, nil
}

// Plan resolves the dependency graph of root without installing anything.
// The returned Result is in StateResolving unless the run failed.
func (r *Resolver) Plan(ctx context.Context, root *metadata.Metadata) (*Result, error) {
	rn := r.newRun(root)
	return rn.result, rn.resolve(ctx)
}

func (r *Resolver) newRun(root *metadata.Metadata) *run {
	return &run{
		r: r,
		result: &Result{
			Root:        root,
			Diagnostics: &diag.Chain{},
			State:       StateStart,
		},
		logger:   r.logger.With("root", root.Name.String()),
		seen:     map[metadata.ModuleName]int{},
		excluded: map[metadata.ModuleName]bool{},
		versions: map[metadata.ModuleName]lookup{},
		releases: map[string]fetched{},
	}
}

func (rn *run) transition(s State) {
	rn.logger.Debug("state transition", "from", rn.result.State.String(), "state", s.String())
	rn.result.State = s
}

// resolve runs Collecting and Resolving, then applies strict mode.
func (rn *run) resolve(ctx context.Context) error {
	rn.transition(StateCollecting)
	root := rn.result.Root
	if !root.IsValid() {
		rn.logger.Warn("root descriptor is incomplete")
	}

	rn.transition(StateResolving)
	if err := rn.visit(ctx, root.Name, root.Dependencies); err != nil {
		rn.transition(StateFailed)
		return err
	}

	if rn.r.strict {
		if n := rn.result.Diagnostics.Count(diag.SeverityError); n > 0 {
			rn.transition(StateFailed)
			return fmt.Errorf("%w: %d error(s)", ErrStrictFailure, n)
		}
	}
	return nil
}

// visit resolves the dependencies declared by owner, depth first. Only
// cancellation stops the walk.
func (rn *run) visit(ctx context.Context, owner metadata.ModuleName, deps []metadata.Dependency) error {
	rn.path = append(rn.path, owner)
	defer func() { rn.path = rn.path[:len(rn.path)-1] }()

	rn.prefetch(ctx, deps)
	for _, d := range deps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i := slices.Index(rn.path, d.Name); i >= 0 {
			rn.circular(d, i)
			continue
		}
		if idx, ok := rn.seen[d.Name]; ok {
			rn.checkSelected(owner, d, rn.result.Releases[idx])
			continue
		}
		if rn.excluded[d.Name] {
			continue
		}

		rel, ok := rn.selectRelease(ctx, owner, d)
		if !ok {
			rn.excluded[d.Name] = true
			continue
		}
		rn.seen[d.Name] = len(rn.result.Releases)
		rn.result.Releases = append(rn.result.Releases, rel)
		rn.logger.Debug("selected release", "module", d.Name.String(), "version", rel.Version.String())

		if rel.Metadata != nil {
			if err := rn.visit(ctx, d.Name, rel.Metadata.Dependencies); err != nil {
				return err
			}
		}
	}
	return nil
}

// prefetch lists versions and retrieves archives of unseen siblings
// concurrently. The sequential pass then finds the results memoized, so
// diagnostics keep declaration order.
func (rn *run) prefetch(ctx context.Context, deps []metadata.Dependency) {
	if rn.r.workers < 1 || len(deps) < 2 {
		return
	}
	var g errgroup.Group
	g.SetLimit(rn.r.workers)
	for _, d := range deps {
		if _, ok := rn.seen[d.Name]; ok || rn.excluded[d.Name] || slices.Contains(rn.path, d.Name) {
			continue
		}
		g.Go(func() error {
			versions, err := rn.lookupVersions(ctx, d.Name)
			if err != nil || len(versions) == 0 {
				return nil
			}
			v, _ := pick(d.Range, versions)
			rn.fetch(ctx, d.Name, v)
			return nil
		})
	}
	_ = g.Wait() // Workers never fail; errors surface in the sequential pass
}

// selectRelease chooses the version of d and reads its descriptor. It reports
// why a dependency is excluded.
func (rn *run) selectRelease(ctx context.Context, owner metadata.ModuleName, d metadata.Dependency) (Release, bool) {
	chain := rn.result.Diagnostics
	versions, err := rn.lookupVersions(ctx, d.Name)
	switch {
	case errors.Is(err, ErrUnknownModule) || (err == nil && len(versions) == 0):
		chain.Add(diag.Diagnostic{
			Severity: rn.r.severities.Unresolved,
			Code:     diag.CodeUnresolvedDependency,
			Message:  fmt.Sprintf("%s depends on %s, which has no known releases", display(owner), d.Name),
			Pos:      d.Pos,
			Cause:    err,
		})
		return Release{}, false
	case err != nil:
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeFetchFailed,
			Message:  fmt.Sprintf("listing releases of %s failed: %v", d.Name, err),
			Pos:      d.Pos,
			Cause:    err,
		})
		return Release{}, false
	}

	v, satisfied := pick(d.Range, versions)
	if !satisfied {
		chain.Add(diag.Diagnostic{
			Severity: rn.r.severities.VersionMismatch,
			Code:     diag.CodeVersionMismatch,
			Message: fmt.Sprintf("%s requires %s %s, but no release satisfies it; using %s",
				display(owner), d.Name, rangeLabel(d), v),
			Pos: d.Pos,
		})
	}

	f := rn.fetch(ctx, d.Name, v)
	if f.err != nil {
		chain.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeFetchFailed,
			Message:  fmt.Sprintf("could not obtain %s %s: %v", d.Name, v, f.err),
			Pos:      d.Pos,
			Cause:    f.err,
		})
		return Release{}, false
	}
	for _, dg := range f.desc.diags {
		chain.Add(dg)
	}

	return Release{
		Name:       d.Name,
		Version:    v,
		Range:      d.Range,
		RangeText:  d.RangeText,
		RequiredBy: owner,
		Archive:    f.archive,
		Metadata:   f.desc.meta,
	}, true
}

// checkSelected reports a later dependent whose range the already selected
// release does not satisfy.
func (rn *run) checkSelected(owner metadata.ModuleName, d metadata.Dependency, rel Release) {
	if d.Range.Satisfies(rel.Version) {
		return
	}
	rn.result.Diagnostics.Add(diag.Diagnostic{
		Severity: rn.r.severities.VersionMismatch,
		Code:     diag.CodeVersionMismatch,
		Message: fmt.Sprintf("%s requires %s %s, but %s was selected for %s",
			display(owner), d.Name, rangeLabel(d), rel.Version, display(rel.RequiredBy)),
		Pos: d.Pos,
	})
}

// circular reports d closing a cycle with the module at path[i].
func (rn *run) circular(d metadata.Dependency, i int) {
	names := make([]string, 0, len(rn.path)-i+1)
	for _, n := range rn.path[i:] {
		names = append(names, display(n))
	}
	names = append(names, d.Name.String())
	rn.result.Diagnostics.Add(diag.Diagnostic{
		Severity: rn.r.severities.Circular,
		Code:     diag.CodeCircularDependency,
		Message:  "circular dependency: " + strings.Join(names, " -> "),
		Pos:      d.Pos,
	})
}

// lookupVersions lists the releases of name once per run.
func (rn *run) lookupVersions(ctx context.Context, name metadata.ModuleName) ([]semver.Version, error) {
	rn.mu.Lock()
	l, ok := rn.versions[name]
	rn.mu.Unlock()
	if ok {
		return l.versions, l.err
	}

	v, _, _ := rn.group.Do("versions:"+name.String(), func() (any, error) {
		versions, err := rn.r.registry.Versions(ctx, name)
		l := lookup{versions: versions, err: err}
		rn.mu.Lock()
		rn.versions[name] = l
		rn.mu.Unlock()
		return l, nil
	})
	l = v.(lookup)
	return l.versions, l.err
}

// fetch retrieves the archive of a release and reads its descriptor once per run.
func (rn *run) fetch(ctx context.Context, name metadata.ModuleName, version semver.Version) fetched {
	key := name.String() + "@" + version.String()
	rn.mu.Lock()
	f, ok := rn.releases[key]
	rn.mu.Unlock()
	if ok {
		return f
	}

	v, _, _ := rn.group.Do("release:"+key, func() (any, error) {
		var f fetched
		f.archive, f.err = rn.r.cache.Retrieve(ctx, name, version)
		if f.err == nil {
			f.desc, f.err = rn.r.readDescriptor(f.archive, name, version)
		}
		rn.mu.Lock()
		rn.releases[key] = f
		rn.mu.Unlock()
		return f, nil
	})
	return v.(fetched)
}

// pick returns the highest version satisfying r, or the latest version when
// none does.
func pick(r semver.Range, versions []semver.Version) (semver.Version, bool) {
	if v, ok := semver.Best(r, versions); ok {
		return v, true
	}
	v, _ := semver.Latest(versions)
	return v, false
}

func rangeLabel(d metadata.Dependency) string {
	if d.RangeText == "" {
		return "(any version)"
	}
	return d.RangeText
}

func display(n metadata.ModuleName) string {
	if n.IsZero() {
		return "the root module"
	}
	return n.String()
}
