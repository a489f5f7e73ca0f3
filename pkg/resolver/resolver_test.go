// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
)

func releaseIDs(res *Result) []string {
	var out []string
	for _, rel := range res.Releases {
		out = append(out, rel.Name.String()+"@"+rel.Version.String())
	}
	return out
}

func assertReleases(t *testing.T, res *Result, want ...string) {
	t.Helper()
	got := releaseIDs(res)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("releases = %v, want %v", got, want)
	}
}

func TestPlanSelectsHighestSatisfying(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", []dep{{"acme-c", "1.x"}}, nil, false)
	reg.add("acme-b", "1.2.0", []dep{{"acme-c", "1.x"}}, nil, false)
	reg.add("acme-b", "2.0.0", nil, nil, false)
	reg.add("acme-c", "1.4.1", nil, nil, false)
	reg.add("acme-c", "2.0.0", nil, nil, false)

	res, err := newTestResolver(t, reg).Plan(t.Context(), rootModule(t, "acme-a", dep{"acme/b", "1.x"}))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if res.State != StateResolving {
		t.Errorf("State = %s, want resolving", res.State)
	}
	if res.Diagnostics.Len() != 0 {
		t.Errorf("diagnostics = %v", res.Diagnostics.Diagnostics())
	}
	assertReleases(t, res, "acme-b@1.2.0", "acme-c@1.4.1")

	c, ok := res.Release(metadata.MustParseModuleName("acme-c"))
	if !ok || c.RequiredBy.String() != "acme-b" || c.RangeText != "1.x" {
		t.Errorf("acme-c release = %+v", c)
	}
	if c.Metadata == nil || c.Metadata.Version.String() != "1.4.1" {
		t.Errorf("acme-c descriptor = %+v", c.Metadata)
	}
}

func TestPlanCircularDependency(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-a", "1.0.0", []dep{{"acme-b", ""}}, nil, false)
	reg.add("acme-b", "1.0.0", []dep{{"acme-a", ""}}, nil, false)

	res, err := newTestResolver(t, reg).Plan(t.Context(), rootModule(t, "acme-a", dep{"acme-b", ""}))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	assertReleases(t, res, "acme-b@1.0.0")

	got := res.Diagnostics.Filter(diag.CodeCircularDependency)
	if len(got) != 1 {
		t.Fatalf("circular diagnostics = %v, want one", res.Diagnostics.Diagnostics())
	}
	if got[0].Severity != diag.SeverityWarning {
		t.Errorf("severity = %s, want warning", got[0].Severity)
	}
	for _, name := range []string{"acme-a", "acme-b"} {
		if !strings.Contains(got[0].Message, name) {
			t.Errorf("message %q does not reference %s", got[0].Message, name)
		}
	}
	if !strings.Contains(got[0].Message, "acme-a -> acme-b -> acme-a") {
		t.Errorf("message %q does not show the cycle", got[0].Message)
	}
}

func TestPlanLongCycle(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", []dep{{"acme-c", ""}}, nil, false)
	reg.add("acme-c", "1.0.0", []dep{{"acme-d", ""}}, nil, false)
	reg.add("acme-d", "1.0.0", []dep{{"acme-b", ""}}, nil, false)

	res, err := newTestResolver(t, reg).Plan(t.Context(), rootModule(t, "acme-a", dep{"acme-b", ""}))
	if err != nil {
		t.Fatal(err)
	}
	assertReleases(t, res, "acme-b@1.0.0", "acme-c@1.0.0", "acme-d@1.0.0")
	got := res.Diagnostics.Filter(diag.CodeCircularDependency)
	if len(got) != 1 || !strings.Contains(got[0].Message, "acme-b -> acme-c -> acme-d -> acme-b") {
		t.Errorf("circular diagnostics = %v", got)
	}
}

func TestPlanVersionMismatch(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.9.0", nil, nil, false)

	res, err := newTestResolver(t, reg).Plan(t.Context(), rootModule(t, "acme-a", dep{"acme-b", ">=2.0.0"}))
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	assertReleases(t, res, "acme-b@1.9.0")
	got := res.Diagnostics.Filter(diag.CodeVersionMismatch)
	if len(got) != 1 || got[0].Severity != diag.SeverityWarning {
		t.Fatalf("mismatch diagnostics = %v", res.Diagnostics.Diagnostics())
	}
	if !strings.Contains(got[0].Message, ">=2.0.0") || !strings.Contains(got[0].Message, "1.9.0") {
		t.Errorf("message %q should name the range and the used version", got[0].Message)
	}
	if got[0].Pos == nil || got[0].Pos.File != metadata.JSONFile {
		t.Errorf("position = %v, want the declaring descriptor", got[0].Pos)
	}
}

func TestPlanSharedDependencyMismatch(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", []dep{{"acme-d", "1.x"}}, nil, false)
	reg.add("acme-c", "1.0.0", []dep{{"acme-d", "2.x"}}, nil, false)
	reg.add("acme-d", "1.5.0", nil, nil, false)
	reg.add("acme-d", "2.1.0", nil, nil, false)

	res, err := newTestResolver(t, reg).Plan(t.Context(),
		rootModule(t, "acme-a", dep{"acme-b", ""}, dep{"acme-c", ""}))
	if err != nil {
		t.Fatal(err)
	}
	assertReleases(t, res, "acme-b@1.0.0", "acme-d@1.5.0", "acme-c@1.0.0")
	got := res.Diagnostics.Filter(diag.CodeVersionMismatch)
	if len(got) != 1 || !strings.Contains(got[0].Message, "acme-c requires acme-d 2.x") {
		t.Errorf("mismatch diagnostics = %v", got)
	}
}

func TestPlanExcludesUnresolvable(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", nil, nil, false)
	reg.add("acme-broken", "1.0.0", nil, nil, false)
	reg.add("acme-offline", "1.0.0", nil, nil, false)
	reg.fetchErrs["acme-broken"] = errors.New("connection reset")
	reg.listErrs["acme-offline"] = errors.New("registry unavailable")

	root := rootModule(t, "acme-a",
		dep{"acme-missing", "1.x"}, dep{"acme-broken", ""}, dep{"acme-offline", ""}, dep{"acme-b", ""})
	res, err := newTestResolver(t, reg).Plan(t.Context(), root)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	assertReleases(t, res, "acme-b@1.0.0")

	unresolved := res.Diagnostics.Filter(diag.CodeUnresolvedDependency)
	if len(unresolved) != 1 || unresolved[0].Severity != diag.SeverityError || !strings.Contains(unresolved[0].Message, "acme-missing") {
		t.Errorf("unresolved diagnostics = %v", unresolved)
	}
	failed := res.Diagnostics.Filter(diag.CodeFetchFailed)
	if len(failed) != 2 {
		t.Fatalf("fetch diagnostics = %v, want two", failed)
	}
	if !strings.Contains(failed[0].Message, "acme-broken") || !strings.Contains(failed[1].Message, "acme-offline") {
		t.Errorf("fetch diagnostics out of declaration order: %v", failed)
	}
}

func TestPlanSeverities(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", []dep{{"acme-a", ""}}, nil, false)

	r := newTestResolver(t, reg, WithSeverities(Severities{
		Circular:        diag.SeverityError,
		VersionMismatch: diag.SeverityInfo,
		Unresolved:      diag.SeverityWarning,
	}))
	res, err := r.Plan(t.Context(), rootModule(t, "acme-a", dep{"acme-b", "2.x"}, dep{"acme-missing", ""}))
	if err != nil {
		t.Fatal(err)
	}
	want := map[diag.Code]diag.Severity{
		diag.CodeCircularDependency:   diag.SeverityError,
		diag.CodeVersionMismatch:      diag.SeverityInfo,
		diag.CodeUnresolvedDependency: diag.SeverityWarning,
	}
	for code, sev := range want {
		got := res.Diagnostics.Filter(code)
		if len(got) != 1 || got[0].Severity != sev {
			t.Errorf("%s diagnostics = %v, want one at %s", code, got, sev)
		}
	}
}

func TestPlanStrict(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", nil, nil, false)
	root := rootModule(t, "acme-a", dep{"acme-b", ""}, dep{"acme-missing", ""})

	res, err := newTestResolver(t, reg, WithStrict(true)).Plan(t.Context(), root)
	if !errors.Is(err, ErrStrictFailure) {
		t.Fatalf("Plan() error = %v, want ErrStrictFailure", err)
	}
	if res.State != StateFailed {
		t.Errorf("State = %s, want failed", res.State)
	}
	assertReleases(t, res, "acme-b@1.0.0")
	if !res.Diagnostics.HasErrors() {
		t.Error("partial result should keep its diagnostics")
	}

	// Warnings alone do not fail a strict run.
	reg.add("acme-c", "1.0.0", nil, nil, false)
	res, err = newTestResolver(t, reg, WithStrict(true)).Plan(t.Context(), rootModule(t, "acme-a", dep{"acme-c", "2.x"}))
	if err != nil || res.State != StateResolving {
		t.Errorf("Plan() = %s, %v; want success with only warnings", res.State, err)
	}
}

func TestPlanCancelled(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.add("acme-b", "1.0.0", nil, nil, false)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := newTestResolver(t, reg).Plan(ctx, rootModule(t, "acme-a", dep{"acme-b", ""}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Plan() error = %v, want context.Canceled", err)
	}
	if res.State != StateFailed || len(res.Releases) != 0 {
		t.Errorf("result = %s %v", res.State, releaseIDs(res))
	}
}

func TestPlanLegacyAndMissingDescriptors(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	reg.addRaw("acme-legacy", "1.0.0", map[string]string{
		metadata.LegacyFile: "name 'acme-legacy'\nversion '1.0.0'\ndependency 'acme/bare', '1.x'\n",
	})
	reg.addRaw("acme-bare", "1.0.0", map[string]string{"README.md": "no descriptor"})

	res, err := newTestResolver(t, reg).Plan(t.Context(), rootModule(t, "acme-a", dep{"acme-legacy", ""}))
	if err != nil {
		t.Fatal(err)
	}
	assertReleases(t, res, "acme-legacy@1.0.0", "acme-bare@1.0.0")
	bare, _ := res.Release(metadata.MustParseModuleName("acme-bare"))
	if bare.Metadata != nil {
		t.Errorf("acme-bare metadata = %+v, want nil", bare.Metadata)
	}
	if got := res.Diagnostics.Filter(diag.CodeMalformedDescriptor); len(got) != 1 || got[0].Severity != diag.SeverityWarning {
		t.Errorf("descriptor diagnostics = %v", got)
	}
}

func TestPlanFetchesEachReleaseOnce(t *testing.T) {
	t.Parallel()

	reg := newMemRegistry(t)
	var deps []dep
	for i := range 12 {
		name := fmt.Sprintf("acme-m%d", i)
		reg.add(name, "1.0.0", []dep{{"acme-shared", ""}}, nil, false)
		deps = append(deps, dep{name, ""})
	}
	reg.add("acme-shared", "1.0.0", nil, nil, false)

	res, err := newTestResolver(t, reg, WithWorkers(4)).Plan(t.Context(), rootModule(t, "acme-a", deps...))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Releases) != 13 {
		t.Fatalf("releases = %v", releaseIDs(res))
	}
	if got := releaseIDs(res)[:2]; got[0] != "acme-m0@1.0.0" || got[1] != "acme-shared@1.0.0" {
		t.Errorf("releases start with %v, want declaration order", got)
	}
	for i := range 12 {
		if n := reg.fetchCount(fmt.Sprintf("acme-m%d@1.0.0", i)); n != 1 {
			t.Errorf("acme-m%d fetched %d times, want 1", i, n)
		}
	}
	if n := reg.fetchCount("acme-shared@1.0.0"); n != 1 {
		t.Errorf("acme-shared fetched %d times, want 1", n)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	for s, want := range map[State]string{
		StateStart: "start", StateCollecting: "collecting", StateResolving: "resolving",
		StateFetching: "fetching", StateInstalled: "installed", StateFailed: "failed", State(99): "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
	if StateResolving.IsTerminal() || !StateFailed.IsTerminal() {
		t.Error("IsTerminal() mismatch")
	}
}
