package convert

import (
	"context"
	"testing"

	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/python"
)

// fakeResolver serves canned release listings: package name -> version ->
// direct dependency specifiers.
type fakeResolver struct {
	releases map[string]map[string][]string
	calls    map[string]int
}

func newFakeResolver(releases map[string]map[string][]string) *fakeResolver {
	return &fakeResolver{releases: releases, calls: make(map[string]int)}
}

func (f *fakeResolver) ResolveDirect(ctx context.Context, name string, constraints python.Constraints, refresh bool) (python.Version, []python.Requirement, error) {
	f.calls[name]++
	versions, ok := f.releases[name]
	if !ok {
		return python.Version{}, nil, errors.New(errors.ErrCodeNotFound, "package %s not found", name)
	}

	var candidates []string
	for v := range versions {
		candidates = append(candidates, v)
	}
	best := constraints.BestMatch(candidates)
	if best.IsZero() {
		return python.Version{}, nil, errors.New(errors.ErrCodeResolution,
			"no release of %s satisfies %s", name, constraints)
	}

	var deps []python.Requirement
	for _, spec := range versions[best.String()] {
		req, err := python.ParseRequirement(spec)
		if err != nil {
			return python.Version{}, nil, err
		}
		deps = append(deps, req)
	}
	return best, deps, nil
}

func closureNames(c Closure) []string {
	names := make([]string, len(c))
	for i, m := range c {
		names[i] = m.Source
	}
	return names
}

func TestResolveClosureOrder(t *testing.T) {
	r := newFakeResolver(map[string]map[string][]string{
		"pkg": {"1.0": {"b", "a"}},
		"a":   {"1.0": {"c"}},
		"b":   {"1.0": {"c"}},
		"c":   {"1.0": nil},
	})

	closure, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"pkg"}, false)
	if err != nil {
		t.Fatalf("ResolveClosure() error: %v", err)
	}

	got := closureNames(closure)
	want := []string{"c", "a", "b", "pkg"}
	if len(got) != len(want) {
		t.Fatalf("closure = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("closure = %v, want %v (dependencies before dependents)", got, want)
		}
	}
	if !closure[3].Requested {
		t.Error("pkg should be marked as requested")
	}
	if closure[0].Requested {
		t.Error("c should not be marked as requested")
	}
}

func TestResolveClosureSharedDependencyOnce(t *testing.T) {
	r := newFakeResolver(map[string]map[string][]string{
		"x": {"1.0": {"c"}},
		"y": {"1.0": {"c"}},
		"c": {"1.0": nil},
	})

	closure, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"x", "y"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(closure) != 3 {
		t.Errorf("closure = %v, want exactly one entry for the shared dependency", closureNames(closure))
	}
}

func TestResolveClosureAccumulatesConstraints(t *testing.T) {
	r := newFakeResolver(map[string]map[string][]string{
		"a": {"1.0": {"c"}},
		"b": {"1.0": {"c<2.0"}},
		"c": {"1.5": nil, "2.0": nil},
	})

	closure, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"a", "b"}, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range closure {
		if m.Source == "c" && m.Version.String() != "1.5" {
			t.Errorf("c resolved to %s, want 1.5 (constraint from b must apply)", m.Version)
		}
	}
}

func TestResolveClosureDropsDiscardedDependencies(t *testing.T) {
	// a first resolves to 2.0 and pulls in x; b's constraint then forces a
	// down to 1.0, which no longer needs x. x must not survive in the closure.
	r := newFakeResolver(map[string]map[string][]string{
		"a": {"2.0": {"x"}, "1.0": nil},
		"b": {"1.0": {"a<2.0"}},
		"x": {"1.0": nil},
	})

	closure, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"a", "b"}, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range closure {
		if m.Source == "x" {
			t.Errorf("closure = %v, contains x which only a==2.0 required", closureNames(closure))
		}
		if m.Source == "a" && m.Version.String() != "1.0" {
			t.Errorf("a resolved to %s, want 1.0", m.Version)
		}
	}
	if len(closure) != 2 {
		t.Errorf("closure = %v, want exactly [a b]", closureNames(closure))
	}
}

func TestResolveClosureConflict(t *testing.T) {
	r := newFakeResolver(map[string]map[string][]string{
		"a": {"1.0": {"c==1.0"}},
		"b": {"1.0": {"c==2.0"}},
		"c": {"1.0": nil, "2.0": nil},
	})

	_, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"a", "b"}, false)
	if !errors.Is(err, errors.ErrCodeResolution) {
		t.Errorf("error = %v, want code %s", err, errors.ErrCodeResolution)
	}
}

func TestResolveClosureVersionPin(t *testing.T) {
	r := newFakeResolver(map[string]map[string][]string{
		"coloredlogs": {"0.4.6": nil, "0.4.8": nil},
	})

	closure, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"coloredlogs==0.4.6"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if closure[0].Version.String() != "0.4.6" {
		t.Errorf("version = %s, want pinned 0.4.6", closure[0].Version)
	}
}

func TestResolveClosureBadSpecifier(t *testing.T) {
	r := newFakeResolver(nil)
	_, err := ResolveClosure(context.Background(), NewConfig(), r, []string{"=bogus="}, false)
	if !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("error = %v, want code %s", err, errors.ErrCodeConfig)
	}
}

func TestResolveClosureMapsTargets(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.SetNamePrefix("myorg"); err != nil {
		t.Fatal(err)
	}
	r := newFakeResolver(map[string]map[string][]string{
		"simple": {"1.0": nil},
	})

	closure, err := ResolveClosure(context.Background(), cfg, r, []string{"simple"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if closure[0].Target != "myorg-simple" {
		t.Errorf("Target = %q, want %q", closure[0].Target, "myorg-simple")
	}
}
