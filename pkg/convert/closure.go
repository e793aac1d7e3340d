package convert

import (
	"context"
	"sort"

	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/python"
)

// Resolver discovers, for a package under a constraint set, the best
// satisfying release and that release's direct runtime dependencies.
// Implemented by pypi.Client.
type Resolver interface {
	ResolveDirect(ctx context.Context, name string, constraints python.Constraints, refresh bool) (python.Version, []python.Requirement, error)
}

// Member is one package of a resolved conversion closure.
type Member struct {
	Source       string         // normalized Python package name
	Version      python.Version // resolved release version
	Target       string         // mapped Debian package name
	Requirements []python.Requirement
	Requested    bool // named on the command line, not pulled in as a dep
}

// Closure is a resolved dependency closure in conversion order: dependencies
// come before their dependents, ties broken by name.
type Closure []Member

// ResolveClosure expands the requested specifiers to their transitive
// dependency closure. Constraints on a shared dependency are accumulated
// across all dependents; a package is re-resolved when new constraints
// arrive, and constraints no release can satisfy yield RESOLUTION_FAILED.
func ResolveClosure(ctx context.Context, cfg *Config, r Resolver, specifiers []string, refresh bool) (Closure, error) {
	roots := make(map[string]bool)
	constraints := make(map[string]python.Constraints)
	var pending []string

	for _, spec := range specifiers {
		req, err := python.ParseRequirement(spec)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfig, err, "invalid package specifier %q", spec)
		}
		roots[req.Name] = true
		constraints[req.Name] = constraints[req.Name].Merge(req.Constraints)
		pending = append(pending, req.Name)
	}

	type resolution struct {
		version python.Version
		deps    []python.Requirement
	}
	resolved := make(map[string]resolution)

	for len(pending) > 0 {
		sort.Strings(pending)
		name := pending[0]
		pending = pending[1:]

		cs := constraints[name]
		if prev, ok := resolved[name]; ok && cs.Matches(prev.version) {
			continue
		}

		version, deps, err := r.ResolveDirect(ctx, name, cs, refresh)
		if err != nil {
			return nil, err
		}
		resolved[name] = resolution{version: version, deps: deps}

		for _, dep := range deps {
			before := constraints[dep.Name].String()
			constraints[dep.Name] = constraints[dep.Name].Merge(dep.Constraints)
			if _, seen := resolved[dep.Name]; !seen || constraints[dep.Name].String() != before {
				pending = append(pending, dep.Name)
			}
		}
	}

	// Re-resolution can discard a version whose dependencies were already
	// expanded; keep only packages the final versions still reach from the
	// requested roots.
	reachable := make(map[string]bool, len(resolved))
	queue := make([]string, 0, len(roots))
	for name := range roots {
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if reachable[name] {
			continue
		}
		reachable[name] = true
		for _, dep := range resolved[name].deps {
			if !reachable[dep.Name] {
				queue = append(queue, dep.Name)
			}
		}
	}

	members := make(map[string]Member, len(reachable))
	for name, res := range resolved {
		if !reachable[name] {
			continue
		}
		members[name] = Member{
			Source:       name,
			Version:      res.version,
			Target:       cfg.TargetName(name),
			Requirements: res.deps,
			Requested:    roots[name],
		}
	}
	return orderClosure(members), nil
}

// orderClosure returns the members with dependencies before dependents,
// name-sorted among ready candidates so the order is reproducible. Members
// of a dependency cycle are appended at the end, sorted by name.
func orderClosure(members map[string]Member) Closure {
	remaining := make(map[string]int, len(members)) // unordered dep count
	dependents := make(map[string][]string)
	for name, m := range members {
		for _, req := range m.Requirements {
			if _, ok := members[req.Name]; ok && req.Name != name {
				remaining[name]++
				dependents[req.Name] = append(dependents[req.Name], name)
			}
		}
	}

	var ready []string
	for name := range members {
		if remaining[name] == 0 {
			ready = append(ready, name)
		}
	}

	ordered := make(Closure, 0, len(members))
	placed := make(map[string]bool)
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]

		ordered = append(ordered, members[name])
		placed[name] = true
		for _, dep := range dependents[name] {
			remaining[dep]--
			if remaining[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	var cyclic []string
	for name := range members {
		if !placed[name] {
			cyclic = append(cyclic, name)
		}
	}
	sort.Strings(cyclic)
	for _, name := range cyclic {
		ordered = append(ordered, members[name])
	}
	return ordered
}
