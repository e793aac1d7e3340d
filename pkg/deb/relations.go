// Package deb implements the narrow Debian surface the conversion pipeline
// consumes: control fields and dependency relations, building and inspecting
// binary package archives through dpkg-deb, and maintainer-script generation
// for update-alternatives registration.
//
// Building the binary archive format in-process is deliberately out of
// scope; dpkg-deb owns that.
package deb

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pydeb/pydeb/pkg/python"
)

// Relation is a single dependency relation, e.g. "python-pip (>= 1.4)".
// An empty Op means an unversioned relation.
type Relation struct {
	Name    string
	Op      string // one of =, >=, <=, <<, >> (Debian policy 7.1)
	Version string
}

// String formats the relation in control-file notation.
func (r Relation) String() string {
	if r.Op == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s %s)", r.Name, r.Op, r.Version)
}

var relationRE = regexp.MustCompile(`^([a-zA-Z0-9][a-zA-Z0-9+._-]*)\s*(?:\(\s*(=|>=|<=|<<|>>|<|>)\s*([^)\s]+)\s*\))?$`)

// ParseRelation parses a single control-file relation.
// The legacy single "<" and ">" operators are normalized to "<<" and ">>".
func ParseRelation(s string) (Relation, error) {
	m := relationRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Relation{}, fmt.Errorf("unparseable relation: %q", s)
	}
	op := m[2]
	switch op {
	case "<":
		op = "<<"
	case ">":
		op = ">>"
	}
	return Relation{Name: m[1], Op: op, Version: m[3]}, nil
}

// Relations is an ordered list of dependency relations.
type Relations []Relation

// String formats the relations as a comma separated Depends value.
func (rs Relations) String() string {
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}

// ParseRelations parses a comma separated Depends value.
// Alternative groups ("a | b") are kept as-is in the Name of a single
// unversioned relation; the pipeline never generates them itself.
func ParseRelations(s string) (Relations, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var rs Relations
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "|") {
			rs = append(rs, Relation{Name: part})
			continue
		}
		r, err := ParseRelation(part)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// Merge returns the union of two relation lists, dropping exact duplicates
// and sorting by name, then version, then operator. The result is
// deterministic regardless of input order.
func (rs Relations) Merge(other Relations) Relations {
	merged := make(Relations, 0, len(rs)+len(other))
	seen := make(map[string]bool)
	for _, r := range append(append(Relations{}, rs...), other...) {
		key := r.String()
		if !seen[key] {
			seen[key] = true
			merged = append(merged, r)
		}
	}
	merged.Sort()
	return merged
}

// Sort orders the relations by name, then version, then operator.
func (rs Relations) Sort() {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Name != rs[j].Name {
			return rs[i].Name < rs[j].Name
		}
		if rs[i].Version != rs[j].Version {
			return rs[i].Version < rs[j].Version
		}
		return rs[i].Op < rs[j].Op
	})
}

// ByName returns all relations on the given package name.
func (rs Relations) ByName(name string) Relations {
	var out Relations
	for _, r := range rs {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether the relation list contains a relation on name
// and, when a version is given, whether that version satisfies every
// versioned relation on the name. Unversioned relations admit any version.
func (rs Relations) Matches(name, version string) bool {
	found := false
	for _, r := range rs {
		if r.Name != name {
			continue
		}
		found = true
		if r.Op == "" || version == "" {
			continue
		}
		v, err := python.ParseVersion(version)
		if err != nil {
			continue
		}
		bound, err := python.ParseVersion(r.Version)
		if err != nil {
			continue
		}
		cmp := v.Compare(bound)
		ok := false
		switch r.Op {
		case "=":
			ok = cmp == 0
		case ">=":
			ok = cmp >= 0
		case "<=":
			ok = cmp <= 0
		case "<<":
			ok = cmp < 0
		case ">>":
			ok = cmp > 0
		}
		if !ok {
			return false
		}
	}
	return found
}

// FromConstraint translates a Python version constraint into a Debian
// relation on the given target package name. "!=" has no Debian relation
// equivalent and reports ok=false; the caller drops it.
func FromConstraint(name string, c python.Constraint) (Relation, bool) {
	var op string
	switch c.Op {
	case "==":
		op = "="
	case ">=", "~=":
		op = ">="
	case "<=":
		op = "<="
	case "<":
		op = "<<"
	case ">":
		op = ">>"
	case "!=":
		return Relation{}, false
	default:
		return Relation{}, false
	}
	return Relation{Name: name, Op: op, Version: c.Version.String()}, true
}

// FromRequirement translates a requirement's constraint list into relations
// on the given target package name. A requirement without constraints yields
// one unversioned relation.
func FromRequirement(name string, constraints python.Constraints) Relations {
	if len(constraints) == 0 {
		return Relations{{Name: name}}
	}
	var rs Relations
	for _, c := range constraints {
		if r, ok := FromConstraint(name, c); ok {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return Relations{{Name: name}}
	}
	return rs
}
