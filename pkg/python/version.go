// Package python provides the small slice of Python packaging semantics the
// conversion pipeline needs: PEP 440 style version ordering, version
// constraints, and PEP 508 style requirement strings.
//
// This is intentionally not a complete PEP 440 implementation. It covers the
// version forms that appear in practice on PyPI (dotted releases with
// optional pre/post/dev suffixes) which is what the closure resolver needs
// for picking release versions and detecting constraint conflicts.
package python

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed package version.
type Version struct {
	raw     string
	release []int  // numeric release segments, e.g. [1, 4, 7]
	phase   int    // ordering rank of the suffix phase (dev < pre < final < post)
	suffix  int    // numeric part of the suffix, e.g. 1 for "rc1"
}

// Suffix phase ranks. A final release sorts above dev and pre-releases of the
// same release segments and below post-releases.
const (
	phaseDev   = -3
	phaseAlpha = -2
	phaseBeta  = -1
	phaseRC    = 0
	phaseFinal = 1
	phasePost  = 2
)

var versionRE = regexp.MustCompile(`^v?(\d+(?:\.\d+)*)(?:[._-]?(dev|a|alpha|b|beta|c|rc|post|r|rev)[._-]?(\d*))?`)

// ParseVersion parses a version string. Unrecognized trailing content (local
// version labels, epoch markers) is ignored rather than rejected, since PyPI
// metadata is not uniformly well formed.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	m := versionRE.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return Version{}, fmt.Errorf("unparseable version: %q", s)
	}

	v := Version{raw: s, phase: phaseFinal}
	for _, part := range strings.Split(m[1], ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("unparseable version: %q", s)
		}
		v.release = append(v.release, n)
	}

	switch m[2] {
	case "dev":
		v.phase = phaseDev
	case "a", "alpha":
		v.phase = phaseAlpha
	case "b", "beta":
		v.phase = phaseBeta
	case "c", "rc":
		v.phase = phaseRC
	case "post", "r", "rev":
		v.phase = phasePost
	}
	if m[3] != "" {
		v.suffix, _ = strconv.Atoi(m[3])
	}

	return v, nil
}

// MustParseVersion is like ParseVersion but panics on error. For tests and
// compile-time constants only.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original version string.
func (v Version) String() string { return v.raw }

// IsZero reports whether v is the zero Version (never produced by ParseVersion).
func (v Version) IsZero() bool { return v.raw == "" }

// Compare returns -1, 0, or +1 if v is less than, equal to, or greater
// than other. Release segments compare numerically with implicit zero
// padding ("1.0" == "1.0.0"), then suffix phase and suffix number.
func (v Version) Compare(other Version) int {
	n := max(len(v.release), len(other.release))
	for i := range n {
		a, b := 0, 0
		if i < len(v.release) {
			a = v.release[i]
		}
		if i < len(other.release) {
			b = other.release[i]
		}
		if a != b {
			return sign(a - b)
		}
	}
	if v.phase != other.phase {
		return sign(v.phase - other.phase)
	}
	return sign(v.suffix - other.suffix)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// Constraint is a single version comparison, e.g. ">= 1.0".
type Constraint struct {
	Op      string // one of ==, !=, >=, <=, >, <, ~=
	Version Version
}

// String formats the constraint in PEP 440 notation.
func (c Constraint) String() string {
	return c.Op + c.Version.String()
}

// Matches reports whether version v satisfies the constraint.
func (c Constraint) Matches(v Version) bool {
	cmp := v.Compare(c.Version)
	switch c.Op {
	case "==", "===":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">=", "~=":
		// ~= is treated as its lower bound; the upper bound is rarely
		// load-bearing for conversion and full compatible-release
		// semantics would need the release segment count.
		return cmp >= 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case "<":
		return cmp < 0
	}
	return false
}

// Constraints is an AND-combined list of version constraints.
// An empty list matches every version.
type Constraints []Constraint

// Matches reports whether v satisfies every constraint in the set.
func (cs Constraints) Matches(v Version) bool {
	for _, c := range cs {
		if !c.Matches(v) {
			return false
		}
	}
	return true
}

// String formats the constraints as a comma separated PEP 440 list.
func (cs Constraints) String() string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Merge returns the union of two constraint sets, dropping exact duplicates.
// The result still requires all constraints from both inputs to hold.
func (cs Constraints) Merge(other Constraints) Constraints {
	merged := make(Constraints, 0, len(cs)+len(other))
	seen := make(map[string]bool)
	for _, c := range append(append(Constraints{}, cs...), other...) {
		key := c.String()
		if !seen[key] {
			seen[key] = true
			merged = append(merged, c)
		}
	}
	return merged
}

var constraintRE = regexp.MustCompile(`^(===|==|!=|>=|<=|~=|>|<)\s*([^,\s]+)$`)

// ParseConstraints parses a comma separated constraint list such as
// ">=1.0,<2.0" or "==1.4.7". The empty string yields an empty set.
func ParseConstraints(s string) (Constraints, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var cs Constraints
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := constraintRE.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("unparseable version constraint: %q", part)
		}
		v, err := ParseVersion(m[2])
		if err != nil {
			return nil, err
		}
		op := m[1]
		if op == "===" {
			op = "=="
		}
		cs = append(cs, Constraint{Op: op, Version: v})
	}
	return cs, nil
}

// BestMatch returns the highest version in candidates satisfying cs, or the
// zero Version if none does. Unparseable candidate strings are skipped.
func (cs Constraints) BestMatch(candidates []string) Version {
	var best Version
	for _, s := range candidates {
		v, err := ParseVersion(s)
		if err != nil {
			continue
		}
		if !cs.Matches(v) {
			continue
		}
		if best.IsZero() || v.Compare(best) > 0 {
			best = v
		}
	}
	return best
}
