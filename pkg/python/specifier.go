package python

import (
	"fmt"
	"regexp"
	"strings"
)

// Requirement is a parsed package requirement: a distribution name with an
// optional constraint list, e.g. "coloredlogs==0.4.8" or "pip>=1.4,<1.5".
type Requirement struct {
	Name        string      // normalized distribution name
	Constraints Constraints // empty means any version
	Marker      string      // raw environment marker, if any (after ';')
}

// String formats the requirement in PEP 508 notation (marker omitted).
func (r Requirement) String() string {
	if len(r.Constraints) == 0 {
		return r.Name
	}
	return r.Name + r.Constraints.String()
}

var (
	requirementRE = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(\[[^\]]*\])?\s*(.*)$`)
	normalizeRE   = regexp.MustCompile(`[-_.]+`)
	skipMarkerRE  = regexp.MustCompile(`extra|dev|test`)
)

// NormalizeName normalizes a distribution name per PEP 503:
// case folded, with runs of "-", "_" and "." collapsed to a single "-".
func NormalizeName(name string) string {
	return normalizeRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ParseRequirement parses a requirement string. Extras are stripped (the
// conversion pipeline only follows runtime dependencies) and environment
// markers are retained verbatim in Marker.
//
// Supported forms:
//
//	name
//	name==1.2
//	name >=1.0, <2.0
//	name[extra1,extra2]>=1.0
//	name>=1.0; python_version < "3"
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)

	var marker string
	if i := strings.Index(s, ";"); i >= 0 {
		marker = strings.TrimSpace(s[i+1:])
		s = strings.TrimSpace(s[:i])
	}

	m := requirementRE.FindStringSubmatch(s)
	if m == nil || m[1] == "" {
		return Requirement{}, fmt.Errorf("unparseable requirement: %q", s)
	}

	rest := strings.TrimSpace(m[3])
	rest = strings.TrimPrefix(rest, "(")
	rest = strings.TrimSuffix(rest, ")")

	cs, err := ParseConstraints(rest)
	if err != nil {
		return Requirement{}, fmt.Errorf("requirement %q: %w", s, err)
	}

	return Requirement{
		Name:        NormalizeName(m[1]),
		Constraints: cs,
		Marker:      marker,
	}, nil
}

// SkipsRuntime reports whether the requirement's environment marker excludes
// it from a normal runtime installation (extras, dev-only and test-only
// dependencies).
func (r Requirement) SkipsRuntime() bool {
	return r.Marker != "" && skipMarkerRE.MatchString(r.Marker)
}
