package convert

import (
	"github.com/pydeb/pydeb/pkg/deb"
)

// MergeControlFields merges the computed dependency relations and the
// interpreter dependency into user-authored control fields.
//
// User-authored fields are copied unchanged. Computed relations are unioned
// into Depends, except that an existing user relation with a version
// constraint on the same target name wins over the computed one (explicit is
// never weakened). Exactly one interpreter dependency is present afterwards
// unless the user already declared one. The result is sorted and merging is
// idempotent.
func MergeControlFields(base deb.Fields, computed deb.Relations, interpreter deb.Relation) deb.Fields {
	out := base.Clone()
	existing := out.Depends()

	pinned := make(map[string]bool)
	for _, r := range existing {
		if r.Op != "" {
			pinned[r.Name] = true
		}
	}

	var add deb.Relations
	for _, r := range computed {
		if pinned[r.Name] {
			continue
		}
		add = append(add, r)
	}

	if interpreter.Name != "" && len(existing.ByName(interpreter.Name)) == 0 {
		add = append(add, interpreter)
	}

	out.SetDepends(existing.Merge(add))
	return out
}
