package convert

import (
	"path/filepath"
	"sort"

	"github.com/pydeb/pydeb/pkg/deb"
)

// Repository is the flat directory converted archives accumulate in.
type Repository struct {
	Dir string
}

// Has reports whether the repository already holds an archive for the given
// target name and version. Existing archives are reused and never rebuilt.
func (r *Repository) Has(target, version string) bool {
	pattern := filepath.Join(r.Dir, target+"_"+version+"_*.deb")
	matches, err := filepath.Glob(pattern)
	return err == nil && len(matches) > 0
}

// List returns the repository's archives, sorted by file name.
func (r *Repository) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(r.Dir, "*.deb"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// WriteReport merges the given relations into the Depends field of an
// external control file, creating the file when missing. Used to report the
// pinned dependencies of the requested top-level packages.
func (r *Repository) WriteReport(path string, rels deb.Relations) error {
	return deb.PatchControlFile(path, rels)
}
