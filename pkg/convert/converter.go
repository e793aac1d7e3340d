package convert

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pydeb/pydeb/pkg/deb"
	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/pip"
)

// State tracks a package's progress through the conversion pipeline.
type State int

const (
	StatePending State = iota
	StateFetching
	StateBuilding
	StatePatching
	StateMetadataMerging
	StateStaged
	StateArchived
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetching:
		return "fetching"
	case StateBuilding:
		return "building"
	case StatePatching:
		return "patching"
	case StateMetadataMerging:
		return "merging metadata"
	case StateStaged:
		return "staged"
	case StateArchived:
		return "archived"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Builder produces a staged filesystem tree for one release of a package and
// reports its distribution metadata. Implemented by pip.Builder.
type Builder interface {
	InterpreterVersion(ctx context.Context) (string, error)
	Build(ctx context.Context, name, version, staging string) (*pip.Metadata, error)
}

// Archiver turns a staged tree plus control fields into an archive in the
// destination directory. Implemented by deb.DpkgArchiver.
type Archiver interface {
	Write(ctx context.Context, staging string, fields deb.Fields, destDir string) (string, error)
}

// Result records the outcome for one closure member.
type Result struct {
	Member
	State   State
	Archive string // archive path once archived
	Reused  bool   // an existing archive was reused, nothing was built
}

// Converter drives the conversion of a dependency closure.
type Converter struct {
	Config   *Config
	Resolver Resolver
	Builder  Builder
	Archiver Archiver
	Logger   *log.Logger

	// Refresh bypasses the resolver's cache.
	Refresh bool
	// ReportFile, when set, receives the pinned dependencies of the
	// requested packages as a patched control file.
	ReportFile string
}

// Convert resolves the closure of the given specifiers and converts every
// member, dependencies first. Members whose archive already exists in the
// repository are skipped. The first package failure aborts the remaining
// closure; a partial repository with unmet Depends is worse than none.
func (c *Converter) Convert(ctx context.Context, specifiers []string) ([]Result, error) {
	logger := c.logger()

	closure, err := ResolveClosure(ctx, c.Config, c.Resolver, specifiers, c.Refresh)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved dependency closure", "packages", len(closure))

	interpVersion, err := c.Builder.InterpreterVersion(ctx)
	if err != nil {
		return nil, err
	}
	interpreter := deb.Relation{Name: "python" + interpVersion}

	repo := &Repository{Dir: c.Config.Repository}
	results := make([]Result, 0, len(closure))

	for _, member := range closure {
		// cancellation is observed only between packages
		if err := ctx.Err(); err != nil {
			return results, err
		}

		logger.Debug("state change", "package", member.Source, "state", StatePending)
		if repo.Has(member.Target, member.Version.String()) {
			logger.Info("archive exists, skipping rebuild",
				"package", member.Source, "target", member.Target, "version", member.Version)
			results = append(results, Result{Member: member, State: StateArchived, Reused: true})
			continue
		}

		archive, err := c.convertOne(ctx, member, interpreter)
		if err != nil {
			results = append(results, Result{Member: member, State: StateFailed})
			return results, err
		}
		logger.Info("converted package",
			"package", member.Source, "archive", filepath.Base(archive))
		results = append(results, Result{Member: member, State: StateArchived, Archive: archive})
	}

	if c.ReportFile != "" {
		if err := repo.WriteReport(c.ReportFile, pinnedRelations(closure)); err != nil {
			return results, errors.Wrap(errors.ErrCodeArchive, err, "write dependency report %s", c.ReportFile)
		}
	}

	return results, nil
}

// convertOne runs the full pipeline for a single member. The staging
// directory is exclusively owned by this call and removed on every exit path.
func (c *Converter) convertOne(ctx context.Context, member Member, interpreter deb.Relation) (string, error) {
	logger := c.logger().With("package", member.Source)

	staging := filepath.Join(os.TempDir(), "pydeb-"+uuid.NewString())
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeBuild, err, "create staging directory for %s", member.Source)
	}
	defer os.RemoveAll(staging)

	// pip downloads and installs in one invocation, so the fetch and build
	// states collapse onto a single Build call
	logger.Debug("state change", "state", StateFetching)
	logger.Debug("state change", "state", StateBuilding)
	meta, err := c.Builder.Build(ctx, member.Source, member.Version.String(), staging)
	if err != nil {
		return "", err
	}

	if strategy := c.Config.Strategy(member.Source); strategy.Kind == StrategyCustom {
		logger.Debug("state change", "state", StatePatching, "command", strategy.Command)
		if err := runPatchCommand(ctx, strategy.Command, staging); err != nil {
			return "", errors.Wrap(errors.ErrCodeConversion, err,
				"custom conversion of %s failed", member.Source)
		}
	}

	logger.Debug("state change", "state", StateMetadataMerging)
	if c.Config.InstallPrefix != "" {
		if err := relocate(staging, c.Config.InstallPrefix); err != nil {
			return "", errors.Wrap(errors.ErrCodeConversion, err,
				"relocate %s under install prefix", member.Source)
		}
	}
	if err := registerAlternatives(staging, c.Config.Alternatives); err != nil {
		return "", errors.Wrap(errors.ErrCodeConversion, err,
			"register alternatives for %s", member.Source)
	}

	fields := c.baseFields(member, meta)
	computed := c.computedRelations(member)
	merged := MergeControlFields(fields, computed, interpreter)

	logger.Debug("state change", "state", StateStaged)
	archive, err := c.Archiver.Write(ctx, staging, merged, c.Config.Repository)
	if err != nil {
		return "", err
	}
	return archive, nil
}

// baseFields assembles the control fields from the build metadata.
func (c *Converter) baseFields(member Member, meta *pip.Metadata) deb.Fields {
	fields := deb.Fields{
		"Package":      member.Target,
		"Version":      member.Version.String(),
		"Architecture": "all",
		"Section":      "python",
		"Priority":     "optional",
	}
	if maintainer := formatMaintainer(meta); maintainer != "" {
		fields["Maintainer"] = maintainer
	}
	if meta.Summary != "" {
		fields["Description"] = meta.Summary
	} else {
		fields["Description"] = "Python package " + member.Source
	}
	if meta.HomePage != "" {
		fields["Homepage"] = meta.HomePage
	}
	return fields
}

// computedRelations maps the member's declared dependencies through the
// identity mapper, keeping their version constraints, and merges in any
// user-authored extra relations.
func (c *Converter) computedRelations(member Member) deb.Relations {
	var rels deb.Relations
	for _, req := range member.Requirements {
		rels = rels.Merge(deb.FromRequirement(c.Config.TargetName(req.Name), req.Constraints))
	}
	return rels.Merge(c.Config.ExtraDepends(member.Source))
}

// formatMaintainer derives a control Maintainer value from the build
// metadata, preferring an explicit maintainer over the author.
func formatMaintainer(meta *pip.Metadata) string {
	name := meta.Maintainer
	if name == "" {
		name = meta.Author
	}
	if name == "" {
		return ""
	}
	if meta.AuthorEmail != "" && !strings.Contains(name, "<") {
		return name + " <" + meta.AuthorEmail + ">"
	}
	return name
}

func (c *Converter) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

// pinnedRelations pins each requested member to its resolved version.
func pinnedRelations(closure Closure) deb.Relations {
	var rels deb.Relations
	for _, m := range closure {
		if m.Requested {
			rels = append(rels, deb.Relation{Name: m.Target, Op: "=", Version: m.Version.String()})
		}
	}
	rels.Sort()
	return rels
}

// relocate moves the staged module and script directories under a custom
// install prefix, e.g. /opt/myorg.
func relocate(staging, prefix string) error {
	rel := strings.TrimPrefix(prefix, "/")
	moves := [][2]string{
		{filepath.FromSlash(pip.DistPackagesDir), filepath.Join(rel, "lib")},
		{filepath.Join("usr", "bin"), filepath.Join(rel, "bin")},
	}
	for _, m := range moves {
		src := filepath.Join(staging, m[0])
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dst := filepath.Join(staging, m[1])
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return err
		}
		if err := os.Rename(src, dst); err != nil {
			return err
		}
	}
	// drop now-empty usr/lib/python3 remnants
	for _, dir := range []string{"usr/lib/python3", "usr/lib", "usr"} {
		_ = os.Remove(filepath.Join(staging, filepath.FromSlash(dir)))
	}
	return nil
}

// registerAlternatives writes postinst and prerm maintainer scripts for the
// alternatives whose target path is staged by this package.
func registerAlternatives(staging string, alts []deb.Alternative) error {
	var present []deb.Alternative
	for _, a := range alts {
		if _, err := os.Stat(filepath.Join(staging, filepath.FromSlash(a.Path))); err == nil {
			present = append(present, a)
		}
	}
	if len(present) == 0 {
		return nil
	}

	controlDir := filepath.Join(staging, "DEBIAN")
	if err := os.MkdirAll(controlDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(controlDir, "postinst"), []byte(deb.AlternativesPostinst(present)), 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(controlDir, "prerm"), []byte(deb.AlternativesPrerm(present)), 0755)
}
