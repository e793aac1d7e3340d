package convert

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/pydeb/pydeb/pkg/deb"
	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/pip"
)

// fakeBuilder stages a minimal module tree instead of running pip.
type fakeBuilder struct {
	builds  []string                          // "name==version" per build
	failOn  string                            // package name that fails to build
	stage   func(name, staging string) error  // optional extra staged content
	summary map[string]string                 // optional per-package summary
}

func (b *fakeBuilder) InterpreterVersion(ctx context.Context) (string, error) {
	return "3.11", nil
}

func (b *fakeBuilder) Build(ctx context.Context, name, version, staging string) (*pip.Metadata, error) {
	if name == b.failOn {
		return nil, errors.New(errors.ErrCodeBuild, "pip install %s failed", name)
	}
	b.builds = append(b.builds, name+"=="+version)

	moduleDir := filepath.Join(staging, filepath.FromSlash(pip.DistPackagesDir), strings.ReplaceAll(name, "-", "_"))
	if err := os.MkdirAll(moduleDir, 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(moduleDir, "__init__.py"), []byte(""), 0644); err != nil {
		return nil, err
	}
	if b.stage != nil {
		if err := b.stage(name, staging); err != nil {
			return nil, err
		}
	}

	summary := b.summary[name]
	if summary == "" {
		summary = "Test distribution " + name
	}
	return &pip.Metadata{
		Name:        name,
		Version:     version,
		Summary:     summary,
		Author:      "Test Author",
		AuthorEmail: "author@example.com",
	}, nil
}

// fakeArchiver writes the formatted control paragraph as the archive payload
// and records the staged tree at archive time.
type fakeArchiver struct {
	writes []string            // target names in write order
	staged map[string][]string // target name -> staging-relative paths
}

func newFakeArchiver() *fakeArchiver {
	return &fakeArchiver{staged: make(map[string][]string)}
}

func (a *fakeArchiver) Write(ctx context.Context, staging string, fields deb.Fields, destDir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(staging, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(staging, path)
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", err
	}

	a.writes = append(a.writes, fields["Package"])
	a.staged[fields["Package"]] = paths

	out := filepath.Join(destDir, deb.ArchiveFileName(fields["Package"], fields["Version"], fields["Architecture"]))
	if err := os.WriteFile(out, deb.FormatControl(fields), 0644); err != nil {
		return "", err
	}
	return out, nil
}

func newTestConverter(t *testing.T, releases map[string]map[string][]string) (*Converter, *fakeBuilder, *fakeArchiver) {
	t.Helper()

	cfg := NewConfig()
	if err := cfg.SetRepository(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	builder := &fakeBuilder{summary: make(map[string]string)}
	archiver := newFakeArchiver()
	return &Converter{
		Config:   cfg,
		Resolver: newFakeResolver(releases),
		Builder:  builder,
		Archiver: archiver,
	}, builder, archiver
}

func readControl(t *testing.T, path string) deb.Fields {
	t.Helper()
	fields, err := deb.LoadControlFile(path)
	if err != nil {
		t.Fatalf("load archive control %s: %v", path, err)
	}
	return fields
}

func TestConvertLogsStateTransitions(t *testing.T) {
	c, _, _ := newTestConverter(t, map[string]map[string][]string{
		"simple": {"1.0": nil},
	})
	var buf bytes.Buffer
	c.Logger = log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel})

	if _, err := c.Convert(context.Background(), []string{"simple"}); err != nil {
		t.Fatalf("Convert() error: %v", err)
	}

	out := buf.String()
	for _, state := range []State{StatePending, StateFetching, StateBuilding, StateStaged} {
		if !strings.Contains(out, state.String()) {
			t.Errorf("log output missing %q transition:\n%s", state, out)
		}
	}
}

func TestConvertSinglePackage(t *testing.T) {
	c, _, archiver := newTestConverter(t, map[string]map[string][]string{
		"simple": {"1.0": nil},
	})
	if err := c.Config.SetNamePrefix("myorg"); err != nil {
		t.Fatal(err)
	}

	results, err := c.Convert(context.Background(), []string{"simple"})
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if len(results) != 1 || results[0].State != StateArchived {
		t.Fatalf("results = %+v", results)
	}
	if len(archiver.writes) != 1 || archiver.writes[0] != "myorg-simple" {
		t.Fatalf("archived = %v, want [myorg-simple]", archiver.writes)
	}

	fields := readControl(t, results[0].Archive)
	if fields["Package"] != "myorg-simple" {
		t.Errorf("Package = %q", fields["Package"])
	}
	if fields["Depends"] != "python3.11" {
		t.Errorf("Depends = %q, want single interpreter dependency", fields["Depends"])
	}
	if fields["Maintainer"] != "Test Author <author@example.com>" {
		t.Errorf("Maintainer = %q", fields["Maintainer"])
	}
}

func TestConvertWithDependencies(t *testing.T) {
	c, _, archiver := newTestConverter(t, map[string]map[string][]string{
		"pkg": {"1.0": {"a>=1.0", "b"}},
		"a":   {"1.2": nil},
		"b":   {"2.0": nil},
	})
	if err := c.Config.SetNamePrefix("py"); err != nil {
		t.Fatal(err)
	}

	results, err := c.Convert(context.Background(), []string{"pkg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(archiver.writes) != 3 {
		t.Fatalf("archived = %v, want 3 archives", archiver.writes)
	}

	top := results[len(results)-1]
	if top.Source != "pkg" {
		t.Fatalf("last result = %q, want the dependent converted after its deps", top.Source)
	}
	fields := readControl(t, top.Archive)
	want := "py-a (>= 1.0), py-b, python3.11"
	if got := fields["Depends"]; got != want {
		t.Errorf("Depends = %q, want %q (declared constraints under mapped names)", got, want)
	}
}

func TestConvertSharedDependencyOnce(t *testing.T) {
	c, builder, archiver := newTestConverter(t, map[string]map[string][]string{
		"x": {"1.0": {"c"}},
		"y": {"1.0": {"c"}},
		"c": {"3.0": nil},
	})

	if _, err := c.Convert(context.Background(), []string{"x", "y"}); err != nil {
		t.Fatal(err)
	}
	if len(archiver.writes) != 3 {
		t.Errorf("archived = %v, want exactly one archive for the shared dependency", archiver.writes)
	}
	built := strings.Join(builder.builds, " ")
	if strings.Count(built, "c==3.0") != 1 {
		t.Errorf("builds = %v, want c built exactly once", builder.builds)
	}
}

func TestConvertIdempotent(t *testing.T) {
	releases := map[string]map[string][]string{
		"pkg": {"1.0": {"a"}},
		"a":   {"1.0": nil},
	}
	c, builder, _ := newTestConverter(t, releases)

	results, err := c.Convert(context.Background(), []string{"pkg"})
	if err != nil {
		t.Fatal(err)
	}
	archives := make(map[string][]byte)
	for _, res := range results {
		data, err := os.ReadFile(res.Archive)
		if err != nil {
			t.Fatal(err)
		}
		archives[res.Archive] = data
	}
	builder.builds = nil

	// second run must rebuild nothing and leave every archive byte-identical
	results, err = c.Convert(context.Background(), []string{"pkg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(builder.builds) != 0 {
		t.Errorf("second run rebuilt %v, want nothing", builder.builds)
	}
	for _, res := range results {
		if !res.Reused {
			t.Errorf("%s not reused on second run", res.Source)
		}
	}
	for path, before := range archives {
		after, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if string(before) != string(after) {
			t.Errorf("archive %s changed between runs", path)
		}
	}
}

func TestConvertRenamedTarget(t *testing.T) {
	c, _, archiver := newTestConverter(t, map[string]map[string][]string{
		"coloredlogs": {"0.4.8": nil},
	})
	if err := c.Config.RenamePackage("coloredlogs", "pip-accel-coloredlogs-renamed"); err != nil {
		t.Fatal(err)
	}

	results, err := c.Convert(context.Background(), []string{"coloredlogs"})
	if err != nil {
		t.Fatal(err)
	}
	if archiver.writes[0] != "pip-accel-coloredlogs-renamed" {
		t.Errorf("archived = %v, want the renamed target", archiver.writes)
	}
	if want := "pip-accel-coloredlogs-renamed_0.4.8_all.deb"; filepath.Base(results[0].Archive) != want {
		t.Errorf("archive = %q, want %q", filepath.Base(results[0].Archive), want)
	}
}

func TestConvertCustomCommand(t *testing.T) {
	c, builder, archiver := newTestConverter(t, map[string]map[string][]string{
		"fabric": {"1.8.2": nil},
	})
	builder.summary["fabric"] = "Simple Pythonic remote deployment tool"
	builder.stage = func(name, staging string) error {
		dir := filepath.Join(staging, filepath.FromSlash(pip.DistPackagesDir), "paramiko")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, "__init__.py"), []byte(""), 0644)
	}
	command := "rm -Rf usr/lib/python3/dist-packages/paramiko"
	if err := c.Config.SetConversionCommand("fabric", command); err != nil {
		t.Fatal(err)
	}

	results, err := c.Convert(context.Background(), []string{"fabric"})
	if err != nil {
		t.Fatal(err)
	}

	for _, path := range archiver.staged["python-fabric"] {
		if strings.Contains(path, "paramiko") {
			t.Errorf("archive contents include %s, custom command should have removed it", path)
		}
	}
	fields := readControl(t, results[0].Archive)
	if fields["Description"] != "Simple Pythonic remote deployment tool" {
		t.Errorf("Description = %q, default-extracted metadata must survive patching", fields["Description"])
	}
}

func TestConvertCustomCommandFailure(t *testing.T) {
	c, _, archiver := newTestConverter(t, map[string]map[string][]string{
		"fabric": {"1.8.2": nil},
	})
	if err := c.Config.SetConversionCommand("fabric", "exit 1"); err != nil {
		t.Fatal(err)
	}

	_, err := c.Convert(context.Background(), []string{"fabric"})
	if !errors.Is(err, errors.ErrCodeConversion) {
		t.Errorf("error = %v, want code %s", err, errors.ErrCodeConversion)
	}
	if len(archiver.writes) != 0 {
		t.Errorf("archived = %v, want nothing after a conversion failure", archiver.writes)
	}
}

func TestConvertFailureAbortsClosure(t *testing.T) {
	c, builder, archiver := newTestConverter(t, map[string]map[string][]string{
		"pkg": {"1.0": {"a"}},
		"a":   {"1.0": nil},
	})
	builder.failOn = "a"

	results, err := c.Convert(context.Background(), []string{"pkg"})
	if !errors.Is(err, errors.ErrCodeBuild) {
		t.Fatalf("error = %v, want code %s", err, errors.ErrCodeBuild)
	}
	if len(results) != 1 || results[0].State != StateFailed {
		t.Errorf("results = %+v, want the failed dependency only", results)
	}
	if len(archiver.writes) != 0 {
		t.Errorf("archived = %v, want nothing (dependent must not be converted)", archiver.writes)
	}
}

func TestConvertInstallPrefix(t *testing.T) {
	c, _, archiver := newTestConverter(t, map[string]map[string][]string{
		"simple": {"1.0": nil},
	})
	if err := c.Config.SetInstallPrefix("/opt/myorg"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Convert(context.Background(), []string{"simple"}); err != nil {
		t.Fatal(err)
	}

	var sawRelocated bool
	for _, path := range archiver.staged["python-simple"] {
		if strings.HasPrefix(path, "opt/myorg/lib/") {
			sawRelocated = true
		}
		if strings.HasPrefix(path, "usr/lib/") {
			t.Errorf("path %s left outside the install prefix", path)
		}
	}
	if !sawRelocated {
		t.Errorf("staged paths %v, want modules under opt/myorg/lib", archiver.staged["python-simple"])
	}
}

func TestConvertAlternatives(t *testing.T) {
	c, builder, archiver := newTestConverter(t, map[string]map[string][]string{
		"pip-accel": {"0.9.6": nil},
	})
	builder.stage = func(name, staging string) error {
		bin := filepath.Join(staging, "usr", "bin")
		if err := os.MkdirAll(bin, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(bin, "pip-accel"), []byte("#!/usr/bin/python3\n"), 0755)
	}
	if err := c.Config.InstallAlternative("/usr/bin/pip", "/usr/bin/pip-accel"); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Convert(context.Background(), []string{"pip-accel"}); err != nil {
		t.Fatal(err)
	}

	staged := strings.Join(archiver.staged["python-pip-accel"], " ")
	if !strings.Contains(staged, "DEBIAN/postinst") || !strings.Contains(staged, "DEBIAN/prerm") {
		t.Errorf("staged = %v, want alternatives maintainer scripts", archiver.staged["python-pip-accel"])
	}
}

func TestConvertDependencyReport(t *testing.T) {
	c, _, _ := newTestConverter(t, map[string]map[string][]string{
		"pkg": {"1.0": {"a"}},
		"a":   {"2.0": nil},
	})
	c.ReportFile = filepath.Join(t.TempDir(), "control")

	if _, err := c.Convert(context.Background(), []string{"pkg"}); err != nil {
		t.Fatal(err)
	}

	fields, err := deb.LoadControlFile(c.ReportFile)
	if err != nil {
		t.Fatal(err)
	}
	// only the requested package is reported, pinned to its resolved version
	if got := fields["Depends"]; got != "python-pkg (= 1.0)" {
		t.Errorf("report Depends = %q, want %q", got, "python-pkg (= 1.0)")
	}
}

func TestConvertCancelledBetweenPackages(t *testing.T) {
	c, _, _ := newTestConverter(t, map[string]map[string][]string{
		"pkg": {"1.0": nil},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Convert(ctx, []string{"pkg"}); err == nil {
		t.Error("Convert() with cancelled context: want error")
	}
}

func TestRunPatchCommand(t *testing.T) {
	dir := t.TempDir()
	if err := runPatchCommand(context.Background(), "echo data > marker", dir); err != nil {
		t.Fatalf("runPatchCommand() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "marker")); err != nil {
		t.Errorf("command did not run in the staging directory: %v", err)
	}

	err := runPatchCommand(context.Background(), "exit 3", dir)
	if !errors.Is(err, errors.ErrCodeConversion) {
		t.Errorf("error = %v, want code %s", err, errors.ErrCodeConversion)
	}
}
