// Package pip builds Python distributions into a staging filesystem tree by
// driving the pip command line. The staged layout mirrors what a Debian
// python package installs: modules under usr/lib/python3/dist-packages and
// console scripts under usr/bin.
package pip

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pydeb/pydeb/pkg/errors"
)

// DistPackagesDir is the staging-relative directory pip installs into.
const DistPackagesDir = "usr/lib/python3/dist-packages"

// Metadata is the distribution metadata read back from the installed
// .dist-info (or legacy .egg-info) directory after a build.
type Metadata struct {
	Name        string
	Version     string
	Summary     string
	HomePage    string
	Author      string
	AuthorEmail string
	Maintainer  string
}

// Builder installs Python distributions with pip.
type Builder struct {
	// Python is the interpreter executable. Defaults to "python3".
	Python string
}

// NewBuilder creates a builder using the system python3.
func NewBuilder() *Builder {
	return &Builder{Python: "python3"}
}

// InterpreterVersion reports the interpreter's major.minor version,
// e.g. "3.11". The converted packages depend on pythonX.Y.
func (b *Builder) InterpreterVersion(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, b.python(), "-c",
		`import sys; print("%d.%d" % sys.version_info[:2])`)
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeBuild, err, "query interpreter version")
	}
	return strings.TrimSpace(string(out)), nil
}

// Build installs exactly one release of a distribution into the staging
// directory and returns its metadata. Dependencies are not installed; the
// caller resolves and converts them separately.
func (b *Builder) Build(ctx context.Context, name, version, staging string) (*Metadata, error) {
	target := filepath.Join(staging, filepath.FromSlash(DistPackagesDir))
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBuild, err, "create staging tree for %s", name)
	}

	spec := fmt.Sprintf("%s==%s", name, version)
	cmd := exec.CommandContext(ctx, b.python(), "-m", "pip", "install",
		"--quiet", "--no-deps", "--ignore-installed", "--target", target, spec)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBuild, err,
			"pip install %s failed: %s", spec, strings.TrimSpace(output.String()))
	}

	// pip puts console scripts in <target>/bin; relocate them to usr/bin.
	if err := moveScripts(filepath.Join(target, "bin"), filepath.Join(staging, "usr", "bin")); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBuild, err, "relocate scripts of %s", name)
	}

	meta, err := ReadMetadata(target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeBuild, err, "read metadata of %s", name)
	}
	return meta, nil
}

func (b *Builder) python() string {
	if b.Python == "" {
		return "python3"
	}
	return b.Python
}

func moveScripts(src, dst string) error {
	entries, err := os.ReadDir(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0755); err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return err
		}
	}
	return os.Remove(src)
}

// ReadMetadata locates the installed distribution's metadata file under dir
// and parses it. Both modern .dist-info/METADATA and legacy
// .egg-info/PKG-INFO layouts are understood.
func ReadMetadata(dir string) (*Metadata, error) {
	path, err := findMetadataFile(dir)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseMetadata(file)
}

func findMetadataFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		switch {
		case strings.HasSuffix(e.Name(), ".dist-info"):
			return filepath.Join(dir, e.Name(), "METADATA"), nil
		case strings.HasSuffix(e.Name(), ".egg-info"):
			return filepath.Join(dir, e.Name(), "PKG-INFO"), nil
		}
	}
	return "", fmt.Errorf("no .dist-info or .egg-info directory under %s", dir)
}

// ParseMetadata reads the RFC 822 style headers of a METADATA or PKG-INFO
// file. The body (long description) is ignored.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	tp := textproto.NewReader(bufio.NewReader(r))
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && len(hdr) == 0 {
		return nil, fmt.Errorf("parse metadata headers: %w", err)
	}

	clean := func(key string) string {
		v := hdr.Get(key)
		if v == "UNKNOWN" {
			return ""
		}
		return v
	}

	return &Metadata{
		Name:        clean("Name"),
		Version:     clean("Version"),
		Summary:     clean("Summary"),
		HomePage:    clean("Home-Page"),
		Author:      clean("Author"),
		AuthorEmail: clean("Author-Email"),
		Maintainer:  clean("Maintainer"),
	}, nil
}
