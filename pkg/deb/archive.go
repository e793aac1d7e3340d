package deb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pydeb/pydeb/pkg/errors"
)

// ArchiveFileName returns the conventional archive file name for a binary
// package: "<package>_<version>_<architecture>.deb".
func ArchiveFileName(pkg, version, arch string) string {
	if arch == "" {
		arch = "all"
	}
	return fmt.Sprintf("%s_%s_%s.deb", pkg, version, arch)
}

// DpkgArchiver builds and inspects .deb archives by invoking dpkg-deb.
type DpkgArchiver struct {
	// Command is the dpkg-deb executable. Defaults to "dpkg-deb".
	Command string
}

// NewDpkgArchiver creates an archiver using the system dpkg-deb.
func NewDpkgArchiver() *DpkgArchiver {
	return &DpkgArchiver{Command: "dpkg-deb"}
}

// Write renders the control paragraph into the staging tree's DEBIAN
// directory and builds the archive into destDir. It returns the path of the
// written archive.
func (a *DpkgArchiver) Write(ctx context.Context, staging string, fields Fields, destDir string) (string, error) {
	pkg := fields["Package"]
	version := fields["Version"]
	if pkg == "" || version == "" {
		return "", errors.New(errors.ErrCodeArchive, "control fields missing Package or Version")
	}

	controlDir := filepath.Join(staging, "DEBIAN")
	if err := os.MkdirAll(controlDir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeArchive, err, "create control directory for %s", pkg)
	}
	if err := os.WriteFile(filepath.Join(controlDir, "control"), FormatControl(fields), 0644); err != nil {
		return "", errors.Wrap(errors.ErrCodeArchive, err, "write control file for %s", pkg)
	}

	out := filepath.Join(destDir, ArchiveFileName(pkg, version, fields["Architecture"]))

	cmd := exec.CommandContext(ctx, a.command(), "--build", "--root-owner-group", staging, out)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return "", errors.Wrap(errors.ErrCodeArchive, err,
			"dpkg-deb --build failed for %s: %s", pkg, strings.TrimSpace(output.String()))
	}

	return out, nil
}

// Inspect returns the control fields and the contents listing of an archive.
// The listing entries are absolute installed paths.
func (a *DpkgArchiver) Inspect(ctx context.Context, path string) (Fields, []string, error) {
	raw, err := a.run(ctx, "--field", path)
	if err != nil {
		return nil, nil, err
	}
	fields, err := ParseControl(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeArchive, err, "parse control of %s", path)
	}

	listing, err := a.run(ctx, "--contents", path)
	if err != nil {
		return nil, nil, err
	}

	var contents []string
	for _, line := range strings.Split(string(listing), "\n") {
		// dpkg-deb --contents lines end in "./<path>", tar style.
		i := strings.Index(line, " ./")
		if i < 0 {
			continue
		}
		p := strings.TrimPrefix(line[i+1:], ".")
		if p == "/" || p == "" {
			continue
		}
		// Symlink entries carry a "-> target" suffix.
		if j := strings.Index(p, " -> "); j >= 0 {
			p = p[:j]
		}
		contents = append(contents, strings.TrimSuffix(p, "/"))
	}

	return fields, contents, nil
}

func (a *DpkgArchiver) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, a.command(), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeArchive, err,
			"dpkg-deb %s failed: %s", strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (a *DpkgArchiver) command() string {
	if a.Command == "" {
		return "dpkg-deb"
	}
	return a.Command
}
