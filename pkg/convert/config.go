// Package convert implements the conversion pipeline: it resolves the
// dependency closure of the requested Python packages, maps their identities
// to Debian package names, drives the per-package build and patch steps,
// merges dependency metadata into control fields, and accumulates the
// resulting archives in a repository directory.
package convert

import (
	"os"

	"github.com/pydeb/pydeb/pkg/deb"
	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/python"
)

// DefaultNamePrefix is prepended to converted package names unless a rename
// or a no-prefix exception applies.
const DefaultNamePrefix = "python"

// Config carries the user-supplied conversion rules. All rule setters
// validate their input eagerly and return a CONFIG_INVALID error on empty or
// malformed values, so a bad configuration aborts before any conversion work
// starts.
type Config struct {
	// Repository is the directory archives are written to.
	Repository string
	// NamePrefix is the global name prefix. Empty disables prefixing.
	NamePrefix string
	// InstallPrefix relocates installed files under a custom prefix.
	InstallPrefix string
	// Alternatives are update-alternatives registrations, applied to each
	// converted package that stages the alternative's target path.
	Alternatives []deb.Alternative

	noPrefix map[string]bool   // normalized names exempt from prefixing
	renames  map[string]string // normalized source name -> verbatim target
	commands map[string]string // normalized source name -> patch command
	extra    map[string]deb.Relations
}

// NewConfig returns a configuration with the standard defaults.
func NewConfig() *Config {
	return &Config{
		NamePrefix: DefaultNamePrefix,
		noPrefix:   make(map[string]bool),
		renames:    make(map[string]string),
		commands:   make(map[string]string),
		extra:      make(map[string]deb.Relations),
	}
}

// SetRepository sets the archive output directory, which must already exist.
func (c *Config) SetRepository(dir string) error {
	if dir == "" {
		return errors.New(errors.ErrCodeConfig, "repository directory cannot be empty")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConfig, err, "repository directory %s", dir)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrCodeConfig, "repository path %s is not a directory", dir)
	}
	c.Repository = dir
	return nil
}

// SetNamePrefix sets the global name prefix.
func (c *Config) SetNamePrefix(prefix string) error {
	if prefix == "" {
		return errors.New(errors.ErrCodeConfig, "name prefix cannot be empty")
	}
	if err := errors.ValidateDebianPackageName(prefix); err != nil {
		return err
	}
	c.NamePrefix = prefix
	return nil
}

// SkipNamePrefix exempts one source package from the global name prefix.
func (c *Config) SkipNamePrefix(name string) error {
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return err
	}
	c.noPrefix[python.NormalizeName(name)] = true
	return nil
}

// RenamePackage maps a source package to an explicit target name, used
// verbatim and overriding prefix rules.
func (c *Config) RenamePackage(source, target string) error {
	if err := errors.ValidatePythonPackageName(source); err != nil {
		return err
	}
	if target == "" {
		return errors.New(errors.ErrCodeConfig, "rename target for %s cannot be empty", source)
	}
	if err := errors.ValidateDebianPackageName(target); err != nil {
		return err
	}
	c.renames[python.NormalizeName(source)] = target
	return nil
}

// SetInstallPrefix relocates installed files under a custom absolute prefix,
// e.g. /usr/lib/pydeb.
func (c *Config) SetInstallPrefix(path string) error {
	if err := errors.ValidateInstallPath(path); err != nil {
		return err
	}
	c.InstallPrefix = path
	return nil
}

// InstallAlternative registers an update-alternatives pair. The link is the
// generic name, the target the installed executable it points at.
func (c *Config) InstallAlternative(link, target string) error {
	if link == "" || target == "" {
		return errors.New(errors.ErrCodeConfig, "alternative link and target cannot be empty")
	}
	if err := errors.ValidateInstallPath(link); err != nil {
		return err
	}
	if err := errors.ValidateInstallPath(target); err != nil {
		return err
	}
	c.Alternatives = append(c.Alternatives, deb.Alternative{Link: link, Path: target})
	return nil
}

// SetConversionCommand registers a shell command executed in the staging
// directory after the default build of the given source package.
func (c *Config) SetConversionCommand(name, command string) error {
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return err
	}
	if command == "" {
		return errors.New(errors.ErrCodeConfig, "conversion command for %s cannot be empty", name)
	}
	c.commands[python.NormalizeName(name)] = command
	return nil
}

// SetExtraDepends adds user-authored Depends relations to one converted
// package, merged into the computed dependencies.
func (c *Config) SetExtraDepends(name string, rels deb.Relations) error {
	if err := errors.ValidatePythonPackageName(name); err != nil {
		return err
	}
	key := python.NormalizeName(name)
	c.extra[key] = c.extra[key].Merge(rels)
	return nil
}

// ExtraDepends returns the user-authored relations registered for a source
// package, or nil.
func (c *Config) ExtraDepends(name string) deb.Relations {
	return c.extra[python.NormalizeName(name)]
}
