package convert

import "github.com/pydeb/pydeb/pkg/python"

// TargetName maps a Python source package name to its Debian target name.
// An explicit rename wins verbatim; otherwise the normalized name is used,
// prefixed with the global name prefix unless the package is exempt or the
// prefix is unset. Mapping never fails and is deterministic.
func (c *Config) TargetName(source string) string {
	normalized := python.NormalizeName(source)
	if target, ok := c.renames[normalized]; ok {
		return target
	}
	if c.NamePrefix == "" || c.noPrefix[normalized] {
		return normalized
	}
	return c.NamePrefix + "-" + normalized
}
