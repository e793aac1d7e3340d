package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Ecosystem-specific validation should be done separately.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeConfig, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeConfig, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeConfig, "package name contains invalid control characters")
		}
	}

	// Check for path traversal patterns
	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeConfig, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// pythonPackageNameRegex matches valid Python package names (PEP 508).
var pythonPackageNameRegex = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

// ValidatePythonPackageName validates a Python package name per PEP 508.
func ValidatePythonPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !pythonPackageNameRegex.MatchString(name) {
		return New(ErrCodeConfig, "invalid Python package name: %q", name)
	}

	return nil
}

// debianPackageNameRegex matches valid Debian binary package names
// (Debian policy 5.6.1: lowercase alphanumerics, plus, minus, dots,
// at least two characters, starting with an alphanumeric).
var debianPackageNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9+.-]+$`)

// ValidateDebianPackageName validates a Debian binary package name.
func ValidateDebianPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !debianPackageNameRegex.MatchString(name) {
		return New(ErrCodeConfig, "invalid Debian package name: %q", name)
	}

	return nil
}

// ValidateInstallPath validates an absolute installation path used for
// install prefixes and update-alternatives entries.
func ValidateInstallPath(path string) error {
	if path == "" {
		return New(ErrCodeConfig, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeConfig, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeConfig, "path contains invalid characters")
		}
	}

	if !strings.HasPrefix(path, "/") {
		return New(ErrCodeConfig, "path must be absolute (start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeConfig, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeConfig, "path cannot contain backslashes")
	}

	return nil
}
