package errors

import (
	"strings"
	"testing"
)

func TestValidatePackageName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple name", "coloredlogs", false},
		{"name with dash", "deb-pkg-tools", false},
		{"name with underscore", "pip_accel", false},
		{"empty", "", true},
		{"path traversal", "../etc/passwd", true},
		{"double slash", "foo//bar", true},
		{"backslash", `foo\bar`, true},
		{"control character", "foo\x01bar", true},
		{"too long", strings.Repeat("a", 257), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePackageName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePackageName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeConfig) {
				t.Errorf("error code = %q, want %q", GetCode(err), ErrCodeConfig)
			}
		})
	}
}

func TestValidatePythonPackageName(t *testing.T) {
	valid := []string{"requests", "Fabric", "zope.interface", "pip-accel", "a"}
	for _, name := range valid {
		if err := ValidatePythonPackageName(name); err != nil {
			t.Errorf("ValidatePythonPackageName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "-leading", "trailing-", "has space", "has/slash"}
	for _, name := range invalid {
		if err := ValidatePythonPackageName(name); err == nil {
			t.Errorf("ValidatePythonPackageName(%q) = nil, want error", name)
		}
	}
}

func TestValidateDebianPackageName(t *testing.T) {
	valid := []string{"python-coloredlogs", "pip-accel", "libssl1.1", "g++"}
	for _, name := range valid {
		if err := ValidateDebianPackageName(name); err != nil {
			t.Errorf("ValidateDebianPackageName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "Uppercase", "under_score", "x"}
	for _, name := range invalid {
		if err := ValidateDebianPackageName(name); err == nil {
			t.Errorf("ValidateDebianPackageName(%q) = nil, want error", name)
		}
	}
}

func TestValidateInstallPath(t *testing.T) {
	valid := []string{"/usr/lib/pip-accel", "/usr/bin/pip-accel", "/opt/x"}
	for _, p := range valid {
		if err := ValidateInstallPath(p); err != nil {
			t.Errorf("ValidateInstallPath(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{"", "relative/path", "/has/../traversal", `/back\slash`}
	for _, p := range invalid {
		if err := ValidateInstallPath(p); err == nil {
			t.Errorf("ValidateInstallPath(%q) = nil, want error", p)
		}
	}
}
