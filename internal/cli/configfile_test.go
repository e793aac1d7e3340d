package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pydeb/pydeb/pkg/convert"
	"github.com/pydeb/pydeb/pkg/errors"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pydeb.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	repo := t.TempDir()
	path := writeConfigFile(t, `
repository = "`+repo+`"
name-prefix = "myorg"
install-prefix = "/usr/lib/pydeb"
no-name-prefix = ["virtualenv"]

[renames]
coloredlogs = "pip-accel-coloredlogs-renamed"

[commands]
fabric = "rm -Rf usr/lib/python3/dist-packages/paramiko"

[depends]
fabric = "openssh-client"
`)

	fileCfg, err := loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile() error: %v", err)
	}

	cfg := convert.NewConfig()
	if err := fileCfg.apply(cfg); err != nil {
		t.Fatalf("apply() error: %v", err)
	}

	if cfg.Repository != repo {
		t.Errorf("Repository = %q, want %q", cfg.Repository, repo)
	}
	if cfg.NamePrefix != "myorg" {
		t.Errorf("NamePrefix = %q", cfg.NamePrefix)
	}
	if got := cfg.TargetName("coloredlogs"); got != "pip-accel-coloredlogs-renamed" {
		t.Errorf("TargetName(coloredlogs) = %q", got)
	}
	if got := cfg.TargetName("virtualenv"); got != "virtualenv" {
		t.Errorf("TargetName(virtualenv) = %q, want exempt from prefix", got)
	}
	if s := cfg.Strategy("fabric"); s.Kind != convert.StrategyCustom {
		t.Errorf("Strategy(fabric) = %+v, want custom", s)
	}
	if deps := cfg.ExtraDepends("fabric"); len(deps) != 1 || deps[0].Name != "openssh-client" {
		t.Errorf("ExtraDepends(fabric) = %v", deps)
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := loadConfigFile("/no/such/pydeb.toml"); err == nil {
		t.Error("loadConfigFile() on missing file: want error")
	}
}

func TestConfigFileEmptyValueRejected(t *testing.T) {
	path := writeConfigFile(t, `
[renames]
coloredlogs = ""
`)
	fileCfg, err := loadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fileCfg.apply(convert.NewConfig()); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("apply() error = %v, want code %s", err, errors.ErrCodeConfig)
	}
}

func TestBuildConfigFlagsWinOverFile(t *testing.T) {
	fileRepo := t.TempDir()
	flagRepo := t.TempDir()
	path := writeConfigFile(t, `
repository = "`+fileRepo+`"
name-prefix = "fileorg"
`)

	c := New(os.Stderr, LogInfo)
	cfg, err := c.buildConfig(convertFlags{
		repository: flagRepo,
		namePrefix: "flagorg",
		configFile: path,
	})
	if err != nil {
		t.Fatalf("buildConfig() error: %v", err)
	}
	if cfg.Repository != flagRepo {
		t.Errorf("Repository = %q, want the flag value %q", cfg.Repository, flagRepo)
	}
	if cfg.NamePrefix != "flagorg" {
		t.Errorf("NamePrefix = %q, want the flag value", cfg.NamePrefix)
	}
}

func TestBuildConfigDefaultRepositoryYieldsToFile(t *testing.T) {
	fileRepo := t.TempDir()
	path := writeConfigFile(t, `repository = "`+fileRepo+`"`)

	c := New(os.Stderr, LogInfo)
	cfg, err := c.buildConfig(convertFlags{repository: ".", configFile: path})
	if err != nil {
		t.Fatalf("buildConfig() error: %v", err)
	}
	if cfg.Repository != fileRepo {
		t.Errorf("Repository = %q, want the file value %q", cfg.Repository, fileRepo)
	}
}

func TestSplitPair(t *testing.T) {
	left, right, err := splitPair("coloredlogs,pip-accel-coloredlogs-renamed", "--rename")
	if err != nil {
		t.Fatal(err)
	}
	if left != "coloredlogs" || right != "pip-accel-coloredlogs-renamed" {
		t.Errorf("splitPair() = %q, %q", left, right)
	}

	// command values may themselves contain commas
	left, right, err = splitPair("fabric,rm -Rf a,b", "--convert-command")
	if err != nil {
		t.Fatal(err)
	}
	if left != "fabric" || right != "rm -Rf a,b" {
		t.Errorf("splitPair() = %q, %q", left, right)
	}

	if _, _, err := splitPair("nocomma", "--rename"); !errors.Is(err, errors.ErrCodeConfig) {
		t.Errorf("error = %v, want code %s", err, errors.ErrCodeConfig)
	}
}
