package cli

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/pydeb/pydeb/pkg/convert"
	"github.com/pydeb/pydeb/pkg/deb"
)

// fileConfig mirrors the convert command's flags in a TOML file:
//
//	repository = "/var/lib/pydeb/archives"
//	name-prefix = "python"
//	install-prefix = "/usr/lib/pydeb"
//	no-name-prefix = ["virtualenv"]
//
//	[renames]
//	coloredlogs = "pip-accel-coloredlogs-renamed"
//
//	[alternatives]
//	"/usr/bin/pip" = "/usr/bin/pip-accel"
//
//	[commands]
//	fabric = "rm -Rf usr/lib/python3/dist-packages/paramiko"
//
//	[depends]
//	fabric = "openssh-client"
type fileConfig struct {
	Repository    string            `toml:"repository"`
	NamePrefix    string            `toml:"name-prefix"`
	InstallPrefix string            `toml:"install-prefix"`
	NoNamePrefix  []string          `toml:"no-name-prefix"`
	Renames       map[string]string `toml:"renames"`
	Alternatives  map[string]string `toml:"alternatives"`
	Commands      map[string]string `toml:"commands"`
	Depends       map[string]string `toml:"depends"`
}

// loadConfigFile reads and decodes a TOML configuration file.
func loadConfigFile(path string) (*fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}
	return &cfg, nil
}

// apply copies the file values into the conversion config through its
// validating setters. Map sections are applied in sorted key order so
// validation errors are deterministic.
func (f *fileConfig) apply(cfg *convert.Config) error {
	if f.Repository != "" {
		if err := cfg.SetRepository(f.Repository); err != nil {
			return err
		}
	}
	if f.NamePrefix != "" {
		if err := cfg.SetNamePrefix(f.NamePrefix); err != nil {
			return err
		}
	}
	if f.InstallPrefix != "" {
		if err := cfg.SetInstallPrefix(f.InstallPrefix); err != nil {
			return err
		}
	}
	for _, name := range f.NoNamePrefix {
		if err := cfg.SkipNamePrefix(name); err != nil {
			return err
		}
	}
	for _, source := range sortedKeys(f.Renames) {
		if err := cfg.RenamePackage(source, f.Renames[source]); err != nil {
			return err
		}
	}
	for _, link := range sortedKeys(f.Alternatives) {
		if err := cfg.InstallAlternative(link, f.Alternatives[link]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(f.Commands) {
		if err := cfg.SetConversionCommand(name, f.Commands[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(f.Depends) {
		rels, err := deb.ParseRelations(f.Depends[name])
		if err != nil {
			return fmt.Errorf("depends for %s: %w", name, err)
		}
		if err := cfg.SetExtraDepends(name, rels); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
