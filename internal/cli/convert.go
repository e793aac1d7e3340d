package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pydeb/pydeb/pkg/convert"
	"github.com/pydeb/pydeb/pkg/deb"
	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/pip"
	"github.com/pydeb/pydeb/pkg/pypi"
)

// convertFlags holds the flag values of the convert command.
type convertFlags struct {
	repository    string
	namePrefix    string
	installPrefix string
	configFile    string
	reportFile    string
	noPrefix      []string
	renames       []string
	alternatives  []string
	commands      []string
	refresh       bool
	noCache       bool
}

// convertCommand creates the convert command.
func (c *CLI) convertCommand() *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert [package...]",
		Short: "Convert Python packages to Debian archives",
		Long: `Convert Python packages to Debian archives.

Each argument is a package specifier: a name ("coloredlogs"), a pinned
version ("coloredlogs==0.4.8") or a constraint list ("requests>=2.0,<3.0").
The transitive dependency closure is resolved against PyPI and every member
is converted, dependencies first. Archives accumulate in the repository
directory; existing archives are reused and never rebuilt.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConvert(cmd.Context(), args, f)
		},
	}

	cmd.Flags().StringVarP(&f.repository, "repository", "r", ".", "directory archives are written to")
	cmd.Flags().StringVar(&f.namePrefix, "name-prefix", "", "name prefix for converted packages (default \"python\")")
	cmd.Flags().StringArrayVar(&f.noPrefix, "no-name-prefix", nil, "package exempt from the name prefix (repeatable)")
	cmd.Flags().StringArrayVar(&f.renames, "rename", nil, "explicit rename as \"source,target\" (repeatable)")
	cmd.Flags().StringVar(&f.installPrefix, "install-prefix", "", "relocate installed files under this absolute prefix")
	cmd.Flags().StringArrayVar(&f.alternatives, "install-alternative", nil, "update-alternatives pair as \"link,target\" (repeatable)")
	cmd.Flags().StringArrayVar(&f.commands, "convert-command", nil, "custom conversion command as \"package,command\" (repeatable)")
	cmd.Flags().StringVar(&f.reportFile, "report-dependencies", "", "patch this control file with the converted dependencies")
	cmd.Flags().StringVar(&f.configFile, "config", "", "TOML configuration file (flags win over file values)")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass the PyPI response cache")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable caching")

	return cmd
}

// runConvert builds the configuration and drives the conversion.
func (c *CLI) runConvert(ctx context.Context, specifiers []string, f convertFlags) error {
	cfg, err := c.buildConfig(f)
	if err != nil {
		return err
	}

	backend, err := newCache(f.noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer backend.Close()

	converter := &convert.Converter{
		Config:     cfg,
		Resolver:   pypi.NewClient(backend),
		Builder:    pip.NewBuilder(),
		Archiver:   deb.NewDpkgArchiver(),
		Logger:     c.Logger,
		Refresh:    f.refresh,
		ReportFile: f.reportFile,
	}

	ctx = withLogger(ctx, c.Logger)
	prog := newProgress(c.Logger)

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Converting %s...", strings.Join(specifiers, ", ")))
	spinner.Start()
	results, err := converter.Convert(ctx, specifiers)
	spinner.Stop()

	if err != nil {
		if spinner.Cancelled() {
			return ctx.Err()
		}
		printError("Conversion failed: %s", errors.UserMessage(err))
		return err
	}

	built := 0
	for _, res := range results {
		printArchive(fmt.Sprintf("%s_%s", res.Target, res.Version), res.Reused)
		if !res.Reused {
			built++
		}
	}
	prog.done(fmt.Sprintf("Converted %d packages (%d reused)", built, len(results)-built))

	printNewline()
	printSuccess("Repository: %s", cfg.Repository)
	printNextStep("Serve it over HTTP", "pydeb serve --repository "+cfg.Repository)
	return nil
}

// buildConfig merges the configuration file (when given) and the command
// line flags into a validated conversion config. Flags win over file values.
func (c *CLI) buildConfig(f convertFlags) (*convert.Config, error) {
	cfg := convert.NewConfig()

	if f.configFile != "" {
		fileCfg, err := loadConfigFile(f.configFile)
		if err != nil {
			return nil, err
		}
		if err := fileCfg.apply(cfg); err != nil {
			return nil, err
		}
	}

	// the flag default "." only applies when the file did not set a repository
	if f.repository != "." || cfg.Repository == "" {
		if err := cfg.SetRepository(f.repository); err != nil {
			return nil, err
		}
	}
	if f.namePrefix != "" {
		if err := cfg.SetNamePrefix(f.namePrefix); err != nil {
			return nil, err
		}
	}
	if f.installPrefix != "" {
		if err := cfg.SetInstallPrefix(f.installPrefix); err != nil {
			return nil, err
		}
	}
	for _, name := range f.noPrefix {
		if err := cfg.SkipNamePrefix(name); err != nil {
			return nil, err
		}
	}
	for _, pair := range f.renames {
		source, target, err := splitPair(pair, "--rename")
		if err != nil {
			return nil, err
		}
		if err := cfg.RenamePackage(source, target); err != nil {
			return nil, err
		}
	}
	for _, pair := range f.alternatives {
		link, target, err := splitPair(pair, "--install-alternative")
		if err != nil {
			return nil, err
		}
		if err := cfg.InstallAlternative(link, target); err != nil {
			return nil, err
		}
	}
	for _, pair := range f.commands {
		name, command, err := splitPair(pair, "--convert-command")
		if err != nil {
			return nil, err
		}
		if err := cfg.SetConversionCommand(name, command); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// splitPair splits a "left,right" flag value on the first comma.
func splitPair(pair, flag string) (string, string, error) {
	left, right, ok := strings.Cut(pair, ",")
	if !ok {
		return "", "", errors.New(errors.ErrCodeConfig,
			"%s expects \"left,right\", got %q", flag, pair)
	}
	return strings.TrimSpace(left), strings.TrimSpace(right), nil
}
