package convert

import (
	"bytes"
	"context"
	"strings"

	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/pydeb/pydeb/pkg/errors"
	"github.com/pydeb/pydeb/pkg/python"
)

// StrategyKind distinguishes the conversion strategies.
type StrategyKind int

const (
	// StrategyDefault builds the package with the standard pip pipeline.
	StrategyDefault StrategyKind = iota
	// StrategyCustom runs the default build, then patches the staging tree
	// with a user-registered shell command.
	StrategyCustom
)

// Strategy is the conversion strategy selected for one source package.
type Strategy struct {
	Kind    StrategyKind
	Command string // set when Kind is StrategyCustom
}

// Strategy returns the conversion strategy for a source package. Packages
// without a registered command use the default build.
func (c *Config) Strategy(source string) Strategy {
	if cmd, ok := c.commands[python.NormalizeName(source)]; ok {
		return Strategy{Kind: StrategyCustom, Command: cmd}
	}
	return Strategy{Kind: StrategyDefault}
}

// runPatchCommand executes a registered conversion command with the staging
// root as working directory. The command runs in an embedded POSIX shell
// interpreter so behavior does not depend on the host's /bin/sh.
func runPatchCommand(ctx context.Context, command, staging string) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return errors.Wrap(errors.ErrCodeConversion, err, "parse conversion command %q", command)
	}

	var output bytes.Buffer
	runner, err := interp.New(
		interp.Dir(staging),
		interp.StdIO(nil, &output, &output),
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeConversion, err, "initialize shell interpreter")
	}

	if err := runner.Run(ctx, file); err != nil {
		return errors.Wrap(errors.ErrCodeConversion, err,
			"conversion command %q failed: %s", command, strings.TrimSpace(output.String()))
	}
	return nil
}
