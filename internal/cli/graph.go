package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-graphviz"
	"github.com/spf13/cobra"

	"github.com/pydeb/pydeb/pkg/convert"
	"github.com/pydeb/pydeb/pkg/pypi"
)

// Graph output formats.
const (
	formatDOT = "dot"
	formatSVG = "svg"
)

// graphCommand creates the graph command for visualizing the closure.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		output     string
		format     string
		namePrefix string
		refresh    bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "graph [package...]",
		Short: "Render the dependency closure as a graph",
		Long: `Render the dependency closure as a graph.

Resolves the same closure the convert command would process and renders it
in Graphviz DOT format (default, written to stdout) or as SVG. Nodes carry
the mapped Debian package name and the resolved version.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatDOT && format != formatSVG {
				return fmt.Errorf("unsupported format %q (want dot or svg)", format)
			}
			return c.runGraph(cmd.Context(), args, output, format, namePrefix, refresh, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout for dot, closure.svg for svg)")
	cmd.Flags().StringVarP(&format, "format", "f", formatDOT, "output format: dot or svg")
	cmd.Flags().StringVar(&namePrefix, "name-prefix", "", "name prefix for mapped node names")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the PyPI response cache")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

// runGraph resolves the closure and renders it.
func (c *CLI) runGraph(ctx context.Context, specifiers []string, output, format, namePrefix string, refresh, noCache bool) error {
	cfg := convert.NewConfig()
	if namePrefix != "" {
		if err := cfg.SetNamePrefix(namePrefix); err != nil {
			return err
		}
	}

	backend, err := newCache(noCache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer backend.Close()

	ctx = withLogger(ctx, c.Logger)
	spinner := newSpinnerWithContext(ctx, "Resolving dependency closure...")
	spinner.Start()
	closure, err := convert.ResolveClosure(ctx, cfg, pypi.NewClient(backend), specifiers, refresh)
	spinner.Stop()
	if err != nil {
		if spinner.Cancelled() {
			return ctx.Err()
		}
		return fmt.Errorf("resolve closure: %w", err)
	}
	loggerFromContext(ctx).Debug("rendering closure", "packages", len(closure), "format", format)

	dot := closureDOT(closure)
	if format == formatDOT {
		if output == "" {
			fmt.Print(dot)
			return nil
		}
		if err := os.WriteFile(output, []byte(dot), 0644); err != nil {
			return err
		}
		printFile(output)
		return nil
	}

	svg, err := renderSVG(ctx, dot)
	if err != nil {
		return err
	}
	if output == "" {
		output = "closure.svg"
	}
	if err := os.WriteFile(output, svg, 0644); err != nil {
		return err
	}
	printSuccess("Rendered %d packages", len(closure))
	printFile(output)
	return nil
}

// closureDOT converts a resolved closure to Graphviz DOT format. Edges point
// from dependents to their dependencies.
func closureDOT(closure convert.Closure) string {
	members := make(map[string]bool, len(closure))
	for _, m := range closure {
		members[m.Source] = true
	}

	var buf bytes.Buffer
	buf.WriteString("digraph closure {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	for _, m := range closure {
		label := fmt.Sprintf("%s\n%s", m.Target, m.Version)
		attrs := []string{fmt.Sprintf("label=%q", label)}
		if m.Requested {
			attrs = append(attrs, "fillcolor=lightblue")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", m.Source, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, m := range closure {
		for _, req := range m.Requirements {
			if members[req.Name] {
				fmt.Fprintf(&buf, "  %q -> %q;\n", m.Source, req.Name)
			}
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// renderSVG renders a DOT graph to SVG using Graphviz.
func renderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
