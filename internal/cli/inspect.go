package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pydeb/pydeb/pkg/convert"
	"github.com/pydeb/pydeb/pkg/deb"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var repository string

	cmd := &cobra.Command{
		Use:   "inspect [archive]",
		Short: "Inspect archives in the repository",
		Long: `Inspect archives in the repository.

Without an argument, presents an interactive picker over the repository's
archives. With an archive path, inspects that archive directly. Prints the
control metadata and the contents listing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return c.inspectArchive(cmd.Context(), args[0])
			}
			return c.runInspect(cmd.Context(), repository)
		},
	}

	cmd.Flags().StringVarP(&repository, "repository", "r", ".", "repository directory")

	return cmd
}

// runInspect lists the repository and lets the user pick an archive.
func (c *CLI) runInspect(ctx context.Context, repository string) error {
	repo := &convert.Repository{Dir: repository}
	archives, err := repo.List()
	if err != nil {
		return fmt.Errorf("list repository %s: %w", repository, err)
	}
	if len(archives) == 0 {
		printWarning("No archives in %s", repository)
		return nil
	}

	program := tea.NewProgram(newArchiveListModel(archives))
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("archive picker: %w", err)
	}
	model := final.(archiveListModel)
	if model.Selected == "" {
		return nil
	}
	return c.inspectArchive(ctx, model.Selected)
}

// inspectArchive prints an archive's control metadata and contents.
func (c *CLI) inspectArchive(ctx context.Context, path string) error {
	fields, contents, err := deb.NewDpkgArchiver().Inspect(ctx, path)
	if err != nil {
		return err
	}

	fmt.Println(StyleTitle.Render(filepath.Base(path)))
	printNewline()
	for _, key := range []string{"Package", "Version", "Architecture", "Maintainer", "Depends", "Homepage", "Description"} {
		if value, ok := fields[key]; ok {
			keyStyle := lipgloss.NewStyle().Foreground(colorGray).Width(14)
			fmt.Println(keyStyle.Render(key) + " " + StyleValue.Render(value))
		}
	}
	printNewline()
	printDetail("%d files", len(contents))
	for _, entry := range contents {
		printDetail("%s", entry)
	}
	return nil
}

// =============================================================================
// ArchiveListModel - Interactive archive selection
// =============================================================================

// archiveListModel is the bubbletea model for interactive archive selection.
type archiveListModel struct {
	Archives []string
	Cursor   int
	Selected string
}

// newArchiveListModel creates a new archive list model.
func newArchiveListModel(archives []string) archiveListModel {
	return archiveListModel{Archives: archives}
}

func (m archiveListModel) Init() tea.Cmd {
	return nil
}

func (m archiveListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Archives)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = m.Archives[m.Cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m archiveListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Archive"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("arrows: navigate  enter: select  q: quit"))
	b.WriteString("\n\n")

	for i, archive := range m.Archives {
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}
		line := cursor + filepath.Base(archive)
		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Archives))))

	return b.String()
}
