package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/lockset/pkg/lockfile"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// LockfileListModel - Interactive lockfile selection
// =============================================================================

// lockfileEntry is one discovered lockfile candidate.
type lockfileEntry struct {
	Path  string
	Label string // format implied by the file name
	Size  int64
}

// discoverLockfiles returns the known lockfile names present in dir,
// in the order they are recognized.
func discoverLockfiles(dir string) ([]lockfileEntry, error) {
	var entries []lockfileEntry
	for _, name := range lockfile.LockfileNames() {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		entries = append(entries, lockfileEntry{
			Path:  path,
			Label: lockfileLabel(name),
			Size:  info.Size(),
		})
	}
	return entries, nil
}

// lockfileLabel maps a conventional file name to a display label. The name
// alone cannot split yarn classic from berry, so yarn.lock stays generic.
func lockfileLabel(name string) string {
	switch name {
	case "package-lock.json", "npm-shrinkwrap.json":
		return "npm"
	case "pnpm-lock.yaml", "pnpm-lock.yml", "shrinkwrap.yaml":
		return "pnpm"
	case "yarn.lock":
		return "yarn"
	default:
		return "unknown"
	}
}

// LockfileListModel is the bubbletea model for interactive lockfile selection.
type LockfileListModel struct {
	Entries  []lockfileEntry
	Cursor   int
	Selected *lockfileEntry
}

// NewLockfileListModel creates a new lockfile list model.
func NewLockfileListModel(entries []lockfileEntry) LockfileListModel {
	return LockfileListModel{Entries: entries}
}

func (m LockfileListModel) Init() tea.Cmd {
	return nil
}

func (m LockfileListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			if m.Cursor < len(m.Entries)-1 {
				m.Cursor++
			}
		case "enter":
			m.Selected = &m.Entries[m.Cursor]
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m LockfileListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Lockfile"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("arrows: navigate  enter: select  q: quit"))
	b.WriteString("\n\n")

	for i, e := range m.Entries {
		cursor := "  "
		if i == m.Cursor {
			cursor = "> "
		}

		detail := fmt.Sprintf("%s  %s", e.Label, formatSize(e.Size))
		line := fmt.Sprintf("%s%-22s  %s", cursor, filepath.Base(e.Path), listDimStyle.Render(detail))

		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	return b.String()
}

// pickLockfile runs the interactive picker and returns the chosen path.
// ok is false when the user quit without selecting.
func pickLockfile(entries []lockfileEntry) (string, bool, error) {
	p := tea.NewProgram(NewLockfileListModel(entries))
	finalModel, err := p.Run()
	if err != nil {
		return "", false, err
	}

	fm, ok := finalModel.(LockfileListModel)
	if !ok || fm.Selected == nil {
		return "", false, nil
	}
	return fm.Selected.Path, true, nil
}

// =============================================================================
// Helpers
// =============================================================================

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
