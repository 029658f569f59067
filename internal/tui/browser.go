package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/codedswitch/studio/internal/pattern"
)

// newPatternName is the file the browser creates with 'n'.
const newPatternName = "new_pattern.mid"

var (
	dirStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAFF")).
			Bold(true)

	fileStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))
)

type fileInfo struct {
	name  string
	path  string
	isDir bool
}

// Browser picks a pattern file from disk. After the program exits, Picked
// holds the chosen path or "" when the user quit.
type Browser struct {
	currentDir  string
	files       []fileInfo
	cursor      int
	viewportTop int
	message     string
	height      int
	picked      string
}

// NewBrowser starts in dir, or the home directory when dir is empty.
func NewBrowser(dir string) *Browser {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = home
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	b := &Browser{currentDir: dir}
	b.loadFiles()
	return b
}

// Picked returns the selected pattern file.
func (b *Browser) Picked() string { return b.picked }

func isPatternFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mid", ".midi", ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func (b *Browser) loadFiles() {
	b.files = []fileInfo{}

	// Add parent directory entry
	if parent := filepath.Dir(b.currentDir); parent != b.currentDir {
		b.files = append(b.files, fileInfo{name: "..", path: parent, isDir: true})
	}

	entries, err := os.ReadDir(b.currentDir)
	if err != nil {
		b.message = fmt.Sprintf("Error reading directory: %v", err)
		return
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if entry.IsDir() || isPatternFile(entry.Name()) {
			b.files = append(b.files, fileInfo{
				name:  entry.Name(),
				path:  filepath.Join(b.currentDir, entry.Name()),
				isDir: entry.IsDir(),
			})
		}
	}

	if b.cursor >= len(b.files) {
		b.cursor = len(b.files) - 1
	}
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.viewportTop > b.cursor {
		b.viewportTop = b.cursor
	}
}

// visibleLines is how many entries fit below the header and help.
func (b *Browser) visibleLines() int {
	n := b.height - 9
	if n < 5 {
		n = 5
	}
	return n
}

func (b *Browser) scroll() {
	if b.cursor < b.viewportTop {
		b.viewportTop = b.cursor
	}
	if lines := b.visibleLines(); b.cursor >= b.viewportTop+lines {
		b.viewportTop = b.cursor - lines + 1
	}
}

func (b *Browser) Init() tea.Cmd { return nil }

func (b *Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.height = msg.Height
		b.scroll()
		return b, nil
	case tea.KeyMsg:
		return b.updateKeys(msg)
	}
	return b, nil
}

func (b *Browser) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return b, tea.Quit
	case keyUp, "k":
		if b.cursor > 0 {
			b.cursor--
		}
	case keyDown, "j":
		if b.cursor < len(b.files)-1 {
			b.cursor++
		}
	case "enter":
		if len(b.files) == 0 {
			return b, nil
		}
		selected := b.files[b.cursor]
		if selected.isDir {
			b.currentDir = selected.path
			b.cursor = 0
			b.viewportTop = 0
			b.message = ""
			b.loadFiles()
			return b, nil
		}
		if _, err := pattern.ReadFile(selected.path); err != nil {
			b.message = fmt.Sprintf("Error loading pattern: %v", err)
			return b, nil
		}
		b.picked = selected.path
		return b, tea.Quit
	case "n":
		path := filepath.Join(b.currentDir, newPatternName)
		if err := pattern.WriteFile(path, pattern.DefaultKit()); err != nil {
			b.message = fmt.Sprintf("Error creating pattern: %v", err)
			return b, nil
		}
		b.picked = path
		return b, tea.Quit
	case "d":
		if len(b.files) == 0 {
			return b, nil
		}
		selected := b.files[b.cursor]
		if selected.isDir {
			return b, nil
		}
		if err := os.Remove(selected.path); err != nil {
			b.message = fmt.Sprintf("Error deleting: %v", err)
		} else {
			b.message = fmt.Sprintf("Deleted %s", selected.name)
			b.loadFiles()
		}
	}
	b.scroll()
	return b, nil
}

func (b *Browser) View() string {
	s := titleStyle.Render("CodedSwitch Studio - Patterns") + "\n\n"
	s += fmt.Sprintf("Current Directory: %s\n\n", b.currentDir)

	if len(b.files) == 0 {
		s += "No patterns or directories found.\n"
	} else {
		end := b.viewportTop + b.visibleLines()
		if end > len(b.files) {
			end = len(b.files)
		}
		for i := b.viewportTop; i < end; i++ {
			file := b.files[i]
			cursor := " "
			if i == b.cursor {
				cursor = ">"
			}

			name := file.name
			if file.isDir {
				name = dirStyle.Render(name + "/")
			} else {
				name = fileStyle.Render(name)
			}

			if i == b.cursor {
				s += selectedStyle.Render(fmt.Sprintf("%s %s", cursor, name)) + "\n"
			} else {
				s += fmt.Sprintf("%s %s\n", cursor, name)
			}
		}
		if end < len(b.files) {
			s += infoStyle.Render(fmt.Sprintf("  … %d more", len(b.files)-end)) + "\n"
		}
	}

	s += "\n"
	if b.message != "" {
		s += errorStyle.Render(b.message) + "\n"
	}

	s += "\n" + helpStyle.Render("↑/k: up • ↓/j: down • enter: open • n: new pattern • d: delete • q: quit")
	return s
}
