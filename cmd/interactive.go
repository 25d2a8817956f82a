package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stegokit/qrmark/pkg/capacity"
	"github.com/stegokit/qrmark/pkg/pattern"
	"github.com/stegokit/qrmark/pkg/stego"
)

// Styles
var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	cursorStyle  = focusedStyle.Copy()
	checkedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")) // Green
	docStyle     = lipgloss.NewStyle().Margin(1, 2)
)

type fileItem struct {
	path     string
	name     string
	isDir    bool
	selected bool
}

type model struct {
	path        string
	files       []fileItem
	cursor      int
	status      string
	patternPath string
	typing      bool
	textInput   textinput.Model
	quitting    bool
}

func initialModel() model {
	cwd, _ := os.Getwd()

	ti := textinput.New()
	ti.Placeholder = "path/to/pattern.png"

	m := model{
		path:      cwd,
		status:    "Navigate: ↑/↓ | Enter: Open Dir | Space: Select | 'p': Pattern | 'e': Embed",
		textInput: ti,
	}
	m.loadFiles()
	return m
}

func (m *model) loadFiles() {
	entries, err := os.ReadDir(m.path)
	if err != nil {
		m.status = "Error reading directory"
		return
	}

	m.files = []fileItem{}
	// Parent directory
	m.files = append(m.files, fileItem{name: "..", isDir: true, path: filepath.Dir(m.path)})

	for _, e := range entries {
		name := e.Name()
		// Carriers must be lossless, so only directories and PNGs show up
		if e.IsDir() || strings.HasSuffix(strings.ToLower(name), ".png") {
			m.files = append(m.files, fileItem{
				name:  name,
				isDir: e.IsDir(),
				path:  filepath.Join(m.path, name),
			})
		}
	}
	m.cursor = 0
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.typing {
			switch msg.String() {
			case "enter":
				m.patternPath = m.textInput.Value()
				m.typing = false
				m.textInput.Blur()
				m.status = fmt.Sprintf("Pattern set: %s", m.patternPath)
			case "esc":
				m.typing = false
				m.textInput.Blur()
			default:
				var cmd tea.Cmd
				m.textInput, cmd = m.textInput.Update(msg)
				return m, cmd
			}
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.files)-1 {
				m.cursor++
			}

		case "enter":
			selected := m.files[m.cursor]
			if selected.isDir {
				m.path = selected.path
				m.loadFiles()
			}

		case " ":
			if !m.files[m.cursor].isDir {
				m.files[m.cursor].selected = !m.files[m.cursor].selected
			}

		case "p":
			m.typing = true
			m.textInput.SetValue(m.patternPath)
			m.textInput.Focus()

		case "e":
			return m, m.embedSelected()
		}

	case statusMsg:
		m.status = string(msg)
		if strings.HasPrefix(m.status, "Success") {
			// Clear selections on success
			for i := range m.files {
				m.files[i].selected = false
			}
		}
	}

	return m, nil
}

type statusMsg string

func (m model) embedSelected() tea.Cmd {
	return func() tea.Msg {
		if m.patternPath == "" {
			return statusMsg("No pattern set! Press 'p' to choose one.")
		}

		var selectedPaths []string
		for _, f := range m.files {
			if f.selected {
				selectedPaths = append(selectedPaths, f.path)
			}
		}
		if len(selectedPaths) == 0 {
			return statusMsg("No carriers selected!")
		}

		n, err := runInteractiveEmbed(m.patternPath, selectedPaths)
		if err != nil {
			return statusMsg(fmt.Sprintf("Error: %v", err))
		}
		return statusMsg(fmt.Sprintf("Success! Watermarked %d image(s).", n))
	}
}

func (m model) View() string {
	if m.quitting {
		return "Bye!\n"
	}

	s := fmt.Sprintf("Directory: %s\n", m.path)
	if m.patternPath != "" {
		s += fmt.Sprintf("Pattern:   %s\n", m.patternPath)
	}
	s += "\n"

	for i, file := range m.files {
		cursor := " " // no cursor
		if m.cursor == i {
			cursor = ">"
			s += cursorStyle.Render(cursor)
		} else {
			s += cursor
		}

		checked := " "
		if file.selected {
			checked = "x"
		}

		line := ""
		if file.isDir {
			line = fmt.Sprintf("[DIR] %s", file.name)
		} else {
			line = fmt.Sprintf("[%s] %s", checked, file.name)
		}

		if file.selected {
			line = checkedStyle.Render(line)
		}

		s += " " + line + "\n"
	}

	if m.typing {
		s += fmt.Sprintf("\nPattern path: %s\n", m.textInput.View())
	}

	s += fmt.Sprintf("\n%s\n", m.status)
	return docStyle.Render(s)
}

// runInteractiveEmbed is the embed command's core loop adapted for the
// TUI: one pattern, many carriers, each written next to its original.
func runInteractiveEmbed(patternPath string, carrierPaths []string) (int, error) {
	bm, err := loadPattern(patternPath)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, carrierPath := range carrierPaths {
		carrier, format, err := loadImage(carrierPath)
		if err != nil {
			return count, err
		}
		if format != "png" {
			return count, fmt.Errorf("%s is not a PNG", filepath.Base(carrierPath))
		}

		capRep, err := capacity.Analyze(carrier, capacity.Options{})
		if err != nil {
			return count, fmt.Errorf("%s: %w", filepath.Base(carrierPath), err)
		}

		fitted := bm
		if bm.Modules() > capRep.AvailableBits {
			side := capRep.RecommendedPatternSide
			res, err := pattern.Resize(bm, side, side, pattern.Nearest, 0)
			if err != nil {
				return count, fmt.Errorf("%s: %w", filepath.Base(carrierPath), err)
			}
			fitted = res.Bitmap
		}

		marked, err := stego.EmbedBitmap(carrier, fitted)
		if err != nil {
			return count, fmt.Errorf("%s: %w", filepath.Base(carrierPath), err)
		}

		if err := savePNG(markedName(carrierPath), marked); err != nil {
			return count, err
		}
		count++
	}

	return count, nil
}

// Cobra command setup
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Interactive terminal UI for watermarking images",
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(initialModel())
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}
