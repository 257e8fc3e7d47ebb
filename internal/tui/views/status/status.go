package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/obsmirror/obsmirror/internal/tui/theme"
)

// Model holds the status bar state.
type Model struct {
	URL          string
	State        string
	Connected    bool
	ProgramScene string
	Streaming    bool
	// OBSRunning is the local process probe result, nil until probed.
	OBSRunning *bool
	Width      int
}

// New creates a status bar model.
func New(url string) Model {
	return Model{URL: url, State: "idle"}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	stateStr := lipgloss.NewStyle().Foreground(theme.StateColor(m.State)).
		Render(theme.StateGlyph(m.State) + " " + m.State)

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render(m.URL)
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(m.URL + " (closed)")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := stateStr + sep + connStr

	if m.ProgramScene != "" {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorProgram).Render("PGM "+m.ProgramScene)
	}
	if m.Streaming {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDanger).Bold(true).Render("● LIVE")
	} else if m.State == "ready" {
		content += sep + theme.StyleDimmed.Render("offline")
	}
	if m.OBSRunning != nil && !m.Connected {
		probe := "OBS not running"
		color := theme.ColorWarning
		if *m.OBSRunning {
			probe = "OBS process found"
			color = theme.ColorDimmed
		}
		content += sep + lipgloss.NewStyle().Foreground(color).Render(probe)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

// Summary is the one-line plain text form, used in logs.
func (m Model) Summary() string {
	return fmt.Sprintf("%s connected=%v program=%q live=%v", m.State, m.Connected, m.ProgramScene, m.Streaming)
}
