// Package mixer renders audio inputs as animated volume meters.
package mixer

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/tui/theme"
)

// FPS is the meter animation frame rate.
const FPS = 30

const (
	floorDB   = -60.0
	meterMin  = 10
	settleEps = 0.001
)

// Channel is one audio input and its meter animation state.
type Channel struct {
	UUID     string
	Name     string
	Muted    bool
	VolumeDB float64

	pos, vel float64
}

// Target is the meter position the channel animates toward.
func (c Channel) Target() float64 {
	if c.Muted {
		return 0
	}
	return Level(c.VolumeDB)
}

// Level maps a dB value onto [0, 1], with floorDB and below at 0.
func Level(db float64) float64 {
	if math.IsInf(db, -1) || db <= floorDB {
		return 0
	}
	if db >= 0 {
		return 1
	}
	return 1 - db/floorDB
}

// Model holds the mixer state.
type Model struct {
	Channels []Channel
	Selected int
	Focused  bool
	Width    int

	spring harmonica.Spring
}

// New creates an empty mixer.
func New() Model {
	return Model{spring: harmonica.NewSpring(harmonica.FPS(FPS), 6.0, 0.5)}
}

// SetInputs replaces the channel list, keeping animation state for
// inputs that are still present.
func (m *Model) SetInputs(inputs []obs.AudioInputSnapshot) {
	prev := make(map[string]Channel, len(m.Channels))
	for _, c := range m.Channels {
		prev[c.UUID] = c
	}

	m.Channels = make([]Channel, len(inputs))
	for i, in := range inputs {
		c := Channel{UUID: in.UUID, Name: in.Name, Muted: in.Muted, VolumeDB: in.VolumeDB}
		if old, ok := prev[in.UUID]; ok {
			c.pos, c.vel = old.pos, old.vel
		}
		m.Channels[i] = c
	}
	if m.Selected >= len(m.Channels) {
		m.Selected = max(len(m.Channels)-1, 0)
	}
}

// Animate advances every meter one frame. It reports whether any meter
// is still moving.
func (m *Model) Animate() bool {
	moving := false
	for i := range m.Channels {
		c := &m.Channels[i]
		target := c.Target()
		c.pos, c.vel = m.spring.Update(c.pos, c.vel, target)
		if math.Abs(c.pos-target) > settleEps || math.Abs(c.vel) > settleEps {
			moving = true
		} else {
			c.pos, c.vel = target, 0
		}
	}
	return moving
}

// Current returns the selected channel.
func (m Model) Current() (Channel, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Channels) {
		return Channel{}, false
	}
	return m.Channels[m.Selected], true
}

// Move shifts the selection by delta, wrapping.
func (m *Model) Move(delta int) {
	if n := len(m.Channels); n > 0 {
		m.Selected = ((m.Selected+delta)%n + n) % n
	}
}

// View renders the mixer panel.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	nameW := 18
	meterW := width - nameW - 20
	if meterW < meterMin {
		meterW = meterMin
	}

	lines := []string{theme.StyleHeader.Render("AUDIO")}
	if len(m.Channels) == 0 {
		lines = append(lines, theme.StyleDimmed.Render("  No audio inputs"))
	}
	for i, c := range m.Channels {
		prefix := "  "
		if m.Focused && i == m.Selected {
			prefix = "> "
		}
		name := c.Name
		if len(name) > nameW {
			name = name[:nameW-3] + "..."
		}

		filled := int(math.Round(c.pos * float64(meterW)))
		filled = min(max(filled, 0), meterW)
		color := theme.MeterColor(c.VolumeDB)
		if c.Muted {
			color = theme.ColorMuted
		}
		bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
			theme.StyleDimmed.Render(strings.Repeat("░", meterW-filled))

		db := fmt.Sprintf("%6.1f dB", c.VolumeDB)
		if c.Muted {
			db = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(" MUTED  ")
		}
		lines = append(lines, fmt.Sprintf("%s%-*s %s %s", prefix, nameW, name, bar, db))
	}

	return theme.Panel(m.Focused).Width(width - 2).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
