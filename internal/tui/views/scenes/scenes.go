// Package scenes renders the scene list and the items of the selected
// scene.
package scenes

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/tui/theme"
)

// Model holds the scene browser state.
type Model struct {
	Scenes  []obs.SceneSnapshot
	Program string

	SceneIdx int
	ItemIdx  int
	// FocusScenes and FocusItems say which list receives navigation.
	FocusScenes bool
	FocusItems  bool
	Width       int
}

// New creates an empty scene browser.
func New() Model {
	return Model{}
}

// SetScenes replaces the scene list, keeping the cursor on the same
// scene when it still exists.
func (m *Model) SetScenes(scenes []obs.SceneSnapshot, program string) {
	selected := ""
	if cur, ok := m.CurrentScene(); ok {
		selected = cur.UUID
	}
	m.Scenes = scenes
	m.Program = program

	m.SceneIdx = 0
	for i, s := range scenes {
		if s.UUID == selected {
			m.SceneIdx = i
			break
		}
	}
	if cur, ok := m.CurrentScene(); !ok || m.ItemIdx >= len(cur.Items) {
		m.ItemIdx = 0
	}
}

// CurrentScene returns the scene under the cursor.
func (m Model) CurrentScene() (obs.SceneSnapshot, bool) {
	if m.SceneIdx < 0 || m.SceneIdx >= len(m.Scenes) {
		return obs.SceneSnapshot{}, false
	}
	return m.Scenes[m.SceneIdx], true
}

// CurrentItem returns the item under the cursor in the selected scene.
func (m Model) CurrentItem() (obs.SceneItemSnapshot, bool) {
	scene, ok := m.CurrentScene()
	if !ok || m.ItemIdx < 0 || m.ItemIdx >= len(scene.Items) {
		return obs.SceneItemSnapshot{}, false
	}
	return scene.Items[m.ItemIdx], true
}

// Move shifts whichever list has focus by delta, wrapping.
func (m *Model) Move(delta int) {
	switch {
	case m.FocusScenes:
		if n := len(m.Scenes); n > 0 {
			m.SceneIdx = ((m.SceneIdx+delta)%n + n) % n
			m.ItemIdx = 0
		}
	case m.FocusItems:
		scene, ok := m.CurrentScene()
		if n := len(scene.Items); ok && n > 0 {
			m.ItemIdx = ((m.ItemIdx+delta)%n + n) % n
		}
	}
}

// View renders the scene and item lists side by side.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	half := width/2 - 2

	sceneLines := []string{theme.StyleHeader.Render("SCENES")}
	if len(m.Scenes) == 0 {
		sceneLines = append(sceneLines, theme.StyleDimmed.Render("  No scenes"))
	}
	for i, s := range m.Scenes {
		prefix := "  "
		if i == m.SceneIdx {
			prefix = "> "
			if !m.FocusScenes {
				prefix = "· "
			}
		}
		name := s.Name
		if s.UUID == m.Program {
			name = lipgloss.NewStyle().Foreground(theme.ColorProgram).Bold(true).Render(name + " [PGM]")
		}
		sceneLines = append(sceneLines, prefix+name)
	}

	itemLines := []string{theme.StyleHeader.Render("SOURCES")}
	scene, ok := m.CurrentScene()
	if !ok || len(scene.Items) == 0 {
		itemLines = append(itemLines, theme.StyleDimmed.Render("  No sources"))
	}
	for i, item := range scene.Items {
		prefix := "  "
		if m.FocusItems && i == m.ItemIdx {
			prefix = "> "
		}
		glyph := lipgloss.NewStyle().Foreground(theme.ColorVisible).Render("◉")
		if !item.Enabled {
			glyph = lipgloss.NewStyle().Foreground(theme.ColorHidden).Render("○")
		}
		itemLines = append(itemLines, fmt.Sprintf("%s%s %s", prefix, glyph, item.SourceName))
	}

	left := theme.Panel(m.FocusScenes).Width(half).Render(lipgloss.JoinVertical(lipgloss.Left, sceneLines...))
	right := theme.Panel(m.FocusItems).Width(half).Render(lipgloss.JoinVertical(lipgloss.Left, itemLines...))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
