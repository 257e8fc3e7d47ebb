// Package help renders the key reference overlay from markdown.
package help

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/obsmirror/obsmirror/internal/tui/theme"
)

const Markdown = `# obsmirror

Mirror of the connected OBS instance. Mute, volume and visibility
follow OBS events; nothing is polled once the mirror is ready.

| Key | Action |
|-----|--------|
| ` + "`j` / `k`" + ` | move selection |
| ` + "`tab`" + ` | cycle pane: audio, scenes, sources |
| ` + "`m`" + ` | toggle mute on the selected input |
| ` + "`+` / `-`" + ` | raise or lower volume |
| ` + "`enter`" + ` | switch to scene, or show/hide source |
| ` + "`s`" + ` | start or stop streaming |
| ` + "`r`" + ` | reconnect and reload everything |
| ` + "`d`" + ` | debug log |
| ` + "`f`" + ` | filter the debug log by source |
| ` + "`?`" + ` | this help |
| ` + "`esc`" + ` | close overlay |
| ` + "`q`" + ` | quit |

If OBS closes or the socket drops, the session is torn down and the
mirror empties. Press ` + "`r`" + ` to connect again.
`

// Render renders Markdown for the given width. If glamour fails the raw
// markdown is returned.
func Render(width int) string {
	wrap := width - 8
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return Markdown
	}
	out, err := r.Render(Markdown)
	if err != nil {
		return Markdown
	}
	return out
}

// View renders the help overlay panel.
func View(width int) string {
	return lipgloss.NewStyle().
		Width(width-4).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(Render(width))
}
