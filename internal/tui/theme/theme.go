// Package theme provides the Lip Gloss color palette and reusable styles
// for the obsmirror TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Session state colors.
var (
	ColorIdle       = lipgloss.Color("#4b5563")
	ColorConnecting = lipgloss.Color("#7c3aed")
	ColorLoading    = lipgloss.Color("#2563eb")
	ColorReady      = lipgloss.Color("#16a34a")
	ColorClosing    = lipgloss.Color("#d97706")
)

// Meter colors.
var (
	ColorMeterLow  = lipgloss.Color("#22c55e") // below -20 dB
	ColorMeterMid  = lipgloss.Color("#d97706") // -20 to -6 dB
	ColorMeterHigh = lipgloss.Color("#dc2626") // above -6 dB
	ColorMuted     = lipgloss.Color("#374151")
)

// Scene colors.
var (
	ColorProgram = lipgloss.Color("#dc2626")
	ColorVisible = lipgloss.Color("#06b6d4")
	ColorHidden  = lipgloss.Color("#6b7280")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorFocus   = lipgloss.Color("#a855f7")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a session state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "idle":
		return ColorIdle
	case "connecting":
		return ColorConnecting
	case "loading":
		return ColorLoading
	case "ready":
		return ColorReady
	case "closing":
		return ColorClosing
	default:
		return ColorDefault
	}
}

// StateGlyph returns a Unicode glyph for a session state name.
func StateGlyph(state string) string {
	switch state {
	case "idle":
		return "○"
	case "connecting":
		return "◌"
	case "loading":
		return "◎"
	case "ready":
		return "●"
	case "closing":
		return "✗"
	default:
		return "·"
	}
}

// MeterColor returns the meter color for a volume in dB.
func MeterColor(db float64) lipgloss.Color {
	switch {
	case db > -6:
		return ColorMeterHigh
	case db > -20:
		return ColorMeterMid
	default:
		return ColorMeterLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleFocusBorder = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(ColorFocus)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)

// Panel returns the border style for a pane, highlighted when focused.
func Panel(focused bool) lipgloss.Style {
	if focused {
		return StyleFocusBorder
	}
	return StyleBorder
}
