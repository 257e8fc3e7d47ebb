// Package debug keeps the session event log shown in the debug overlay:
// mirror changes read from the client's watch channel, user actions,
// errors and OBS process checks.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/tui/theme"
)

const maxEntries = 200

// Source says where an entry came from.
type Source string

const (
	SourceMirror  Source = "obs"
	SourceAction  Source = "act"
	SourceError   Source = "err"
	SourceProcess Source = "proc"
)

// filters is the CycleFilter order. The empty source shows everything.
var filters = []Source{"", SourceMirror, SourceAction, SourceError, SourceProcess}

// Entry is one log line. Consecutive mirror changes to the same entity
// fold into a single entry with the latest detail.
type Entry struct {
	Time    time.Time
	Source  Source
	Change  obs.ChangeKind // mirror entries only
	Subject string
	Detail  string
	Count   int
}

// Text renders the entry without time or source.
func (e Entry) Text() string {
	parts := make([]string, 0, 3)
	if e.Change != "" {
		parts = append(parts, changeLabel(e.Change))
	}
	if e.Subject != "" {
		parts = append(parts, e.Subject)
	}
	if e.Detail != "" {
		parts = append(parts, e.Detail)
	}
	text := strings.Join(parts, " ")
	if e.Count > 1 {
		text += fmt.Sprintf(" ×%d", e.Count)
	}
	return text
}

func changeLabel(kind obs.ChangeKind) string {
	switch kind {
	case obs.ChangeState:
		return "session"
	case obs.ChangeConnection:
		return "socket"
	case obs.ChangeInputMute:
		return "mute"
	case obs.ChangeInputVolume:
		return "volume"
	case obs.ChangeSceneItem:
		return "source"
	case obs.ChangeProgramScene:
		return "program"
	case obs.ChangeStream:
		return "stream"
	default:
		return string(kind)
	}
}

// Model holds the event log.
type Model struct {
	entries []Entry
	filter  Source
	offset  int // from the bottom of the filtered view
}

// New creates an empty log.
func New() Model {
	return Model{}
}

// Record appends e, folding it into the last entry when it repeats it.
// Recording scrolls back to the bottom.
func (m *Model) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if n := len(m.entries); n > 0 && m.entries[n-1].repeatedBy(e) {
		last := &m.entries[n-1]
		last.Count++
		last.Time = e.Time
		last.Detail = e.Detail
		m.offset = 0
		return
	}

	e.Count = 1
	m.entries = append(m.entries, e)
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
	m.offset = 0
}

func (e Entry) repeatedBy(next Entry) bool {
	if e.Source != next.Source || e.Subject != next.Subject {
		return false
	}
	if e.Change != "" || next.Change != "" {
		return e.Change == next.Change && e.Change != obs.ChangeState
	}
	return e.Detail == next.Detail
}

// Change records a mirror change. subject names the entity and detail
// its new value. When neither is known the change's ID stands in.
func (m *Model) Change(c obs.Change, subject, detail string) {
	if subject == "" && detail == "" {
		subject = c.ID
	}
	m.Record(Entry{Source: SourceMirror, Change: c.Kind, Subject: subject, Detail: detail})
}

// Action records a finished user action, as an error when err is set.
func (m *Model) Action(desc string, err error) {
	if err != nil {
		m.Record(Entry{Source: SourceError, Subject: desc, Detail: err.Error()})
		return
	}
	m.Record(Entry{Source: SourceAction, Subject: desc})
}

// Note records a free-form line.
func (m *Model) Note(source Source, text string) {
	m.Record(Entry{Source: source, Detail: text})
}

// CycleFilter moves to the next source filter and returns it.
func (m *Model) CycleFilter() Source {
	for i, f := range filters {
		if f == m.filter {
			m.filter = filters[(i+1)%len(filters)]
			break
		}
	}
	m.offset = 0
	return m.filter
}

// Filter is the active source filter, empty for all.
func (m Model) Filter() Source { return m.filter }

// Entries returns the entries that pass the filter, oldest first.
func (m Model) Entries() []Entry {
	if m.filter == "" {
		return m.entries
	}
	var out []Entry
	for _, e := range m.entries {
		if e.Source == m.filter {
			out = append(out, e)
		}
	}
	return out
}

// Counts returns the number of entries per source, ignoring the filter.
func (m Model) Counts() map[Source]int {
	counts := make(map[Source]int, len(filters))
	for _, e := range m.entries {
		counts[e.Source]++
	}
	return counts
}

// Offset is the scroll position from the bottom.
func (m Model) Offset() int { return m.offset }

// ScrollUp moves the viewport up within the filtered entries.
func (m *Model) ScrollUp(n int) {
	m.offset = min(m.offset+n, max(len(m.Entries())-1, 0))
}

// ScrollDown moves the viewport down.
func (m *Model) ScrollDown(n int) {
	m.offset = max(m.offset-n, 0)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	filter := "all"
	if m.filter != "" {
		filter = string(m.filter)
	}
	title := theme.StyleHeader.Render(fmt.Sprintf(" EVENT LOG [%s] ", filter))

	counts := m.Counts()
	var tally []string
	for _, src := range filters[1:] {
		tally = append(tally, fmt.Sprintf("%s:%d", src, counts[src]))
	}
	help := theme.StyleDimmed.Render("j/k:scroll  f:filter  esc:close  " + strings.Join(tally, " "))

	entries := m.Entries()
	if len(entries) == 0 {
		body := theme.StyleDimmed.Render("  No events recorded yet.")
		return panel(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(entries)-m.offset, 0)
	start := max(end-visible, 0)
	lines := make([]string, 0, end-start)
	for _, e := range entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		src := lipgloss.NewStyle().Foreground(sourceColor(e)).Width(5).Render(string(e.Source))
		text := e.Text()
		if limit := innerW - 21; limit > 3 && len(text) > limit {
			text = text[:limit-3] + "..."
		}
		lines = append(lines, ts+" "+src+" "+text)
	}

	scroll := ""
	if m.offset > 0 {
		scroll = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.offset))
	}
	return panel(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), scroll, help))
}

func panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

func sourceColor(e Entry) lipgloss.Color {
	switch e.Source {
	case SourceError:
		return theme.ColorDanger
	case SourceAction:
		return theme.ColorConnecting
	case SourceProcess:
		return theme.ColorWarning
	}
	switch e.Change {
	case obs.ChangeState, obs.ChangeConnection:
		return theme.StateColor(e.Detail)
	case obs.ChangeProgramScene:
		return theme.ColorProgram
	case obs.ChangeInputMute, obs.ChangeInputVolume:
		return theme.ColorMeterLow
	default:
		return theme.ColorLoading
	}
}
