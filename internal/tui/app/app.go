package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/obsmirror/obsmirror/internal/obs"
	"github.com/obsmirror/obsmirror/internal/obsproc"
	"github.com/obsmirror/obsmirror/internal/tui/theme"
	"github.com/obsmirror/obsmirror/internal/tui/views/debug"
	"github.com/obsmirror/obsmirror/internal/tui/views/help"
	"github.com/obsmirror/obsmirror/internal/tui/views/mixer"
	"github.com/obsmirror/obsmirror/internal/tui/views/scenes"
	"github.com/obsmirror/obsmirror/internal/tui/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
)

// Pane identifies which panel receives navigation keys.
type Pane int

const (
	PaneMixer Pane = iota
	PaneScenes
	PaneItems
	paneCount
)

// OBS accepts input volumes in this range.
const (
	minVolumeDB = -100.0
	maxVolumeDB = 26.0
)

const (
	watchBuffer   = 64
	probeInterval = 5 * time.Second
)

// Messages.
type (
	// InitDoneMsg carries the result of Init or Reinit.
	InitDoneMsg struct{ Err error }
	// ChangeMsg is one change read from the client's watch channel.
	ChangeMsg struct{ Change obs.Change }
	// ActionDoneMsg reports a user action that finished.
	ActionDoneMsg struct {
		Desc string
		Err  error
	}
	// ProbeMsg carries the local OBS process probe result.
	ProbeMsg struct {
		Running bool
		Err     error
	}
	// FrameMsg advances the meter animation.
	FrameMsg time.Time

	refreshMsg   time.Time
	probeTickMsg time.Time
)

// Options tune the TUI.
type Options struct {
	VolumeStep      float64
	RefreshInterval time.Duration
}

// Model is the root Bubble Tea model.
type Model struct {
	client    *obs.Client
	changes   <-chan obs.Change
	stopWatch func()
	ctx       context.Context
	cancel    context.CancelFunc
	opts      Options

	keys    KeyMap
	width   int
	height  int
	overlay Overlay
	pane    Pane

	snap      obs.Snapshot
	busy      bool
	animating bool

	statusBar status.Model
	mixer     mixer.Model
	scenes    scenes.Model
	debug     debug.Model
}

// New creates the root model. A nil client gives an inert model.
func New(client *obs.Client, url string, opts Options) Model {
	if opts.VolumeStep <= 0 {
		opts.VolumeStep = 1
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 250 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		client:    client,
		ctx:       ctx,
		cancel:    cancel,
		opts:      opts,
		keys:      DefaultKeyMap(),
		statusBar: status.New(url),
		mixer:     mixer.New(),
		scenes:    scenes.New(),
		debug:     debug.New(),
		stopWatch: func() {},
	}
	if client != nil {
		m.changes, m.stopWatch = client.Watch(watchBuffer)
	}
	m.syncFocus()
	return m
}

// Init connects to OBS and starts the watch, refresh and probe loops.
func (m Model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return tea.Batch(
		m.connect(false),
		m.waitChange(),
		m.refreshTick(),
		probe(m.ctx),
	)
}

// Close stops the watch subscription and cancels pending actions.
func (m Model) Close() {
	m.stopWatch()
	m.cancel()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.mixer.Width = msg.Width
		m.scenes.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case InitDoneMsg:
		m.busy = false
		if msg.Err != nil {
			m.debug.Action("init", msg.Err)
		} else {
			m.debug.Note(debug.SourceMirror, "mirror ready")
		}
		cmd := m.refresh()
		return m, cmd

	case ChangeMsg:
		cmd := m.refresh()
		subject, detail := m.describe(msg.Change)
		m.debug.Change(msg.Change, subject, detail)
		return m, tea.Batch(cmd, m.waitChange())

	case refreshMsg:
		cmd := m.refresh()
		return m, tea.Batch(cmd, m.refreshTick())

	case FrameMsg:
		if m.mixer.Animate() {
			return m, frame()
		}
		m.animating = false
		return m, nil

	case ActionDoneMsg:
		m.debug.Action(msg.Desc, msg.Err)
		return m, nil

	case ProbeMsg:
		if msg.Err != nil {
			m.debug.Note(debug.SourceProcess, "process check: "+msg.Err.Error())
			return m, m.probeTick()
		}
		running := msg.Running
		m.statusBar.OBSRunning = &running
		return m, m.probeTick()

	case probeTickMsg:
		return m, probe(m.ctx)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.Close()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.debug.ScrollUp(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.debug.ScrollDown(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Filter):
			m.debug.CycleFilter()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		m.move(1)
	case key.Matches(msg, m.keys.Up):
		m.move(-1)
	case key.Matches(msg, m.keys.Tab):
		m.pane = (m.pane + 1) % paneCount
		m.syncFocus()
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
	case key.Matches(msg, m.keys.Reconnect):
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.debug.Action("reconnect", nil)
		return m, m.connect(true)
	case key.Matches(msg, m.keys.Mute):
		return m, m.toggleMute()
	case key.Matches(msg, m.keys.VolumeUp):
		return m, m.nudgeVolume(m.opts.VolumeStep)
	case key.Matches(msg, m.keys.VolumeDown):
		return m, m.nudgeVolume(-m.opts.VolumeStep)
	case key.Matches(msg, m.keys.Enter):
		return m, m.activate()
	case key.Matches(msg, m.keys.Stream):
		return m, m.toggleStream()
	}
	return m, nil
}

func (m *Model) move(delta int) {
	if m.pane == PaneMixer {
		m.mixer.Move(delta)
		return
	}
	m.scenes.Move(delta)
}

func (m *Model) syncFocus() {
	m.mixer.Focused = m.pane == PaneMixer
	m.scenes.FocusScenes = m.pane == PaneScenes
	m.scenes.FocusItems = m.pane == PaneItems
}

// apply copies a snapshot into the sub-views.
func (m *Model) apply(snap obs.Snapshot) {
	m.snap = snap
	m.statusBar.State = snap.State
	m.statusBar.Connected = snap.Connected
	m.statusBar.Streaming = snap.Streaming
	m.statusBar.ProgramScene = ""
	for _, s := range snap.Scenes {
		if s.UUID == snap.ProgramScene {
			m.statusBar.ProgramScene = s.Name
			break
		}
	}
	m.mixer.SetInputs(snap.AudioInputs)
	m.scenes.SetScenes(snap.Scenes, snap.ProgramScene)
}

// refresh reads the client's cached state. It never issues requests.
func (m *Model) refresh() tea.Cmd {
	if m.client == nil {
		return nil
	}
	m.apply(m.client.Snapshot())
	if m.animating {
		return nil
	}
	m.animating = true
	return frame()
}

// describe names the entity a change touched and its new value, read
// from the snapshot the change was just applied to.
func (m Model) describe(c obs.Change) (subject, detail string) {
	switch c.Kind {
	case obs.ChangeState:
		return "", m.snap.State
	case obs.ChangeConnection:
		if m.snap.Connected {
			return "", "open"
		}
		return "", "closed"
	case obs.ChangeStream:
		if m.snap.Streaming {
			return "", "live"
		}
		return "", "offline"
	case obs.ChangeProgramScene:
		for _, s := range m.snap.Scenes {
			if s.UUID == c.ID {
				return s.Name, ""
			}
		}
	case obs.ChangeInputMute, obs.ChangeInputVolume:
		for _, in := range m.snap.AudioInputs {
			if in.UUID != c.ID {
				continue
			}
			if c.Kind == obs.ChangeInputMute {
				if in.Muted {
					return in.Name, "muted"
				}
				return in.Name, "unmuted"
			}
			if math.IsInf(in.VolumeDB, -1) {
				return in.Name, "silent"
			}
			return in.Name, fmt.Sprintf("%.1f dB", in.VolumeDB)
		}
	case obs.ChangeSceneItem:
		for _, s := range m.snap.Scenes {
			for _, item := range s.Items {
				if item.SourceUUID != c.ID {
					continue
				}
				if item.Enabled {
					return item.SourceName, "shown in " + s.Name
				}
				return item.SourceName, "hidden in " + s.Name
			}
		}
	}
	return "", ""
}

func (m Model) connect(reinit bool) tea.Cmd {
	client, ctx := m.client, m.ctx
	if client == nil {
		return nil
	}
	return func() tea.Msg {
		if reinit {
			return InitDoneMsg{Err: client.Reinit(ctx)}
		}
		return InitDoneMsg{Err: client.Init(ctx)}
	}
}

func (m Model) waitChange() tea.Cmd {
	ch := m.changes
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		change, ok := <-ch
		if !ok {
			return nil
		}
		return ChangeMsg{Change: change}
	}
}

func (m Model) refreshTick() tea.Cmd {
	return tea.Tick(m.opts.RefreshInterval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m Model) probeTick() tea.Cmd {
	return tea.Tick(probeInterval, func(t time.Time) tea.Msg { return probeTickMsg(t) })
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/mixer.FPS, func(t time.Time) tea.Msg { return FrameMsg(t) })
}

func probe(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		running, err := obsproc.Running(ctx)
		return ProbeMsg{Running: running, Err: err}
	}
}

// action runs fn against the client off the update loop.
func (m Model) action(desc string, fn func(ctx context.Context, c *obs.Client) error) tea.Cmd {
	client, ctx := m.client, m.ctx
	if client == nil {
		return nil
	}
	return func() tea.Msg {
		return ActionDoneMsg{Desc: desc, Err: fn(ctx, client)}
	}
}

func (m Model) toggleMute() tea.Cmd {
	ch, ok := m.mixer.Current()
	if m.pane != PaneMixer || !ok {
		return nil
	}
	return m.action("toggle mute "+ch.Name, func(ctx context.Context, c *obs.Client) error {
		input, ok := c.AudioInput(ch.UUID)
		if !ok {
			return obs.ErrNotReady
		}
		_, err := input.ToggleMute(ctx)
		return err
	})
}

// NextVolume returns db moved by step and clamped to what OBS accepts.
func NextVolume(db, step float64) float64 {
	if math.IsInf(db, -1) || math.IsNaN(db) {
		db = minVolumeDB
	}
	return math.Min(math.Max(db+step, minVolumeDB), maxVolumeDB)
}

func (m Model) nudgeVolume(step float64) tea.Cmd {
	ch, ok := m.mixer.Current()
	if m.pane != PaneMixer || !ok {
		return nil
	}
	target := NextVolume(ch.VolumeDB, step)
	desc := fmt.Sprintf("volume %s %.1f dB", ch.Name, target)
	return m.action(desc, func(ctx context.Context, c *obs.Client) error {
		input, ok := c.AudioInput(ch.UUID)
		if !ok {
			return obs.ErrNotReady
		}
		_, err := input.SetVolume(ctx, target)
		return err
	})
}

func (m Model) activate() tea.Cmd {
	switch m.pane {
	case PaneScenes:
		scene, ok := m.scenes.CurrentScene()
		if !ok {
			return nil
		}
		return m.action("switch to "+scene.Name, func(ctx context.Context, c *obs.Client) error {
			s, ok := c.Scene(scene.UUID)
			if !ok {
				return obs.ErrNotReady
			}
			return s.SetCurrent(ctx)
		})
	case PaneItems:
		scene, ok := m.scenes.CurrentScene()
		item, itemOK := m.scenes.CurrentItem()
		if !ok || !itemOK {
			return nil
		}
		return m.action("toggle "+item.SourceName, func(ctx context.Context, c *obs.Client) error {
			s, ok := c.Scene(scene.UUID)
			if !ok {
				return obs.ErrNotReady
			}
			it, ok := s.Item(item.SourceUUID)
			if !ok {
				return obs.ErrNotReady
			}
			return it.Toggle(ctx)
		})
	}
	return nil
}

func (m Model) toggleStream() tea.Cmd {
	desc := "start stream"
	if m.snap.Streaming {
		desc = "stop stream"
	}
	return m.action(desc, func(ctx context.Context, c *obs.Client) error {
		stream, ok := c.Stream()
		if !ok {
			return obs.ErrNotReady
		}
		if stream.Active() {
			return stream.Stop(ctx)
		}
		return stream.Start(ctx)
	})
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDebug:
		return m.debug.View(m.width, m.height)
	case OverlayHelp:
		return help.View(m.width)
	}

	sections := []string{m.statusBar.View()}
	if m.snap.State != obs.StateReady.String() {
		sections = append(sections, m.renderOffline())
	} else {
		sections = append(sections, m.mixer.View(), m.scenes.View())
	}
	sections = append(sections,
		theme.StyleDimmed.Render("  j/k:navigate  tab:pane  m:mute  +/-:volume  enter:select  s:stream  r:reconnect  d:debug  ?:help  q:quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderOffline() string {
	state := m.snap.State
	if state == "" {
		state = obs.StateIdle.String()
	}
	msg := "NOT CONNECTED"
	hint := "Press r to connect"
	switch state {
	case obs.StateConnecting.String():
		msg, hint = "CONNECTING", "Opening websocket"
	case obs.StateLoading.String():
		msg, hint = "LOADING", "Building mirror"
	case obs.StateClosing.String():
		msg, hint = "CLOSING", "Tearing down session"
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		lipgloss.NewStyle().Bold(true).Foreground(theme.StateColor(state)).Render(msg),
		theme.StyleDimmed.Render(hint),
	)
	return lipgloss.NewStyle().
		Width(max(m.width-4, 20)).
		Padding(1, 2).
		Align(lipgloss.Center).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(body)
}
