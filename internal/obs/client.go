// Package obs keeps a local mirror of an OBS instance.
//
// A Client connects over obs-websocket, enumerates scenes, audio inputs
// and the stream output into mirrors, waits for every handle to finish
// its initial pull, and then keeps the handles current from pushed
// events. Transport failures are terminal for the session: the client
// tears itself down and the embedder decides whether to call Init again.
package obs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/obsmirror/obsmirror/internal/mirror"
	"github.com/obsmirror/obsmirror/internal/obsws"
	"github.com/obsmirror/obsmirror/internal/poll"
)

// DefaultReadyTimeout bounds the wait for the initial mirror to become
// ready.
const DefaultReadyTimeout = 30 * time.Second

// DefaultAudioInputKinds are the input kinds enumerated as audio inputs.
var DefaultAudioInputKinds = []string{
	"browser_source",
	"vlc_source",
	"audio_capture",
	"window_capture",
	"game_capture",
	"dshow_input",
	"wasapi_input_capture",
	"wasapi_output_capture",
	"wasapi_process_output_capture",
}

// State is the session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateLoading
	StateReady
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// StreamOptions controls how Start and Stop wait for the output.
type StreamOptions struct {
	// SettleDelay is slept after the start/stop request before polling.
	SettleDelay time.Duration
	Tick        time.Duration
	Timeout     time.Duration
}

// Options configures a Client.
type Options struct {
	Host     string
	Port     string
	Password string

	// ReadyTimeout bounds Init's wait for every handle to be ready.
	ReadyTimeout time.Duration
	// Poll bounds a container waiting on its children, such as a scene
	// waiting on its items. ReadyTimeout still bounds the load as a whole.
	Poll poll.Options
	// AudioInputKinds is the set of input kinds enumerated in one batch.
	AudioInputKinds []string
	Stream          StreamOptions

	Logger *slog.Logger
	// Transport replaces the obs-websocket connection, mostly for tests.
	Transport Transport
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port == "" {
		o.Port = "4455"
	}
	if o.ReadyTimeout <= 0 {
		o.ReadyTimeout = DefaultReadyTimeout
	}
	o.Poll = o.Poll.WithDefaults()
	if o.AudioInputKinds == nil {
		o.AudioInputKinds = DefaultAudioInputKinds
	}
	if o.Stream.SettleDelay <= 0 {
		o.Stream.SettleDelay = 800 * time.Millisecond
	}
	if o.Stream.Tick <= 0 {
		o.Stream.Tick = 100 * time.Millisecond
	}
	if o.Stream.Timeout <= 0 {
		o.Stream.Timeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// URL is the websocket address built from Host and Port.
func (o Options) URL() string {
	return "ws://" + net.JoinHostPort(o.Host, o.Port)
}

// Client is a session with one OBS instance. Handles returned by a
// Client hold a back-reference to it and issue their requests through
// its transport.
type Client struct {
	opts      Options
	transport Transport
	logger    *slog.Logger

	// lifecycle serialises Init and Destroy.
	lifecycle sync.Mutex
	// epoch identifies the current session for listeners registered by
	// Init, so a late signal cannot tear down a newer session.
	epoch uint64
	state atomic.Int32
	open  atomic.Bool

	// pending cancels the Init in progress. It has its own lock so
	// Destroy can reach it while Init holds lifecycle.
	pendingMu sync.Mutex
	pending   *pendingInit

	streams *mirror.Mirror[*Stream]
	scenes  *mirror.Mirror[*Scene]
	inputs  *mirror.Mirror[*AudioInput]

	programMu    sync.RWMutex
	programScene string

	watchers watchers
}

// New returns an idle client. Nothing is dialled until Init.
func New(opts Options) *Client {
	opts = opts.withDefaults()
	transport := opts.Transport
	if transport == nil {
		transport = obsws.New(obsws.WithLogger(opts.Logger))
	}
	return &Client{
		opts:      opts,
		transport: transport,
		logger:    opts.Logger,
		streams:   mirror.New[*Stream](),
		scenes:    mirror.New[*Scene](),
		inputs:    mirror.New[*AudioInput](),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) {
	prev := State(c.state.Swap(int32(s)))
	if prev != s {
		c.logger.Debug("obs session state", "from", prev, "to", s)
		c.watchers.publish(Change{Kind: ChangeState})
	}
}

// IsConnected reports whether the transport socket is open. It follows
// the transport's open/closed signals, independent of State.
func (c *Client) IsConnected() bool { return c.open.Load() }

// Init connects and loads the mirror. It is a no-op unless the client is
// idle; a call made while another Init is running waits for it and then
// returns nil. A failed connect returns the transport's
// *obsws.ConnectionError. Any failure leaves the client idle with no
// listeners registered. Init never retries.
func (c *Client) Init(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.State() != StateIdle {
		return nil
	}

	c.epoch++
	ctx, cancel := context.WithCancel(ctx)
	c.setPending(&pendingInit{epoch: c.epoch, cancel: cancel})
	defer func() {
		c.setPending(nil)
		cancel()
	}()

	c.subscribe(c.epoch)

	c.setState(StateConnecting)
	if err := c.transport.Connect(ctx, c.opts.URL(), c.opts.Password); err != nil {
		c.teardownLocked()
		return err
	}

	c.setState(StateLoading)
	if err := c.load(ctx); err != nil {
		c.teardownLocked()
		return fmt.Errorf("obs: load: %w", err)
	}

	c.setState(StateReady)
	c.logger.Info("obs mirror ready",
		"url", c.opts.URL(),
		"scenes", c.scenes.Len(),
		"audio_inputs", c.inputs.Len())
	return nil
}

// Destroy disconnects, removes every listener and empties the mirrors.
// An Init in progress is cancelled first. It is a no-op when idle and
// safe to call repeatedly.
func (c *Client) Destroy() error {
	c.abortInit(0)

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.State() == StateIdle {
		return nil
	}
	return c.teardownLocked()
}

// Reinit is Destroy followed by Init. Observers may see the idle state
// in between.
func (c *Client) Reinit(ctx context.Context) error {
	if err := c.Destroy(); err != nil {
		c.logger.Warn("obs disconnect failed", "error", err)
	}
	return c.Init(ctx)
}

// destroyFrom tears down the session identified by epoch. Signals from
// an earlier session are ignored.
func (c *Client) destroyFrom(epoch uint64) {
	c.abortInit(epoch)

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.epoch != epoch || c.State() == StateIdle {
		return
	}
	if err := c.teardownLocked(); err != nil {
		c.logger.Debug("obs teardown", "error", err)
	}
}

type pendingInit struct {
	epoch  uint64
	cancel context.CancelFunc
}

func (c *Client) setPending(p *pendingInit) {
	c.pendingMu.Lock()
	c.pending = p
	c.pendingMu.Unlock()
}

// abortInit cancels the Init in progress. A non-zero epoch limits it to
// that session's Init.
func (c *Client) abortInit(epoch uint64) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	if c.pending != nil && (epoch == 0 || c.pending.epoch == epoch) {
		c.pending.cancel()
	}
}

func (c *Client) teardownLocked() error {
	c.setState(StateClosing)
	err := c.transport.Disconnect()
	c.transport.RemoveAllListeners()

	c.streams.Reset()
	c.scenes.Reset()
	c.inputs.Reset()
	c.setProgramScene("")

	c.open.Store(false)
	c.setState(StateIdle)
	return err
}

func (c *Client) requireReady() error {
	if c.State() != StateReady {
		return ErrNotReady
	}
	return nil
}

// call issues a request regardless of state and decodes the response
// into out when out is non-nil. Handles use it during Init.
func (c *Client) call(ctx context.Context, requestType string, data, out any) error {
	raw, err := c.transport.Call(ctx, requestType, data)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", requestType, err)
	}
	return nil
}

// request is call gated on the client being ready.
func (c *Client) request(ctx context.Context, requestType string, data, out any) error {
	if err := c.requireReady(); err != nil {
		return err
	}
	return c.call(ctx, requestType, data, out)
}

func (c *Client) readyPoll() poll.Options {
	return poll.Options{Tick: c.opts.Poll.Tick, Timeout: c.opts.ReadyTimeout}
}

// Stream returns the stream output handle.
func (c *Client) Stream() (*Stream, bool) {
	return c.streams.Get(streamID)
}

// Scenes returns every mirrored scene sorted by uuid.
func (c *Client) Scenes() []*Scene { return c.scenes.Values() }

// ScenesByIndex returns every mirrored scene in the order the OBS scene
// list shows them, highest sceneIndex first.
func (c *Client) ScenesByIndex() []*Scene {
	scenes := c.scenes.Values()
	sort.SliceStable(scenes, func(i, j int) bool { return scenes[i].Index > scenes[j].Index })
	return scenes
}

// Scene returns the scene with the given uuid.
func (c *Client) Scene(uuid string) (*Scene, bool) { return c.scenes.Get(uuid) }

// SceneByName returns the first scene with the given name.
func (c *Client) SceneByName(name string) (*Scene, bool) {
	return c.scenes.Find(func(s *Scene) bool { return s.Name == name })
}

// AudioInputs returns every mirrored audio input sorted by uuid.
func (c *Client) AudioInputs() []*AudioInput { return c.inputs.Values() }

// AudioInput returns the audio input with the given uuid.
func (c *Client) AudioInput(uuid string) (*AudioInput, bool) { return c.inputs.Get(uuid) }

// ProgramSceneUUID returns the program scene as last loaded or pushed.
func (c *Client) ProgramSceneUUID() string {
	c.programMu.RLock()
	defer c.programMu.RUnlock()
	return c.programScene
}

func (c *Client) setProgramScene(uuid string) {
	c.programMu.Lock()
	c.programScene = uuid
	c.programMu.Unlock()
}

// CurrentProgramScene asks OBS for the program scene. The mirrored handle
// is returned when known; otherwise a detached scene is built and
// initialised.
func (c *Client) CurrentProgramScene(ctx context.Context) (*Scene, error) {
	var resp struct {
		SceneName string `json:"sceneName"`
		SceneUUID string `json:"sceneUuid"`
		// Older servers only send the deprecated field names.
		CurrentName string `json:"currentProgramSceneName"`
		CurrentUUID string `json:"currentProgramSceneUuid"`
	}
	if err := c.request(ctx, "GetCurrentProgramScene", nil, &resp); err != nil {
		return nil, err
	}
	info := sceneInfo{Name: resp.SceneName, UUID: resp.SceneUUID}
	if info.UUID == "" {
		info = sceneInfo{Name: resp.CurrentName, UUID: resp.CurrentUUID}
	}
	if s, ok := c.scenes.Get(info.UUID); ok {
		return s, nil
	}
	s := newScene(c, info)
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
