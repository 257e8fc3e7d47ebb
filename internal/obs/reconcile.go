package obs

import (
	"encoding/json"
	"fmt"

	"github.com/obsmirror/obsmirror/internal/obsws"
)

// Signal is a decoded transport event. The set of implementations is
// closed; apply handles each one.
type Signal interface {
	signal()
}

// ConnectionOpened reports that the socket opened.
type ConnectionOpened struct{}

// ConnectionClosed reports that the socket closed. Err is set when it
// failed.
type ConnectionClosed struct{ Err error }

// ConnectionFailed reports a transport error. It ends the session.
type ConnectionFailed struct{ Err error }

// ExitStarted reports that OBS is shutting down. It ends the session.
type ExitStarted struct{}

// InputMuteChanged carries an InputMuteStateChanged event.
type InputMuteChanged struct {
	InputName string `json:"inputName"`
	InputUUID string `json:"inputUuid"`
	Muted     bool   `json:"inputMuted"`
}

// InputVolumeChanged carries an InputVolumeChanged event. VolumeDB is
// math.Inf(-1) when the input is silenced.
type InputVolumeChanged struct {
	InputName string
	InputUUID string
	VolumeMul float64
	VolumeDB  float64
}

func (s *InputVolumeChanged) UnmarshalJSON(data []byte) error {
	var raw struct {
		InputName string   `json:"inputName"`
		InputUUID string   `json:"inputUuid"`
		VolumeMul float64  `json:"inputVolumeMul"`
		VolumeDB  *float64 `json:"inputVolumeDb"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = InputVolumeChanged{
		InputName: raw.InputName,
		InputUUID: raw.InputUUID,
		VolumeMul: raw.VolumeMul,
		VolumeDB:  volumeDB(raw.VolumeDB, raw.VolumeMul),
	}
	return nil
}

// SceneItemEnableChanged carries a SceneItemEnableStateChanged event.
type SceneItemEnableChanged struct {
	SceneName   string `json:"sceneName"`
	SceneUUID   string `json:"sceneUuid"`
	SceneItemID int    `json:"sceneItemId"`
	Enabled     bool   `json:"sceneItemEnabled"`
}

// ProgramSceneChanged carries a CurrentProgramSceneChanged event.
type ProgramSceneChanged struct {
	SceneName string `json:"sceneName"`
	SceneUUID string `json:"sceneUuid"`
}

// StreamStateChanged carries a StreamStateChanged event.
type StreamStateChanged struct {
	Active bool   `json:"outputActive"`
	State  string `json:"outputState"`
}

func (ConnectionOpened) signal()       {}
func (ConnectionClosed) signal()       {}
func (ConnectionFailed) signal()       {}
func (ExitStarted) signal()            {}
func (InputMuteChanged) signal()       {}
func (InputVolumeChanged) signal()     {}
func (SceneItemEnableChanged) signal() {}
func (ProgramSceneChanged) signal()    {}
func (StreamStateChanged) signal()     {}

// reconciledEvents are the transport events the client listens to.
var reconciledEvents = []obsws.EventKind{
	obsws.EventConnectionOpened,
	obsws.EventConnectionClosed,
	obsws.EventConnectionError,
	obsws.EventExitStarted,
	obsws.EventInputMuteStateChanged,
	obsws.EventInputVolumeChanged,
	obsws.EventSceneItemEnableStateChanged,
	obsws.EventCurrentProgramSceneChanged,
	obsws.EventStreamStateChanged,
}

// DecodeSignal converts a transport event into a Signal.
func DecodeSignal(ev obsws.Event) (Signal, error) {
	switch ev.Kind {
	case obsws.EventConnectionOpened:
		return ConnectionOpened{}, nil
	case obsws.EventConnectionClosed:
		return ConnectionClosed{Err: ev.Err}, nil
	case obsws.EventConnectionError:
		return ConnectionFailed{Err: ev.Err}, nil
	case obsws.EventExitStarted:
		return ExitStarted{}, nil
	case obsws.EventInputMuteStateChanged:
		return decodeData[InputMuteChanged](ev)
	case obsws.EventInputVolumeChanged:
		return decodeData[InputVolumeChanged](ev)
	case obsws.EventSceneItemEnableStateChanged:
		return decodeData[SceneItemEnableChanged](ev)
	case obsws.EventCurrentProgramSceneChanged:
		return decodeData[ProgramSceneChanged](ev)
	case obsws.EventStreamStateChanged:
		return decodeData[StreamStateChanged](ev)
	default:
		return nil, fmt.Errorf("obs: unhandled event %s", ev.Kind)
	}
}

func decodeData[S Signal](ev obsws.Event) (Signal, error) {
	var s S
	if err := json.Unmarshal(ev.Data, &s); err != nil {
		return nil, fmt.Errorf("obs: decode %s: %w", ev.Kind, err)
	}
	return s, nil
}

// subscribe registers the reconciler for the session identified by
// epoch.
func (c *Client) subscribe(epoch uint64) {
	for _, kind := range reconciledEvents {
		c.transport.On(kind, func(ev obsws.Event) {
			sig, err := DecodeSignal(ev)
			if err != nil {
				c.logger.Debug("dropping event", "event", ev.Kind, "error", err)
				return
			}
			c.apply(epoch, sig)
		})
	}
}

// apply writes a signal into the mirror. Entity signals whose target is
// missing or not yet ready are dropped. Nothing here issues a request.
func (c *Client) apply(epoch uint64, sig Signal) {
	switch s := sig.(type) {
	case ConnectionOpened:
		c.open.Store(true)
		c.watchers.publish(Change{Kind: ChangeConnection})

	case ConnectionClosed:
		c.open.Store(false)
		c.watchers.publish(Change{Kind: ChangeConnection})

	case ConnectionFailed:
		c.logger.Warn("obs connection lost, tearing down session", "error", s.Err)
		// The transport delivers events on its read goroutine, which
		// Disconnect waits for.
		go c.destroyFrom(epoch)

	case ExitStarted:
		c.logger.Info("obs is exiting, tearing down session")
		go c.destroyFrom(epoch)

	case InputMuteChanged:
		input, ok := c.inputs.Get(s.InputUUID)
		if !ok || !input.Ready() {
			c.logger.Debug("dropping mute change", "input", s.InputUUID, "known", ok)
			return
		}
		input.setMuted(s.Muted)
		c.watchers.publish(Change{Kind: ChangeInputMute, ID: s.InputUUID})

	case InputVolumeChanged:
		input, ok := c.inputs.Get(s.InputUUID)
		if !ok || !input.Ready() {
			c.logger.Debug("dropping volume change", "input", s.InputUUID, "known", ok)
			return
		}
		input.setVolumeDB(s.VolumeDB)
		c.watchers.publish(Change{Kind: ChangeInputVolume, ID: s.InputUUID})

	case SceneItemEnableChanged:
		scene, ok := c.scenes.Get(s.SceneUUID)
		if !ok {
			c.logger.Debug("dropping scene item change", "scene", s.SceneUUID)
			return
		}
		item, ok := scene.ItemByID(s.SceneItemID)
		if !ok || !item.Ready() {
			c.logger.Debug("dropping scene item change", "scene", s.SceneUUID, "item", s.SceneItemID)
			return
		}
		item.setEnabled(s.Enabled)
		c.watchers.publish(Change{Kind: ChangeSceneItem, ID: item.SourceUUID})

	case ProgramSceneChanged:
		c.setProgramScene(s.SceneUUID)
		c.watchers.publish(Change{Kind: ChangeProgramScene, ID: s.SceneUUID})

	case StreamStateChanged:
		stream, ok := c.streams.Get(streamID)
		if !ok || !stream.Ready() {
			return
		}
		stream.setActive(s.Active)
		c.watchers.publish(Change{Kind: ChangeStream, ID: streamID})
	}
}
