package obs

import (
	"context"
	"math"
	"sync"

	"github.com/obsmirror/obsmirror/internal/mirror"
)

type inputInfo struct {
	Name            string `json:"inputName"`
	UUID            string `json:"inputUuid"`
	Kind            string `json:"inputKind"`
	UnversionedKind string `json:"unversionedInputKind"`
}

// AudioInput is an input whose mute state and volume are mirrored.
type AudioInput struct {
	mirror.Readiness
	client *Client

	UUID            string
	Name            string
	Kind            string
	UnversionedKind string

	mu       sync.RWMutex
	muted    bool
	volumeDB float64
}

func newAudioInput(c *Client, info inputInfo) *AudioInput {
	return &AudioInput{
		client:          c,
		UUID:            info.UUID,
		Name:            info.Name,
		Kind:            info.Kind,
		UnversionedKind: info.UnversionedKind,
	}
}

func (a *AudioInput) ID() string { return a.UUID }

// Init pulls mute state and volume.
func (a *AudioInput) Init(ctx context.Context) error {
	muted, err := a.fetchMute(ctx)
	if err != nil {
		return err
	}
	db, err := a.fetchVolume(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.muted = muted
	a.volumeDB = db
	a.mu.Unlock()
	a.MarkReady()
	return nil
}

// Muted is the cached mute state.
func (a *AudioInput) Muted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.muted
}

// VolumeDB is the cached volume in dB, math.Inf(-1) when silenced.
func (a *AudioInput) VolumeDB() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.volumeDB
}

func (a *AudioInput) setMuted(muted bool) {
	a.mu.Lock()
	a.muted = muted
	a.mu.Unlock()
}

func (a *AudioInput) setVolumeDB(db float64) {
	a.mu.Lock()
	a.volumeDB = db
	a.mu.Unlock()
}

func (a *AudioInput) params() map[string]any {
	return map[string]any{"inputUuid": a.UUID}
}

type muteResponse struct {
	Muted bool `json:"inputMuted"`
}

type volumeResponse struct {
	VolumeMul float64  `json:"inputVolumeMul"`
	VolumeDB  *float64 `json:"inputVolumeDb"`
}

// volumeDB resolves the level OBS reported. OBS writes -inf dB as null,
// so a missing dB falls back to the multiplier, and a zero multiplier is
// silence.
func volumeDB(db *float64, mul float64) float64 {
	if db != nil {
		return *db
	}
	if mul <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mul)
}

func (a *AudioInput) fetchMute(ctx context.Context) (bool, error) {
	var resp muteResponse
	err := a.client.call(ctx, "GetInputMute", a.params(), &resp)
	return resp.Muted, err
}

func (a *AudioInput) fetchVolume(ctx context.Context) (float64, error) {
	var resp volumeResponse
	if err := a.client.call(ctx, "GetInputVolume", a.params(), &resp); err != nil {
		return 0, err
	}
	return volumeDB(resp.VolumeDB, resp.VolumeMul), nil
}

// IsMuted asks OBS for the mute state.
func (a *AudioInput) IsMuted(ctx context.Context) (bool, error) {
	if err := a.client.requireReady(); err != nil {
		return false, err
	}
	return a.fetchMute(ctx)
}

// ToggleMute flips the mute state and returns the new one.
func (a *AudioInput) ToggleMute(ctx context.Context) (bool, error) {
	var resp muteResponse
	err := a.client.request(ctx, "ToggleInputMute", a.params(), &resp)
	return resp.Muted, err
}

// SetMute sets the mute state.
func (a *AudioInput) SetMute(ctx context.Context, muted bool) error {
	params := a.params()
	params["inputMuted"] = muted
	return a.client.request(ctx, "SetInputMute", params, nil)
}

// Volume asks OBS for the volume in dB. Silence is math.Inf(-1).
func (a *AudioInput) Volume(ctx context.Context) (float64, error) {
	if err := a.client.requireReady(); err != nil {
		return 0, err
	}
	return a.fetchVolume(ctx)
}

// SetVolume sets the volume in dB and returns the value sent.
func (a *AudioInput) SetVolume(ctx context.Context, db float64) (float64, error) {
	params := a.params()
	params["inputVolumeDb"] = db
	if err := a.client.request(ctx, "SetInputVolume", params, nil); err != nil {
		return 0, err
	}
	return db, nil
}
