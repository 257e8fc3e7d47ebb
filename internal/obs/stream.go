package obs

import (
	"context"
	"fmt"
	"sync"

	"github.com/obsmirror/obsmirror/internal/mirror"
	"github.com/obsmirror/obsmirror/internal/poll"
)

const streamID = "stream"

// StreamStatus is the GetStreamStatus response.
type StreamStatus struct {
	Active        bool    `json:"outputActive" yaml:"active"`
	Reconnecting  bool    `json:"outputReconnecting" yaml:"reconnecting"`
	Timecode      string  `json:"outputTimecode" yaml:"timecode"`
	DurationMs    int64   `json:"outputDuration" yaml:"duration_ms"`
	Congestion    float64 `json:"outputCongestion" yaml:"congestion"`
	Bytes         int64   `json:"outputBytes" yaml:"bytes"`
	SkippedFrames int64   `json:"outputSkippedFrames" yaml:"skipped_frames"`
	TotalFrames   int64   `json:"outputTotalFrames" yaml:"total_frames"`
}

// Stream is the single stream output.
type Stream struct {
	mirror.Readiness
	client *Client

	mu     sync.RWMutex
	active bool
}

func newStream(c *Client) *Stream {
	return &Stream{client: c}
}

func (s *Stream) ID() string { return streamID }

// Init pulls the output state.
func (s *Stream) Init(ctx context.Context) error {
	status, err := s.status(ctx)
	if err != nil {
		return err
	}
	s.setActive(status.Active)
	s.MarkReady()
	return nil
}

// Active is the cached output state.
func (s *Stream) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Stream) setActive(active bool) {
	s.mu.Lock()
	s.active = active
	s.mu.Unlock()
}

func (s *Stream) status(ctx context.Context) (StreamStatus, error) {
	var status StreamStatus
	err := s.client.call(ctx, "GetStreamStatus", nil, &status)
	return status, err
}

// Status asks OBS for the output status.
func (s *Stream) Status(ctx context.Context) (StreamStatus, error) {
	if err := s.client.requireReady(); err != nil {
		return StreamStatus{}, err
	}
	return s.status(ctx)
}

// ActiveStatus asks OBS whether the output is live.
func (s *Stream) ActiveStatus(ctx context.Context) (bool, error) {
	status, err := s.Status(ctx)
	return status.Active, err
}

type streamServiceSettings struct {
	Type     string `json:"streamServiceType"`
	Settings struct {
		BandwidthTest bool `json:"bwtest"`
	} `json:"streamServiceSettings"`
}

// BandwidthTestActive reports whether the service is in bandwidth test
// mode.
func (s *Stream) BandwidthTestActive(ctx context.Context) (bool, error) {
	var resp streamServiceSettings
	if err := s.client.request(ctx, "GetStreamServiceSettings", nil, &resp); err != nil {
		return false, err
	}
	return resp.Settings.BandwidthTest, nil
}

// ToggleBandwidthTest flips bandwidth test mode on the rtmp_common
// service.
func (s *Stream) ToggleBandwidthTest(ctx context.Context) error {
	active, err := s.BandwidthTestActive(ctx)
	if err != nil {
		return err
	}
	return s.client.request(ctx, "SetStreamServiceSettings", map[string]any{
		"streamServiceType":     "rtmp_common",
		"streamServiceSettings": map[string]bool{"bwtest": !active},
	}, nil)
}

// Start starts streaming and waits until OBS reports the output live.
// It does nothing if the handle is not ready or already active.
func (s *Stream) Start(ctx context.Context) error {
	return s.transition(ctx, "StartStream", true)
}

// Stop stops streaming and waits until OBS reports the output down.
// It does nothing if the handle is not ready or already inactive.
func (s *Stream) Stop(ctx context.Context) error {
	return s.transition(ctx, "StopStream", false)
}

func (s *Stream) transition(ctx context.Context, requestType string, want bool) error {
	if !s.Ready() || s.Active() == want {
		return nil
	}
	if err := s.client.request(ctx, requestType, nil, nil); err != nil {
		return err
	}

	opts := s.client.opts.Stream
	if err := poll.Sleep(ctx, opts.SettleDelay); err != nil {
		return err
	}
	err := poll.WaitFor(ctx, func(ctx context.Context) (bool, error) {
		status, err := s.status(ctx)
		return status.Active == want, err
	}, poll.Options{Tick: opts.Tick, Timeout: opts.Timeout})
	if err != nil {
		return fmt.Errorf("%s: %w", requestType, err)
	}

	s.setActive(want)
	s.client.watchers.publish(Change{Kind: ChangeStream, ID: streamID})
	return nil
}
