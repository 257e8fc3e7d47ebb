package obs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/obsmirror/obsmirror/internal/obsws"
	"github.com/obsmirror/obsmirror/internal/poll"
)

type responder func(params map[string]any) (any, error)

// fakeTransport answers requests from responders and lets tests emit
// events synchronously.
type fakeTransport struct {
	obsws.Emitter

	mu         sync.Mutex
	responders map[string]responder
	calls      []string
	batches    int
	connects   int
	connectErr error
	open       bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responders: make(map[string]responder)}
}

func (f *fakeTransport) handle(requestType string, fn responder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responders[requestType] = fn
}

func (f *fakeTransport) value(requestType string, v any) {
	f.handle(requestType, func(map[string]any) (any, error) { return v, nil })
}

func (f *fakeTransport) Connect(ctx context.Context, url, password string) error {
	f.mu.Lock()
	f.connects++
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return &obsws.ConnectionError{URL: url, Err: err}
	}
	if f.open {
		f.mu.Unlock()
		return nil
	}
	f.open = true
	f.mu.Unlock()

	f.Emit(obsws.Event{Kind: obsws.EventConnectionOpened})
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	wasOpen := f.open
	f.open = false
	f.mu.Unlock()

	if wasOpen {
		f.Emit(obsws.Event{Kind: obsws.EventConnectionClosed})
	}
	return nil
}

func (f *fakeTransport) respond(requestType string, data any) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, requestType)
	fn, ok := f.responders[requestType]
	open := f.open
	f.mu.Unlock()

	if !open {
		return nil, obsws.ErrNotConnected
	}
	if !ok {
		return nil, &obsws.RemoteError{RequestType: requestType, Code: 204, Comment: "unknown request type"}
	}

	params := map[string]any{}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, err
		}
	}

	out, err := fn(params)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	return json.Marshal(out)
}

func (f *fakeTransport) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	return f.respond(requestType, data)
}

func (f *fakeTransport) CallBatch(ctx context.Context, requests []obsws.Request) ([]obsws.Response, error) {
	if len(requests) == 0 {
		return nil, nil
	}
	f.mu.Lock()
	f.batches++
	f.mu.Unlock()

	results := make([]obsws.Response, len(requests))
	for i, r := range requests {
		raw, err := f.respond(r.Type, r.Data)
		results[i] = obsws.Response{Type: r.Type, Data: raw, Status: obsws.RequestStatus{Result: true, Code: obsws.StatusSuccess}}
		if err != nil {
			var remoteErr *obsws.RemoteError
			if !errors.As(err, &remoteErr) {
				return nil, err
			}
			results[i].Status = obsws.RequestStatus{Code: remoteErr.Code, Comment: remoteErr.Comment}
		}
	}
	return results, nil
}

func (f *fakeTransport) callCount(requestType string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == requestType {
			n++
		}
	}
	return n
}

func (f *fakeTransport) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeTransport) emit(kind obsws.EventKind, data any) {
	raw, _ := json.Marshal(data)
	f.Emit(obsws.Event{Kind: kind, Data: raw})
}

func str(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

// fixture is a small OBS setup: two scenes, one with two items, and two
// audio inputs found in different input kinds.
func fixture(f *fakeTransport) {
	f.value("GetStreamStatus", map[string]any{"outputActive": false})
	f.value("GetSceneList", map[string]any{
		"currentProgramSceneUuid": "scene-a",
		"scenes": []map[string]any{
			{"sceneName": "BRB", "sceneUuid": "scene-b", "sceneIndex": 0},
			{"sceneName": "Main", "sceneUuid": "scene-a", "sceneIndex": 1},
		},
	})
	f.handle("GetSceneItemList", func(params map[string]any) (any, error) {
		switch str(params, "sceneUuid") {
		case "scene-a":
			return map[string]any{"sceneItems": []map[string]any{
				{"sceneItemId": 1, "sourceUuid": "cam", "sourceName": "Camera", "sceneItemEnabled": true},
				{"sceneItemId": 2, "sourceUuid": "overlay", "sourceName": "Overlay", "sceneItemEnabled": false},
			}}, nil
		case "scene-b":
			return map[string]any{"sceneItems": []map[string]any{}}, nil
		}
		return nil, &obsws.RemoteError{RequestType: "GetSceneItemList", Code: obsws.StatusResourceNotFound}
	})
	f.handle("GetInputList", func(params map[string]any) (any, error) {
		switch str(params, "inputKind") {
		case "wasapi_input_capture":
			return map[string]any{"inputs": []map[string]any{
				{"inputUuid": "mic", "inputName": "Mic", "inputKind": "wasapi_input_capture"},
			}}, nil
		case "wasapi_output_capture":
			return map[string]any{"inputs": []map[string]any{
				{"inputUuid": "desktop", "inputName": "Desktop Audio", "inputKind": "wasapi_output_capture"},
			}}, nil
		}
		return map[string]any{"inputs": []map[string]any{}}, nil
	})
	f.handle("GetInputMute", func(params map[string]any) (any, error) {
		return map[string]any{"inputMuted": str(params, "inputUuid") == "desktop"}, nil
	})
	f.value("GetInputVolume", map[string]any{"inputVolumeMul": 0.5, "inputVolumeDb": -6.0})
}

func testOptions(f *fakeTransport) Options {
	return Options{
		ReadyTimeout: 2 * time.Second,
		Poll:         poll.Options{Tick: 5 * time.Millisecond, Timeout: time.Second},
		Stream: StreamOptions{
			SettleDelay: 10 * time.Millisecond,
			Tick:        5 * time.Millisecond,
			Timeout:     500 * time.Millisecond,
		},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Transport: f,
	}
}

func newTestClient(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	f := newFakeTransport()
	fixture(f)
	return New(testOptions(f)), f
}

func initClient(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	c, f := newTestClient(t)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { c.Destroy() })
	return c, f
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	err := poll.WaitFor(context.Background(), poll.Flag(cond), poll.Options{Tick: 5 * time.Millisecond, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("%s: %v", what, err)
	}
}
