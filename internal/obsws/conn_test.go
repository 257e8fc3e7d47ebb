package obsws_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/obsmirror/obsmirror/internal/obsws"
	"github.com/obsmirror/obsmirror/internal/obsws/obswstest"
)

func recordEvents(c *obsws.Conn, kinds ...obsws.EventKind) <-chan obsws.Event {
	ch := make(chan obsws.Event, 32)
	for _, kind := range kinds {
		c.On(kind, func(ev obsws.Event) {
			select {
			case ch <- ev:
			default:
			}
		})
	}
	return ch
}

func nextEvent(t *testing.T, ch <-chan obsws.Event) obsws.Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return obsws.Event{}
	}
}

func connect(t *testing.T, srv *obswstest.Server, password string) *obsws.Conn {
	t.Helper()
	c := obsws.New()
	if err := c.Connect(context.Background(), srv.URL, password); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name      string
		serverPwd string
		clientPwd string
		wantErr   bool
	}{
		{name: "no auth", serverPwd: "", clientPwd: ""},
		{name: "auth ok", serverPwd: "hunter2", clientPwd: "hunter2"},
		{name: "auth rejected", serverPwd: "hunter2", clientPwd: "wrong", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := obswstest.NewServer(tt.serverPwd)
			defer srv.Close()

			c := obsws.New()
			events := recordEvents(c, obsws.EventConnectionOpened, obsws.EventConnectionClosed)
			err := c.Connect(context.Background(), srv.URL, tt.clientPwd)
			defer c.Disconnect()

			if ev := nextEvent(t, events); ev.Kind != obsws.EventConnectionOpened {
				t.Fatalf("first event = %s, want ConnectionOpened", ev.Kind)
			}

			if tt.wantErr {
				if !obsws.IsConnectionError(err) {
					t.Fatalf("err = %v, want *ConnectionError", err)
				}
				if c.Connected() {
					t.Error("Connected() = true after failed handshake")
				}
				if ev := nextEvent(t, events); ev.Kind != obsws.EventConnectionClosed {
					t.Errorf("event = %s, want ConnectionClosed", ev.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Connect: %v", err)
			}
			if !c.Connected() {
				t.Error("Connected() = false")
			}
		})
	}
}

func TestConnectDialFailure(t *testing.T) {
	srv := obswstest.NewServer("")
	url := srv.URL
	srv.Close()

	c := obsws.New()
	opened := false
	c.On(obsws.EventConnectionOpened, func(obsws.Event) { opened = true })

	err := c.Connect(context.Background(), url, "")
	var connErr *obsws.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("err = %v, want *ConnectionError", err)
	}
	if connErr.URL != url {
		t.Errorf("URL = %q, want %q", connErr.URL, url)
	}
	if opened {
		t.Error("ConnectionOpened emitted for a failed dial")
	}
}

func TestConnectTwiceIsNoop(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()

	c := connect(t, srv, "")
	if err := c.Connect(context.Background(), srv.URL, ""); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if n := srv.ClientCount(); n != 1 {
		t.Errorf("server sessions = %d, want 1", n)
	}
}

func TestCall(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	srv.Handle("GetInputMute", func(data json.RawMessage) (any, error) {
		var req struct {
			InputUUID string `json:"inputUuid"`
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return nil, err
		}
		if req.InputUUID != "mic-1" {
			return nil, &obswstest.Failure{Code: obsws.StatusResourceNotFound, Comment: "no such input"}
		}
		return map[string]any{"inputMuted": true}, nil
	})

	c := connect(t, srv, "")

	raw, err := c.Call(context.Background(), "GetInputMute", map[string]string{"inputUuid": "mic-1"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var resp struct {
		InputMuted bool `json:"inputMuted"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.InputMuted {
		t.Error("inputMuted = false, want true")
	}

	_, err = c.Call(context.Background(), "GetInputMute", map[string]string{"inputUuid": "missing"})
	var remoteErr *obsws.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remoteErr.Code != obsws.StatusResourceNotFound {
		t.Errorf("Code = %d, want %d", remoteErr.Code, obsws.StatusResourceNotFound)
	}
	if remoteErr.RequestType != "GetInputMute" {
		t.Errorf("RequestType = %q", remoteErr.RequestType)
	}
}

func TestCallUnknownRequest(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	c := connect(t, srv, "")

	_, err := c.Call(context.Background(), "NoSuchRequest", nil)
	if !obsws.IsRemoteError(err) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
}

func TestCallNotConnected(t *testing.T) {
	c := obsws.New()
	_, err := c.Call(context.Background(), "GetVersion", nil)
	if !errors.Is(err, obsws.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestCallContextCancelled(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	release := make(chan struct{})
	defer close(release)
	srv.Handle("Slow", func(json.RawMessage) (any, error) {
		<-release
		return nil, nil
	})
	c := connect(t, srv, "")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, "Slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
}

func TestCallBatch(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	srv.Handle("GetInputList", func(data json.RawMessage) (any, error) {
		var req struct {
			InputKind string `json:"inputKind"`
		}
		json.Unmarshal(data, &req)
		if req.InputKind == "broken" {
			return nil, errors.New("kind unavailable")
		}
		return map[string]any{
			"inputs": []map[string]string{{"inputUuid": req.InputKind + "-1"}},
		}, nil
	})
	c := connect(t, srv, "")

	results, err := c.CallBatch(context.Background(), []obsws.Request{
		{Type: "GetInputList", Data: map[string]string{"inputKind": "wasapi_input_capture"}},
		{Type: "GetInputList", Data: map[string]string{"inputKind": "broken"}},
		{Type: "GetInputList", Data: map[string]string{"inputKind": "coreaudio_input_capture"}},
	})
	if err != nil {
		t.Fatalf("CallBatch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Err() != nil || results[2].Err() != nil {
		t.Errorf("unexpected failures: %v, %v", results[0].Err(), results[2].Err())
	}
	if !obsws.IsRemoteError(results[1].Err()) {
		t.Errorf("results[1].Err() = %v, want *RemoteError", results[1].Err())
	}

	var list struct {
		Inputs []struct {
			InputUUID string `json:"inputUuid"`
		} `json:"inputs"`
	}
	if err := json.Unmarshal(results[2].Data, &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Inputs) != 1 || list.Inputs[0].InputUUID != "coreaudio_input_capture-1" {
		t.Errorf("results out of order: %+v", list.Inputs)
	}
	if n := srv.RequestCount("GetInputList"); n != 3 {
		t.Errorf("server saw %d GetInputList, want 3", n)
	}
}

func TestCallBatchEmpty(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	c := connect(t, srv, "")

	results, err := c.CallBatch(context.Background(), nil)
	if err != nil || results != nil {
		t.Fatalf("CallBatch(nil) = %v, %v; want nil, nil", results, err)
	}
	if n := len(srv.Requests()); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestRemoteEvents(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	c := connect(t, srv, "")
	events := recordEvents(c, obsws.EventInputMuteStateChanged)

	if err := srv.Emit("InputMuteStateChanged", map[string]any{"inputUuid": "mic-1", "inputMuted": true}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	ev := nextEvent(t, events)
	var data struct {
		InputUUID  string `json:"inputUuid"`
		InputMuted bool   `json:"inputMuted"`
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.InputUUID != "mic-1" || !data.InputMuted {
		t.Errorf("event data = %+v", data)
	}
}

func TestServerDropEmitsConnectionError(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	c := connect(t, srv, "")
	events := recordEvents(c, obsws.EventConnectionError, obsws.EventConnectionClosed)

	srv.DropClients()

	if ev := nextEvent(t, events); ev.Kind != obsws.EventConnectionError || ev.Err == nil {
		t.Fatalf("event = %+v, want ConnectionError with Err", ev)
	}
	if ev := nextEvent(t, events); ev.Kind != obsws.EventConnectionClosed {
		t.Fatalf("event = %s, want ConnectionClosed", ev.Kind)
	}
	if c.Connected() {
		t.Error("Connected() = true after drop")
	}
}

func TestServerGoingAwayIsNotAnError(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	c := connect(t, srv, "")
	events := recordEvents(c, obsws.EventConnectionError, obsws.EventConnectionClosed)

	srv.CloseClients()

	if ev := nextEvent(t, events); ev.Kind != obsws.EventConnectionClosed {
		t.Fatalf("event = %s, want ConnectionClosed", ev.Kind)
	}
}

func TestDisconnect(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	c := connect(t, srv, "")
	events := recordEvents(c, obsws.EventConnectionError, obsws.EventConnectionClosed)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
	select {
	case ev := <-events:
		if ev.Kind != obsws.EventConnectionClosed {
			t.Errorf("event = %s, want ConnectionClosed", ev.Kind)
		}
	default:
		t.Error("Disconnect returned before ConnectionClosed")
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("second Disconnect: %v", err)
	}
}

func TestPendingCallFailsOnDrop(t *testing.T) {
	srv := obswstest.NewServer("")
	defer srv.Close()
	arrived := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	srv.Handle("Slow", func(json.RawMessage) (any, error) {
		close(arrived)
		<-release
		return nil, nil
	})
	c := connect(t, srv, "")

	errc := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), "Slow", nil)
		errc <- err
	}()

	<-arrived
	srv.DropClients()

	select {
	case err := <-errc:
		if !errors.Is(err, obsws.ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call never failed")
	}
}

func TestEmitterListenerCount(t *testing.T) {
	var e obsws.Emitter
	calls := 0
	e.On(obsws.EventExitStarted, func(obsws.Event) { calls++ })
	e.On(obsws.EventExitStarted, func(obsws.Event) { calls++ })

	if n := e.ListenerCount(obsws.EventExitStarted); n != 2 {
		t.Fatalf("ListenerCount = %d, want 2", n)
	}
	e.Emit(obsws.Event{Kind: obsws.EventExitStarted})
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}

	e.RemoveAllListeners()
	if n := e.ListenerCount(obsws.EventExitStarted); n != 0 {
		t.Errorf("ListenerCount after RemoveAllListeners = %d, want 0", n)
	}
	e.Emit(obsws.Event{Kind: obsws.EventExitStarted})
	if calls != 2 {
		t.Errorf("handler ran after RemoveAllListeners")
	}
}

func TestAuthResponse(t *testing.T) {
	a := obsws.AuthResponse("secret", "salt", "challenge")
	if a != obsws.AuthResponse("secret", "salt", "challenge") {
		t.Error("AuthResponse is not deterministic")
	}
	if len(a) != 44 {
		t.Errorf("len = %d, want 44 (base64 sha256)", len(a))
	}
	if a == obsws.AuthResponse("other", "salt", "challenge") {
		t.Error("different passwords produced the same response")
	}
	if a == obsws.AuthResponse("secret", "salt", "challenge2") {
		t.Error("different challenges produced the same response")
	}
}
