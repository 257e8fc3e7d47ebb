package obsws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 10 * time.Second
	closeGracePeriod = time.Second
)

// Conn is one obs-websocket session. It multiplexes requests over the
// socket by requestId and fans remote events out through its Emitter.
//
// Connect and Disconnect must not be called concurrently with each
// other. Call and CallBatch are safe for concurrent use.
type Conn struct {
	Emitter

	dialer        *websocket.Dialer
	subscriptions EventSubscription
	logger        *slog.Logger

	mu      sync.Mutex
	ws      *websocket.Conn
	pending map[string]chan json.RawMessage
	done    chan struct{}
	closing bool

	writeMu sync.Mutex // serialises all data frame writes
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conn) { c.logger = logger }
}

// WithSubscriptions sets the Identify event subscription mask. Defaults
// to SubscribeAll.
func WithSubscriptions(mask EventSubscription) Option {
	return func(c *Conn) { c.subscriptions = mask }
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Conn) { c.dialer = dialer }
}

// New returns a disconnected Conn.
func New(opts ...Option) *Conn {
	c := &Conn{
		dialer:        websocket.DefaultDialer,
		subscriptions: SubscribeAll,
		logger:        slog.Default(),
		pending:       make(map[string]chan json.RawMessage),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials url, emits ConnectionOpened once the socket is up, and
// completes the Hello/Identify handshake. Connecting an open Conn is a
// no-op. Every failure is a *ConnectionError.
func (c *Conn) Connect(ctx context.Context, url, password string) error {
	c.mu.Lock()
	open := c.ws != nil
	c.mu.Unlock()
	if open {
		return nil
	}

	ws, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return &ConnectionError{URL: url, Err: err}
	}
	c.Emit(Event{Kind: EventConnectionOpened})

	if err := c.handshake(ctx, ws, password); err != nil {
		ws.Close()
		c.Emit(Event{Kind: EventConnectionClosed, Err: err})
		return &ConnectionError{URL: url, Err: err}
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.ws = ws
	c.done = done
	c.closing = false
	c.pending = make(map[string]chan json.RawMessage)
	c.mu.Unlock()

	c.logger.Debug("obs session identified", "url", url)
	go c.readLoop(ws, done)
	return nil
}

func (c *Conn) handshake(ctx context.Context, ws *websocket.Conn, password string) error {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ws.SetReadDeadline(deadline)
	ws.SetWriteDeadline(deadline)
	defer ws.SetReadDeadline(time.Time{})
	defer ws.SetWriteDeadline(time.Time{})

	var hello HelloPayload
	if err := readOp(ws, OpHello, &hello); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	identify := IdentifyPayload{
		RPCVersion:         RPCVersion,
		EventSubscriptions: c.subscriptions,
	}
	if hello.Authentication != nil {
		identify.Authentication = AuthResponse(password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	if err := writeOp(ws, OpIdentify, identify); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	var identified IdentifiedPayload
	if err := readOp(ws, OpIdentified, &identified); err != nil {
		return fmt.Errorf("identified: %w", err)
	}
	return nil
}

func readOp(ws *websocket.Conn, op OpCode, out any) error {
	var msg Message
	if err := ws.ReadJSON(&msg); err != nil {
		return err
	}
	if msg.Op != op {
		return fmt.Errorf("%w: op %d, want %d", ErrUnexpectedMessage, msg.Op, op)
	}
	return json.Unmarshal(msg.Data, out)
}

func writeOp(ws *websocket.Conn, op OpCode, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return ws.WriteJSON(Message{Op: op, Data: data})
}

// readLoop owns ws until it fails. It emits ConnectionError when the
// socket dies on its own and ConnectionClosed in every case.
func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			pending := c.pending
			c.pending = make(map[string]chan json.RawMessage)
			if c.ws == ws {
				c.ws = nil
			}
			c.mu.Unlock()

			for _, ch := range pending {
				close(ch)
			}
			ws.Close()

			if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("obs connection failed", "error", err)
				c.Emit(Event{Kind: EventConnectionError, Err: err})
			}
			c.Emit(Event{Kind: EventConnectionClosed, Err: err})
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed message", "error", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg Message) {
	switch msg.Op {
	case OpEvent:
		var ev EventPayload
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			c.logger.Debug("dropping malformed event", "error", err)
			return
		}
		c.Emit(Event{Kind: EventKind(ev.EventType), Data: ev.EventData})

	case OpRequestResponse, OpRequestBatchResponse:
		var ref struct {
			RequestID string `json:"requestId"`
		}
		if err := json.Unmarshal(msg.Data, &ref); err != nil {
			c.logger.Debug("dropping malformed response", "error", err)
			return
		}
		c.mu.Lock()
		ch, ok := c.pending[ref.RequestID]
		delete(c.pending, ref.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg.Data
		}
	}
}

// Call sends one request and waits for its response. A failed request
// status is returned as a *RemoteError.
func (c *Conn) Call(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	id := uuid.NewString()
	raw, err := c.roundTrip(ctx, id, OpRequest, RequestPayload{
		RequestType: requestType,
		RequestID:   id,
		RequestData: data,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", requestType, err)
	}

	var resp ResponsePayload
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", requestType, err)
	}
	if !resp.RequestStatus.Result {
		return nil, &RemoteError{
			RequestType: requestType,
			Code:        resp.RequestStatus.Code,
			Comment:     resp.RequestStatus.Comment,
		}
	}
	return resp.ResponseData, nil
}

// CallBatch sends requests in a single round trip and returns one
// Response per request, in order. Individual failures are reported in
// each Response's Status, not as an error.
func (c *Conn) CallBatch(ctx context.Context, requests []Request) ([]Response, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	id := uuid.NewString()
	batch := BatchPayload{
		RequestID:     id,
		ExecutionType: ExecutionSerialRealtime,
		Requests:      make([]RequestPayload, len(requests)),
	}
	for i, r := range requests {
		batch.Requests[i] = RequestPayload{
			RequestType: r.Type,
			RequestID:   strconv.Itoa(i),
			RequestData: r.Data,
		}
	}

	raw, err := c.roundTrip(ctx, id, OpRequestBatch, batch)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	var resp BatchResponsePayload
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("batch: decode response: %w", err)
	}
	results := make([]Response, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = Response{Type: r.RequestType, Status: r.RequestStatus, Data: r.ResponseData}
	}
	return results, nil
}

func (c *Conn) roundTrip(ctx context.Context, id string, op OpCode, payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	err = ws.WriteJSON(Message{Op: op, Data: data})
	c.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case raw, ok := <-ch:
		if !ok {
			return nil, ErrNotConnected
		}
		return raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Disconnect closes the session and waits for the read goroutine to
// deliver ConnectionClosed. It must not be called from a Handler.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	ws, done := c.ws, c.done
	if ws == nil {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()

	err := ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeGracePeriod))
	if err != nil {
		c.logger.Debug("close frame not sent", "error", err)
	}
	ws.Close()
	<-done
	return nil
}

// Connected reports whether the session is open.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}
