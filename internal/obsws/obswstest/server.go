// Package obswstest provides an in-process obs-websocket server for
// tests. It speaks the v5 handshake, answers requests from registered
// handlers, and can push events or drop clients on demand.
package obswstest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/obsmirror/obsmirror/internal/obsws"
)

const (
	codeUnknownRequest   = 204
	codeProcessingFailed = 702
	closeAuthFailed      = 4009

	testSalt      = "c2FsdA=="
	testChallenge = "Y2hhbGxlbmdl"
)

// HandlerFunc answers one request type. The returned value is encoded as
// responseData. Returning a *Failure reports a failed request status.
type HandlerFunc func(data json.RawMessage) (any, error)

// Failure is a request-level failure with an explicit status code.
type Failure struct {
	Code    int
	Comment string
}

func (f *Failure) Error() string { return f.Comment }

type client struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *client) write(op obsws.OpCode, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(obsws.Message{Op: op, Data: data})
}

// Server is a fake OBS instance.
type Server struct {
	// URL is the ws:// address to pass to Conn.Connect.
	URL string

	http     *httptest.Server
	password string

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	clients  map[*client]bool
	requests []string
}

// NewServer starts a fake OBS. An empty password disables
// authentication.
func NewServer(password string) *Server {
	s := &Server{
		password: password,
		handlers: make(map[string]HandlerFunc),
		clients:  make(map[*client]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	s.http = httptest.NewServer(mux)
	s.URL = "ws" + strings.TrimPrefix(s.http.URL, "http")
	return s
}

// Handle registers fn for requestType, replacing any previous handler.
func (s *Server) Handle(requestType string, fn HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[requestType] = fn
}

// HandleValue answers requestType with a fixed response.
func (s *Server) HandleValue(requestType string, v any) {
	s.Handle(requestType, func(json.RawMessage) (any, error) { return v, nil })
}

// Requests returns every request type received, in arrival order.
// Requests inside a batch are listed individually.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// RequestCount returns how many times requestType was received.
func (s *Server) RequestCount(requestType string) int {
	n := 0
	for _, r := range s.Requests() {
		if r == requestType {
			n++
		}
	}
	return n
}

// ClientCount returns the number of identified sessions.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Emit pushes an event to every identified session.
func (s *Server) Emit(eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload := obsws.EventPayload{EventType: eventType, EventData: raw}

	var errs []error
	for _, c := range s.snapshotClients() {
		errs = append(errs, c.write(obsws.OpEvent, payload))
	}
	return errors.Join(errs...)
}

// CloseClients ends every session with a GoingAway close frame, the way
// OBS does on shutdown.
func (s *Server) CloseClients() {
	for _, c := range s.snapshotClients() {
		c.writeMu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.conn.Close()
	}
}

// DropClients closes every socket without a close frame.
func (s *Server) DropClients() {
	for _, c := range s.snapshotClients() {
		c.conn.Close()
	}
}

// Close drops all clients and stops the server.
func (s *Server) Close() {
	s.DropClients()
	s.http.Close()
}

func (s *Server) snapshotClients() []*client {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}

	if !s.identify(c) {
		conn.Close()
		return
	}

	s.mu.Lock()
	s.clients[c] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		var msg obsws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Op {
		case obsws.OpRequest:
			var req obsws.RequestPayload
			if json.Unmarshal(msg.Data, &req) != nil {
				continue
			}
			c.write(obsws.OpRequestResponse, s.answer(req))

		case obsws.OpRequestBatch:
			var batch struct {
				RequestID string `json:"requestId"`
				Requests  []struct {
					RequestType string          `json:"requestType"`
					RequestID   string          `json:"requestId"`
					RequestData json.RawMessage `json:"requestData"`
				} `json:"requests"`
			}
			if json.Unmarshal(msg.Data, &batch) != nil {
				continue
			}
			resp := obsws.BatchResponsePayload{RequestID: batch.RequestID}
			for _, r := range batch.Requests {
				resp.Results = append(resp.Results, s.answer(obsws.RequestPayload{
					RequestType: r.RequestType,
					RequestID:   r.RequestID,
					RequestData: r.RequestData,
				}))
			}
			c.write(obsws.OpRequestBatchResponse, resp)
		}
	}
}

func (s *Server) identify(c *client) bool {
	hello := obsws.HelloPayload{OBSWebSocketVersion: "5.5.0", RPCVersion: obsws.RPCVersion}
	if s.password != "" {
		hello.Authentication = &obsws.Authorization{Challenge: testChallenge, Salt: testSalt}
	}
	if c.write(obsws.OpHello, hello) != nil {
		return false
	}

	var msg obsws.Message
	if err := c.conn.ReadJSON(&msg); err != nil || msg.Op != obsws.OpIdentify {
		return false
	}
	var identify obsws.IdentifyPayload
	if json.Unmarshal(msg.Data, &identify) != nil {
		return false
	}
	if s.password != "" && identify.Authentication != obsws.AuthResponse(s.password, testSalt, testChallenge) {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(closeAuthFailed, "Authentication failed."),
			time.Now().Add(time.Second))
		return false
	}

	return c.write(obsws.OpIdentified, obsws.IdentifiedPayload{NegotiatedRPCVersion: obsws.RPCVersion}) == nil
}

func (s *Server) answer(req obsws.RequestPayload) obsws.ResponsePayload {
	s.mu.Lock()
	s.requests = append(s.requests, req.RequestType)
	fn, ok := s.handlers[req.RequestType]
	s.mu.Unlock()

	resp := obsws.ResponsePayload{RequestType: req.RequestType, RequestID: req.RequestID}
	if !ok {
		resp.RequestStatus = obsws.RequestStatus{Code: codeUnknownRequest, Comment: "unknown request type"}
		return resp
	}

	var data json.RawMessage
	if raw, ok := req.RequestData.(json.RawMessage); ok {
		data = raw
	} else if req.RequestData != nil {
		data, _ = json.Marshal(req.RequestData)
	}

	out, err := fn(data)
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			resp.RequestStatus = obsws.RequestStatus{Code: failure.Code, Comment: failure.Comment}
		} else {
			resp.RequestStatus = obsws.RequestStatus{Code: codeProcessingFailed, Comment: err.Error()}
		}
		return resp
	}

	resp.RequestStatus = obsws.RequestStatus{Result: true, Code: obsws.StatusSuccess}
	if out != nil {
		resp.ResponseData, _ = json.Marshal(out)
	}
	return resp
}
