package obsws

import (
	"encoding/json"
	"sync"
)

// EventKind names an event. Remote events use the obs-websocket
// eventType verbatim; the Connection* kinds are synthesised locally from
// socket state.
type EventKind string

const (
	EventConnectionOpened EventKind = "ConnectionOpened"
	EventConnectionClosed EventKind = "ConnectionClosed"
	EventConnectionError  EventKind = "ConnectionError"

	EventExitStarted                 EventKind = "ExitStarted"
	EventInputMuteStateChanged       EventKind = "InputMuteStateChanged"
	EventInputVolumeChanged          EventKind = "InputVolumeChanged"
	EventSceneItemEnableStateChanged EventKind = "SceneItemEnableStateChanged"
	EventCurrentProgramSceneChanged  EventKind = "CurrentProgramSceneChanged"
	EventStreamStateChanged          EventKind = "StreamStateChanged"
)

// Event is delivered to handlers registered with On.
type Event struct {
	Kind EventKind
	// Data is the remote eventData, nil for local connection events.
	Data json.RawMessage
	// Err is set on ConnectionError and on ConnectionClosed when the
	// socket failed.
	Err error
}

// Handler receives events in arrival order on the connection's read
// goroutine. Handlers must not block on requests to the same connection.
type Handler func(Event)

// Emitter fans events out to handlers by kind. The zero value is ready
// to use.
type Emitter struct {
	mu        sync.RWMutex
	listeners map[EventKind][]Handler
}

// On registers h for events of the given kind.
func (e *Emitter) On(kind EventKind, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[EventKind][]Handler)
	}
	e.listeners[kind] = append(e.listeners[kind], h)
}

// RemoveAllListeners drops every registered handler.
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
}

// ListenerCount returns the number of handlers registered for kind.
func (e *Emitter) ListenerCount(kind EventKind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[kind])
}

// Emit calls every handler registered for ev.Kind, synchronously and in
// registration order.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := append([]Handler(nil), e.listeners[ev.Kind]...)
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
