package obs

import "sync"

// ChangeKind says which part of the mirror changed.
type ChangeKind string

const (
	ChangeState        ChangeKind = "state"
	ChangeConnection   ChangeKind = "connection"
	ChangeInputMute    ChangeKind = "input_mute"
	ChangeInputVolume  ChangeKind = "input_volume"
	ChangeSceneItem    ChangeKind = "scene_item"
	ChangeProgramScene ChangeKind = "program_scene"
	ChangeStream       ChangeKind = "stream"
)

// Change notifies watchers that the mirror was updated. ID is the uuid
// of the affected entity, or empty for session-wide changes.
type Change struct {
	Kind ChangeKind
	ID   string
}

type watchers struct {
	mu   sync.RWMutex
	subs map[chan Change]struct{}
}

// publish never blocks: a watcher whose buffer is full misses the change.
func (w *watchers) publish(change Change) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for ch := range w.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

func (w *watchers) add(buffer int) chan Change {
	ch := make(chan Change, buffer)
	w.mu.Lock()
	if w.subs == nil {
		w.subs = make(map[chan Change]struct{})
	}
	w.subs[ch] = struct{}{}
	w.mu.Unlock()
	return ch
}

func (w *watchers) remove(ch chan Change) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[ch]; ok {
		delete(w.subs, ch)
		close(ch)
	}
}

// Watch returns a channel of mirror changes and a func that stops the
// subscription and closes the channel. Changes are dropped when the
// buffer is full.
func (c *Client) Watch(buffer int) (<-chan Change, func()) {
	ch := c.watchers.add(buffer)
	return ch, func() { c.watchers.remove(ch) }
}
