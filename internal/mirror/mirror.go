// Package mirror holds local copies of remote OBS entities.
//
// A Mirror maps a remote-assigned identifier to a Handle. Handles are
// built in two phases: the constructor captures the descriptive fields the
// listing returned, then Init pulls whatever mutable state the handle
// caches. Populate installs the handles and starts every Init; WaitReady
// blocks until all of them have finished.
package mirror

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/obsmirror/obsmirror/internal/poll"
)

// Handle is one mirrored remote entity.
type Handle interface {
	// ID is the stable remote identifier used as the mirror key.
	ID() string
	// Init pulls the handle's cached state. Called once per Populate.
	Init(ctx context.Context) error
	// Ready reports whether Init has completed successfully.
	Ready() bool
}

// Readiness is the ready flag shared by every handle type.
type Readiness struct {
	ready atomic.Bool
}

// Ready reports whether MarkReady has been called.
func (r *Readiness) Ready() bool { return r.ready.Load() }

// MarkReady sets the flag. It returns true only for the call that
// flipped it.
func (r *Readiness) MarkReady() bool { return r.ready.CompareAndSwap(false, true) }

// Mirror is a concurrency-safe map of handles. The zero value is not
// usable; call New.
type Mirror[H Handle] struct {
	mu      sync.RWMutex
	entries map[string]H
	failed  error
	// generation invalidates Init results from a previous Populate.
	generation uint64
}

// New returns an empty mirror.
func New[H Handle]() *Mirror[H] {
	return &Mirror[H]{entries: make(map[string]H)}
}

// Populate replaces the mirror contents with handles and starts each
// handle's Init in its own goroutine. When two handles share an ID the
// later one wins. Keys are visible as soon as Populate returns; readiness
// must be awaited separately with WaitReady.
func (m *Mirror[H]) Populate(ctx context.Context, handles []H) {
	entries := make(map[string]H, len(handles))
	for _, h := range handles {
		entries[h.ID()] = h
	}

	m.mu.Lock()
	m.generation++
	generation := m.generation
	m.entries = entries
	m.failed = nil
	m.mu.Unlock()

	for _, h := range entries {
		go m.initHandle(ctx, generation, h)
	}
}

func (m *Mirror[H]) initHandle(ctx context.Context, generation uint64, h H) {
	err := h.Init(ctx)
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == generation && m.failed == nil {
		m.failed = fmt.Errorf("init %s: %w", h.ID(), err)
	}
}

// WaitReady blocks until every handle is ready. An Init failure aborts
// the wait with that failure.
func (m *Mirror[H]) WaitReady(ctx context.Context, opts poll.Options) error {
	return poll.WaitFor(ctx, func(context.Context) (bool, error) {
		return m.Check()
	}, opts)
}

// Check reports whether every handle is ready. It returns the first
// recorded Init failure, if any.
func (m *Mirror[H]) Check() (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failed != nil {
		return false, m.failed
	}
	return m.allReadyLocked(), nil
}

// AllReady reports whether every handle is ready. An empty mirror is
// ready.
func (m *Mirror[H]) AllReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allReadyLocked()
}

func (m *Mirror[H]) allReadyLocked() bool {
	for _, h := range m.entries {
		if !h.Ready() {
			return false
		}
	}
	return true
}

// Get returns the handle with the given id.
func (m *Mirror[H]) Get(id string) (H, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.entries[id]
	return h, ok
}

// Find returns the first handle, in key order, matching fn.
func (m *Mirror[H]) Find(fn func(H) bool) (H, bool) {
	for _, h := range m.Values() {
		if fn(h) {
			return h, true
		}
	}
	var zero H
	return zero, false
}

// Len returns the number of handles.
func (m *Mirror[H]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns the ids in sorted order.
func (m *Mirror[H]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for id := range m.entries {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the handles sorted by id.
func (m *Mirror[H]) Values() []H {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for id := range m.entries {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	values := make([]H, 0, len(keys))
	for _, id := range keys {
		values = append(values, m.entries[id])
	}
	return values
}

// Reset empties the mirror. Init calls still running from the last
// Populate can no longer record failures.
func (m *Mirror[H]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.entries = make(map[string]H)
	m.failed = nil
}
