// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package event is the proxy's extension-hook runner. Extensions
// subscribe handlers to event types; the proxy fires an event at each
// login stage and may be overridden or vetoed through the event's own
// mutators.
package event

import (
	"io"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sort"
	"sync"
)

// Event is any fired value. Handlers subscribe by concrete type.
type Event any

// HandlerFunc handles one fired event. Handlers run sequentially in
// priority order on the firing goroutine and may block; the proxy always
// fires from outside connection event loops, so a slow handler stalls
// only the handshake that fired it.
type HandlerFunc func(e Event)

type subscriber struct {
	id       uint64
	priority int
	fn       HandlerFunc
}

// Manager dispatches events to subscribed handlers.
type Manager struct {
	log *slog.Logger

	mu          sync.RWMutex
	nextID      uint64
	subscribers map[reflect.Type][]*subscriber
}

// NewManager creates a manager. A nil logger discards handler panics
// silently, so callers should pass one.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		log:         logger,
		subscribers: make(map[reflect.Type][]*subscriber),
	}
}

// Subscribe registers fn for events of the same concrete type as proto.
// Higher priority runs earlier. The returned function removes the
// subscription and is safe to call more than once.
func (m *Manager) Subscribe(proto Event, priority int, fn HandlerFunc) (unsubscribe func()) {
	t := reflect.TypeOf(proto)

	m.mu.Lock()
	m.nextID++
	sub := &subscriber{id: m.nextID, priority: priority, fn: fn}
	subs := append(m.subscribers[t], sub)
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].priority > subs[j].priority })
	m.subscribers[t] = subs
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		subs := m.subscribers[t]
		for i, s := range subs {
			if s.id == sub.id {
				m.subscribers[t] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Fire runs all handlers for e on the calling goroutine and returns when
// they have all completed. A panicking handler is logged and skipped;
// it never propagates to the caller.
func (m *Manager) Fire(e Event) {
	t := reflect.TypeOf(e)

	m.mu.RLock()
	subs := make([]*subscriber, len(m.subscribers[t]))
	copy(subs, m.subscribers[t])
	m.mu.RUnlock()

	for _, s := range subs {
		m.dispatch(t, s, e)
	}
}

// FireAndForget runs the handlers for e on a new goroutine without
// waiting for them.
func (m *Manager) FireAndForget(e Event) {
	go m.Fire(e)
}

func (m *Manager) dispatch(t reflect.Type, s *subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("event handler panicked",
				"event", t.String(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.fn(e)
}

// HasSubscribers reports whether any handler is registered for events of
// the same concrete type as proto.
func (m *Manager) HasSubscribers(proto Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[reflect.TypeOf(proto)]) > 0
}
