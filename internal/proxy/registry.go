// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// connectionRegistry enforces at-most-one-session-per-identity across
// the whole proxy. CanRegister is advisory and may race with concurrent
// handshakes; Register is the authoritative, linearizable check — the
// single source of truth for uniqueness.
type connectionRegistry struct {
	mu     sync.RWMutex
	byName map[string]*connectedPlayer
	byID   map[uuid.UUID]*connectedPlayer
}

func newConnectionRegistry() *connectionRegistry {
	return &connectionRegistry{
		byName: make(map[string]*connectedPlayer),
		byID:   make(map[uuid.UUID]*connectedPlayer),
	}
}

// CanRegister reports whether no equivalent identity is currently
// registered. A true result can be stale by the time the caller acts on
// it; losers of that race are caught by Register.
func (r *connectionRegistry) CanRegister(p *connectedPlayer) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.byName[strings.ToLower(p.Username())]; ok {
		return false
	}
	if _, ok := r.byID[p.ID()]; ok {
		return false
	}
	return true
}

// Register atomically checks and inserts p. Returns false if an
// equivalent identity is already registered.
func (r *connectionRegistry) Register(p *connectedPlayer) bool {
	name := strings.ToLower(p.Username())
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return false
	}
	if _, ok := r.byID[p.ID()]; ok {
		return false
	}
	r.byName[name] = p
	r.byID[p.ID()] = p
	return true
}

// Unregister removes p if it is the registered holder of its identity.
// Returns whether p was registered. Safe to call for players that never
// made it through registration.
func (r *connectionRegistry) Unregister(p *connectedPlayer) bool {
	name := strings.ToLower(p.Username())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byName[name] != p {
		return false
	}
	delete(r.byName, name)
	delete(r.byID, p.ID())
	return true
}

// Count returns the number of registered players.
func (r *connectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Player returns the registered player for a username, or nil.
func (r *connectionRegistry) Player(username string) *connectedPlayer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[strings.ToLower(username)]
}
