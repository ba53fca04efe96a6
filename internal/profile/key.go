// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package profile

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// IdentifiedKey is a player's session-signed public key. A key is bound
// to at most one holder UUID for its lifetime; the first successful bind
// wins and later binds to a different holder fail.
type IdentifiedKey struct {
	publicKey []byte
	signature []byte
	expiresAt time.Time

	mu     sync.Mutex
	holder *uuid.UUID
}

// NewIdentifiedKey creates an unbound key from opaque key material.
func NewIdentifiedKey(publicKey, signature []byte, expiresAt time.Time) *IdentifiedKey {
	return &IdentifiedKey{
		publicKey: publicKey,
		signature: signature,
		expiresAt: expiresAt,
	}
}

// PublicKeyBytes returns the raw encoded public key.
func (k *IdentifiedKey) PublicKeyBytes() []byte { return k.publicKey }

// ExpiresAt returns the key's expiry instant.
func (k *IdentifiedKey) ExpiresAt() time.Time { return k.expiresAt }

// SignatureHolder returns the UUID the key is bound to, or nil if the
// key is still unbound.
func (k *IdentifiedKey) SignatureHolder() *uuid.UUID {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.holder == nil {
		return nil
	}
	h := *k.holder
	return &h
}

// AddHolder binds the key to id. Binding is one-time: the call succeeds
// if the key is unbound or already bound to the same id, and fails if it
// is bound to a different holder.
func (k *IdentifiedKey) AddHolder(id uuid.UUID) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.holder == nil {
		k.holder = &id
		return true
	}
	return *k.holder == id
}
