// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package profile holds the proxy's resolved representation of a
// connecting player: name, UUID, profile properties and the optional
// signed identity key.
package profile

import (
	"crypto/md5"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// Property is an opaque, order-preserving profile attribute such as a
// skin texture. The signature may be empty.
type Property struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Signature string `json:"signature,omitempty"`
}

// GameProfile identifies a player. Once a player handle has been
// constructed from it, the profile is treated as immutable.
type GameProfile struct {
	ID         uuid.UUID
	Name       string
	Properties []Property
}

// New creates a GameProfile, validating the username.
func New(id uuid.UUID, name string, props []Property) (GameProfile, error) {
	if name == "" {
		return GameProfile{}, oops.In("profile").
			Code("EMPTY_USERNAME").
			New("username cannot be empty")
	}
	return GameProfile{ID: id, Name: name, Properties: props}, nil
}

// NewOffline creates a profile for a player that was not authenticated
// against the session servers, deriving the UUID from the username.
func NewOffline(name string) (GameProfile, error) {
	return New(OfflinePlayerUUID(name), name, nil)
}

// WithID returns a copy of the profile with a different UUID.
func (p GameProfile) WithID(id uuid.UUID) GameProfile {
	p.ID = id
	return p
}

// String returns the username, matching how players are referred to in
// log output.
func (p GameProfile) String() string { return p.Name }

// OfflinePlayerUUID derives the deterministic offline-mode UUID for a
// username: a name-based (version 3) UUID of "OfflinePlayer:"+name.
func OfflinePlayerUUID(name string) uuid.UUID {
	digest := md5.Sum([]byte("OfflinePlayer:" + name))
	digest[6] = (digest[6] & 0x0F) | 0x30 // version 3
	digest[8] = (digest[8] & 0x3F) | 0x80 // IETF variant
	return uuid.UUID(digest)
}
