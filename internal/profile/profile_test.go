// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package profile

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsEmptyUsername(t *testing.T) {
	_, err := New(uuid.New(), "", nil)
	assert.Error(t, err)
}

func TestNewOffline_DerivesUUIDFromName(t *testing.T) {
	p, err := NewOffline("Steve")
	require.NoError(t, err)

	assert.Equal(t, "Steve", p.Name)
	assert.Equal(t, OfflinePlayerUUID("Steve"), p.ID)
}

func TestOfflinePlayerUUID_Deterministic(t *testing.T) {
	a := OfflinePlayerUUID("Steve")
	b := OfflinePlayerUUID("Steve")
	c := OfflinePlayerUUID("Alex")

	assert.Equal(t, a, b, "same name must always map to the same UUID")
	assert.NotEqual(t, a, c)
}

func TestOfflinePlayerUUID_IsNameBased(t *testing.T) {
	id := OfflinePlayerUUID("Steve")

	assert.Equal(t, 3, int(id.Version()), "offline UUIDs are md5 name-based")
	assert.Equal(t, uuid.RFC4122, id.Variant())
}

func TestOfflinePlayerUUID_CaseSensitive(t *testing.T) {
	// Vanilla servers derive the UUID from the name exactly as sent.
	assert.NotEqual(t, OfflinePlayerUUID("steve"), OfflinePlayerUUID("Steve"))
}

func TestGameProfile_WithID(t *testing.T) {
	p, err := NewOffline("Steve")
	require.NoError(t, err)

	other := uuid.New()
	q := p.WithID(other)

	assert.Equal(t, other, q.ID)
	assert.Equal(t, OfflinePlayerUUID("Steve"), p.ID, "WithID must not mutate the receiver")
}
