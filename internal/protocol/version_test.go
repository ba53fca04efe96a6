// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion_SupportsCompression(t *testing.T) {
	assert.False(t, Version(5).SupportsCompression(), "pre-1.8 clients have no compression packet")
	assert.True(t, Minecraft1_8.SupportsCompression())
	assert.True(t, Minecraft1_20_2.SupportsCompression())
}

func TestVersion_RequiresLoginAcknowledgement(t *testing.T) {
	assert.False(t, Minecraft1_19.RequiresLoginAcknowledgement())
	assert.False(t, Version(763).RequiresLoginAcknowledgement(), "1.20/1.20.1 predate the config phase")
	assert.True(t, Minecraft1_20_2.RequiresLoginAcknowledgement())
	assert.True(t, Version(999).RequiresLoginAcknowledgement())
}

func TestVersion_String(t *testing.T) {
	assert.Equal(t, "1.20.2", Minecraft1_20_2.String())
	assert.Equal(t, "protocol 123", Version(123).String())
}
