// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_StampsServiceIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("wardstone", "1.2.3", "json", &buf)

	logger.Info("proxy started", "addr", ":25565")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "wardstone", record["service"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "proxy started", record["msg"])
	assert.Equal(t, ":25565", record["addr"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("wardstone", "dev", "text", &buf)

	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "service=wardstone")
}

func TestSetup_WithAttrsPreservesIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("wardstone", "dev", "json", &buf).With("player", "Steve")

	logger.Info("player has connected")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "wardstone", record["service"])
	assert.Equal(t, "Steve", record["player"])
}
