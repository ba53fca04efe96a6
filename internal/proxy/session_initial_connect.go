// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// initialConnectSessionHandler owns the connection for a pre-1.20.2
// client between login success and the first backend join. There is no
// configuration phase on these versions; the client is already in play
// state and anything it sends is queued for the backend by the relay,
// which is outside the login core.
type initialConnectSessionHandler struct {
	nopSessionHandler

	player *connectedPlayer
}

func newInitialConnectSessionHandler(player *connectedPlayer) *initialConnectSessionHandler {
	return &initialConnectSessionHandler{player: player}
}

func (h *initialConnectSessionHandler) handlePacket(pc *packet.Decoded) {
	h.player.log.Debug("dropping play-phase packet before backend ready",
		"packet_id", pc.ID,
	)
}

func (h *initialConnectSessionHandler) disconnected() {
	h.player.teardown()
}
