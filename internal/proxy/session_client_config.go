// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// clientConfigSessionHandler owns the connection while a modern client
// sits in the configuration phase waiting for its first backend. The
// configuration exchange itself is driven by the backend once the
// connection request completes; until then the proxy only has to keep
// the player alive and tear it down on disconnect.
type clientConfigSessionHandler struct {
	nopSessionHandler

	player *connectedPlayer
}

func newClientConfigSessionHandler(player *connectedPlayer) *clientConfigSessionHandler {
	return &clientConfigSessionHandler{player: player}
}

func (h *clientConfigSessionHandler) handlePacket(pc *packet.Decoded) {
	// Configuration-phase packets are relayed by the backend session once
	// it exists; a client talking before then gets ignored, not kicked,
	// since vanilla clients send brand and settings info unprompted.
	h.player.log.Debug("dropping configuration-phase packet before backend ready",
		"packet_id", pc.ID,
	)
}

func (h *clientConfigSessionHandler) disconnected() {
	h.player.teardown()
}
