// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// handshakeSessionHandler reads the opening handshake, fixes the
// protocol version and routes the connection by intent.
type handshakeSessionHandler struct {
	nopSessionHandler

	conn *Conn
}

func newHandshakeSessionHandler(conn *Conn) *handshakeSessionHandler {
	return &handshakeSessionHandler{conn: conn}
}

func (h *handshakeSessionHandler) handlePacket(pc *packet.Decoded) {
	hs, ok := pc.Packet.(*packet.Handshake)
	if !ok {
		// Anything else before the handshake is a protocol violation.
		h.conn.Close()
		return
	}

	h.conn.setProtocol(protocol.Version(hs.ProtocolVersion))

	switch hs.NextState {
	case packet.LoginIntent:
		if h.conn.proxy.metrics != nil {
			h.conn.proxy.metrics.ConnectionsTotal.WithLabelValues("login").Inc()
		}
		h.conn.setActiveSessionHandler(protocol.StateLogin,
			newLoginSessionHandler(h.conn, hs.ServerAddress))
	case packet.StatusIntent:
		// Status serving is not part of this proxy core.
		if h.conn.proxy.metrics != nil {
			h.conn.proxy.metrics.ConnectionsTotal.WithLabelValues("status").Inc()
		}
		h.conn.Close()
	default:
		h.conn.Close()
	}
}
