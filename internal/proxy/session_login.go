// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"sync"

	"github.com/wardstone/wardstone/internal/profile"
	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// loginInbound is the handshake context: the login-phase state that
// predates the player handle. It owns the connection until a player
// handle takes over and is cleaned up unconditionally on disconnect.
type loginInbound struct {
	conn        *Conn
	virtualHost string
	key         *profile.IdentifiedKey // may be nil

	cleanupOnce sync.Once
}

// disconnect kicks the client with a user-facing reason. No-op on a
// closed connection.
func (l *loginInbound) disconnect(reason string) {
	if l.conn.Closed() {
		return
	}
	l.conn.closeWith(&packet.Disconnect{Reason: reason})
}

// cleanup releases login-phase state. Runs at most once no matter how
// many disconnect notifications arrive, and is safe when the login never
// progressed past the first packet. Hooks may retain the handshake
// context well past the disconnect; dropping the key here keeps a dead
// login from pinning it.
func (l *loginInbound) cleanup() {
	l.cleanupOnce.Do(func() {
		l.key = nil
	})
}

// loginSessionHandler reads the login start packet and hands the
// connection to the login-completion state machine. Credential
// verification (encryption, session-server auth) happens before a
// connection reaches the completion stage and is not re-done here; the
// proxy's online-mode configuration decides how the claimed identity is
// resolved.
type loginSessionHandler struct {
	nopSessionHandler

	conn    *Conn
	inbound *loginInbound
	started bool
}

func newLoginSessionHandler(conn *Conn, virtualHost string) *loginSessionHandler {
	return &loginSessionHandler{
		conn:    conn,
		inbound: &loginInbound{conn: conn, virtualHost: virtualHost},
	}
}

func (h *loginSessionHandler) handlePacket(pc *packet.Decoded) {
	start, ok := pc.Packet.(*packet.LoginStart)
	if !ok || h.started {
		// Only one login start is ever legal here.
		h.conn.Close()
		return
	}
	h.started = true

	var (
		prof profile.GameProfile
		err  error
	)
	if h.conn.proxy.cfg.OnlineMode {
		prof, err = profile.New(start.UUID, start.Username, nil)
	} else {
		prof, err = profile.NewOffline(start.Username)
	}
	if err != nil {
		h.conn.log.Debug("rejecting malformed login start", "error", err)
		h.conn.Close()
		return
	}

	h.conn.setActiveSessionHandler(protocol.StateLogin,
		newAuthSessionHandler(h.inbound, prof, h.conn.proxy.cfg.OnlineMode))
}

func (h *loginSessionHandler) disconnected() {
	h.inbound.cleanup()
}
