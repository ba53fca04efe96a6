// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/wardstone/wardstone/internal/config"
	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// backendDialTimeout bounds a single backend connection attempt. The
// login core performs no retries; a failed attempt disconnects the
// player.
const backendDialTimeout = 10 * time.Second

// Connector establishes the player's connection to a backend server.
// Session relay beyond connection establishment is the connector's
// concern, not the login core's.
type Connector interface {
	Connect(ctx context.Context, player Player, server *RegisteredServer) (*serverConnection, error)
}

// ConnectionRequest is a prepared backend connection attempt for one
// player.
type ConnectionRequest struct {
	player *connectedPlayer
	server *RegisteredServer
}

// Server returns the target server.
func (r *ConnectionRequest) Server() *RegisteredServer { return r.server }

// fireAndForget issues the connection attempt without waiting for it.
// Failure disconnects the player; nothing is retried.
func (r *ConnectionRequest) fireAndForget() {
	p := r.player
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backendDialTimeout)
		defer cancel()

		backend, err := p.proxy.connector.Connect(ctx, p, r.server)
		if err != nil {
			p.log.Error("unable to connect player to initial server",
				"server", r.server.Name(),
				"error", err,
			)
			p.conn.loop.Post(func() { p.Disconnect(msgUnableToConnect) })
			return
		}
		p.setBackend(backend)
		if p.conn.Closed() {
			// The client left while we were dialing.
			backend.disconnect()
			return
		}
		p.log.Info("player connected to initial server", "server", r.server.Name())
	}()
}

// serverConnection is the proxy's connection to a backend server on
// behalf of one player.
type serverConnection struct {
	server *RegisteredServer
	c      net.Conn

	closeOnce sync.Once
}

// disconnect closes the backend connection. Idempotent.
func (s *serverConnection) disconnect() {
	s.closeOnce.Do(func() { _ = s.c.Close() })
}

// dialConnector is the default Connector: it dials the backend and
// replays the opening handshake and login start for the player. The
// post-login session relay is handed off to the server connection and is
// outside the login core.
type dialConnector struct {
	proxy *Proxy
}

func newDialConnector(p *Proxy) *dialConnector { return &dialConnector{proxy: p} }

func (d *dialConnector) Connect(ctx context.Context, player Player, server *RegisteredServer) (*serverConnection, error) {
	var dialer net.Dialer
	c, err := dialer.DialContext(ctx, "tcp", server.Addr())
	if err != nil {
		return nil, oops.In("proxy").
			Code("BACKEND_DIAL_FAILED").
			With("server", server.Name()).
			With("addr", server.Addr()).
			Wrap(err)
	}

	host, port, err := splitHostPort(server.Addr())
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	version := player.Protocol()
	enc := packet.NewEncoder(c, version)
	if err := enc.WritePacket(&packet.Handshake{
		ProtocolVersion: int32(version),
		ServerAddress:   d.forwardedAddress(host, player),
		Port:            port,
		NextState:       packet.LoginIntent,
	}); err != nil {
		_ = c.Close()
		return nil, err
	}
	enc.SetState(protocol.StateLogin)
	if err := enc.WritePacket(&packet.LoginStart{
		Username: player.Username(),
		UUID:     player.ID(),
	}); err != nil {
		_ = c.Close()
		return nil, err
	}

	return &serverConnection{server: server, c: c}, nil
}

// forwardedAddress builds the handshake address per the configured
// forwarding mode. Legacy forwarding smuggles player info in the
// address field, null-separated, the way BungeeCord introduced it:
// host, client address, player UUID.
func (d *dialConnector) forwardedAddress(host string, player Player) string {
	if d.proxy.cfg.Forwarding != config.ForwardLegacy {
		return host
	}
	clientHost := player.RemoteAddr().String()
	if h, _, err := net.SplitHostPort(clientHost); err == nil {
		clientHost = h
	}
	return host + "\x00" + clientHost + "\x00" + player.ID().String()
}

func splitHostPort(addr string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, oops.In("proxy").With("addr", addr).Wrap(err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, oops.In("proxy").With("addr", addr).Wrap(err)
	}
	return host, uint16(port), nil
}
