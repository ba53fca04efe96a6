// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/wardstone/wardstone/internal/permission"
	"github.com/wardstone/wardstone/internal/profile"
	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// Player is a client whose login has progressed far enough to have a
// resolved identity. It is what extension hooks see.
type Player interface {
	permission.Subject

	ID() uuid.UUID
	Username() string
	GameProfile() profile.GameProfile
	OnlineMode() bool
	VirtualHost() string
	RemoteAddr() net.Addr
	IdentifiedKey() *profile.IdentifiedKey // may be nil
	Protocol() protocol.Version
	Active() bool
	// Disconnect kicks the player with a user-facing reason. Once
	// called, further calls on the player are undefined.
	Disconnect(reason string)
}

// connectedPlayer is the finalized player handle. Created exactly once
// per successful handshake, after the advisory duplicate check passes.
type connectedPlayer struct {
	proxy       *Proxy
	conn        *Conn
	log         *slog.Logger
	profile     profile.GameProfile
	virtualHost string
	onlineMode  bool
	key         *profile.IdentifiedKey // may be nil

	mu           sync.RWMutex
	permFunc     permission.Func
	serversToTry []string
	tryIndex     int
	backend      *serverConnection

	// Set when this player is being disconnected because another
	// connection logged in with the same identity.
	disconnectDueToDuplicate atomic.Bool
	// Set when the proxy, not the client, initiated the disconnect.
	knownDisconnect atomic.Bool

	teardownOnce sync.Once
}

var _ Player = (*connectedPlayer)(nil)

func newConnectedPlayer(p *Proxy, conn *Conn, prof profile.GameProfile, virtualHost string, onlineMode bool, key *profile.IdentifiedKey) *connectedPlayer {
	return &connectedPlayer{
		proxy:       p,
		conn:        conn,
		log:         p.log.With("player", prof.Name, "player_id", prof.ID.String()),
		profile:     prof,
		virtualHost: virtualHost,
		onlineMode:  onlineMode,
		key:         key,
		permFunc:    func(string) permission.TriState { return permission.Undefined },
	}
}

func (p *connectedPlayer) ID() uuid.UUID                         { return p.profile.ID }
func (p *connectedPlayer) Username() string                      { return p.profile.Name }
func (p *connectedPlayer) GameProfile() profile.GameProfile      { return p.profile }
func (p *connectedPlayer) OnlineMode() bool                      { return p.onlineMode }
func (p *connectedPlayer) VirtualHost() string                   { return p.virtualHost }
func (p *connectedPlayer) RemoteAddr() net.Addr                  { return p.conn.c.RemoteAddr() }
func (p *connectedPlayer) IdentifiedKey() *profile.IdentifiedKey { return p.key }
func (p *connectedPlayer) Protocol() protocol.Version            { return p.conn.Protocol() }
func (p *connectedPlayer) Active() bool                          { return !p.conn.Closed() }
func (p *connectedPlayer) String() string                        { return p.profile.Name }

func (p *connectedPlayer) HasPermission(perm string) bool {
	return p.PermissionValue(perm).Bool()
}

func (p *connectedPlayer) PermissionValue(perm string) permission.TriState {
	p.mu.RLock()
	fn := p.permFunc
	p.mu.RUnlock()
	return fn(perm)
}

// setPermissionFunc installs the checker chosen during permissions
// setup. Called exactly once per login.
func (p *connectedPlayer) setPermissionFunc(fn permission.Func) {
	p.mu.Lock()
	p.permFunc = fn
	p.mu.Unlock()
}

// Disconnect kicks the player with a user-facing reason.
func (p *connectedPlayer) Disconnect(reason string) {
	p.disconnect(reason, false)
}

func (p *connectedPlayer) disconnect(reason string, duplicate bool) {
	if duplicate {
		p.disconnectDueToDuplicate.Store(true)
	}
	p.knownDisconnect.Store(true)
	if !p.Active() {
		return
	}
	p.conn.closeWith(&packet.Disconnect{Reason: reason})
	p.log.Info("player disconnected by proxy", "reason", reason)
}

// nextServerToTry returns the next candidate backend from routing
// configuration: the virtual host's forced hosts first, then the
// proxy-wide try order. May return nil.
func (p *connectedPlayer) nextServerToTry() *RegisteredServer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.serversToTry) == 0 {
		p.serversToTry = p.proxy.cfg.ForcedHosts[p.virtualHost]
	}
	if len(p.serversToTry) == 0 {
		p.serversToTry = p.proxy.cfg.Try
	}
	for i := p.tryIndex; i < len(p.serversToTry); i++ {
		if s := p.proxy.Server(p.serversToTry[i]); s != nil {
			p.tryIndex = i
			return s
		}
	}
	return nil
}

// createConnectionRequest prepares a backend connection attempt for the
// chosen server.
func (p *connectedPlayer) createConnectionRequest(server *RegisteredServer) *ConnectionRequest {
	return &ConnectionRequest{player: p, server: server}
}

func (p *connectedPlayer) setBackend(b *serverConnection) {
	p.mu.Lock()
	p.backend = b
	p.mu.Unlock()
}

// teardown releases the player's resources and tells collaborators it no
// longer exists. Runs at most once regardless of how many disconnect
// notifications arrive.
func (p *connectedPlayer) teardown() {
	p.teardownOnce.Do(func() {
		p.mu.RLock()
		backend := p.backend
		p.mu.RUnlock()
		if backend != nil {
			backend.disconnect()
		}

		var status LoginStatus
		if p.proxy.registry.Unregister(p) {
			if p.proxy.metrics != nil {
				p.proxy.metrics.PlayersOnline.Dec()
			}
			if p.disconnectDueToDuplicate.Load() {
				status = ConflictingLoginStatus
			} else {
				status = SuccessfulLoginStatus
			}
		} else {
			if p.knownDisconnect.Load() {
				status = CanceledByProxyLoginStatus
			} else {
				status = CanceledByUserLoginStatus
			}
		}
		p.proxy.events.FireAndForget(&DisconnectEvent{player: p, loginStatus: status})
		p.log.Debug("player torn down", "login_status", status.String())
	})
}
