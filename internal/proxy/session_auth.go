// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/wardstone/wardstone/internal/config"
	"github.com/wardstone/wardstone/internal/event"
	"github.com/wardstone/wardstone/internal/observability"
	"github.com/wardstone/wardstone/internal/permission"
	"github.com/wardstone/wardstone/internal/profile"
	"github.com/wardstone/wardstone/internal/protocol"
	"github.com/wardstone/wardstone/internal/protocol/packet"
)

// loginState tracks the client-visible login sub-protocol. A login
// acknowledgement is accepted only in loginStateSuccessSent; anywhere
// else it is a protocol violation.
type loginState uint8

const (
	loginStateStart loginState = iota
	loginStateSuccessSent
	loginStateAcknowledged
)

// authSessionHandler completes the login phase for a connection whose
// credentials have already been verified: it runs the extension hooks,
// enforces session uniqueness, reconciles the signed identity key and
// either hands the connection to the next protocol phase or closes it.
//
// All fields are owned by the connection's event loop. Hooks run on
// other goroutines; every continuation is posted back onto the loop and
// re-checks connection liveness before touching anything.
type authSessionHandler struct {
	nopSessionHandler

	log        *slog.Logger
	proxy      *Proxy
	conn       *Conn
	inbound    *loginInbound
	profile    profile.GameProfile
	onlineMode bool

	player *connectedPlayer // set once the profile hook resolves
	state  loginState
}

func newAuthSessionHandler(inbound *loginInbound, prof profile.GameProfile, onlineMode bool) *authSessionHandler {
	conn := inbound.conn
	return &authSessionHandler{
		log:        conn.log.With("player", prof.Name),
		proxy:      conn.proxy,
		conn:       conn,
		inbound:    inbound,
		profile:    prof,
		onlineMode: onlineMode,
		state:      loginStateStart,
	}
}

// fireThen fires e on a fresh goroutine, then posts the continuation
// back onto the connection's event loop. If the loop already stopped the
// connection is closed, so the continuation runs inline and its liveness
// check routes it down the close path. A panic escaping the continuation
// is logged with the affected identity and swallowed; the connection is
// left as-is rather than force-closed.
func (h *authSessionHandler) fireThen(e event.Event, then func()) {
	go func() {
		h.proxy.events.Fire(e)
		run := func() {
			defer func() {
				if r := recover(); r != nil {
					h.log.Error("failure during login completion stage",
						"panic", r,
						"stack", string(debug.Stack()),
					)
				}
			}()
			then()
		}
		if !h.conn.loop.Post(run) {
			run()
		}
	}()
}

func (h *authSessionHandler) countLogin(outcome string) {
	if h.proxy.metrics != nil {
		h.proxy.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

// activated fires the profile request hook and, once it resolves,
// builds the player handle and runs permissions setup.
func (h *authSessionHandler) activated() {
	profileEvent := &GameProfileRequestEvent{
		inbound:    h.inbound,
		original:   h.profile,
		onlineMode: h.onlineMode,
	}
	h.fireThen(profileEvent, func() {
		if h.conn.Closed() {
			// The client disconnected while the hook ran. Normal race,
			// nothing was created, nothing to clean up.
			h.countLogin(observability.LoginOutcomeClosed)
			return
		}

		h.profile = profileEvent.GameProfile()
		player := newConnectedPlayer(h.proxy, h.conn, h.profile,
			h.inbound.virtualHost, h.onlineMode, h.inbound.key)
		h.player = player

		if !h.proxy.registry.CanRegister(player) {
			h.countLogin(observability.LoginOutcomeAlreadyConnected)
			player.disconnect(msgAlreadyConnected, true)
			return
		}

		h.log.Info("player has connected", "player_id", player.ID().String())

		permEvent := &PermissionsSetupEvent{
			subject:         player,
			defaultProvider: permission.Default,
		}
		h.fireThen(permEvent, func() {
			if h.conn.Closed() {
				h.countLogin(observability.LoginOutcomeClosed)
				return
			}

			fn := permEvent.Provider().CreateFunc(player)
			if fn == nil {
				// A broken provider is the extension's bug, never the
				// player's problem. Fall back to the default checker.
				h.log.Error("permission provider returned an invalid checker, using default",
					"provider", permEvent.Provider().Name(),
				)
				fn = permission.Default.CreateFunc(player)
			}
			player.setPermissionFunc(fn)

			h.startLoginCompletion(player)
		})
	})
}

// startLoginCompletion negotiates compression, resolves the canonical
// player UUID per the forwarding policy and reconciles the signed
// identity key. Synchronous; no suspension points.
func (h *authSessionHandler) startLoginCompletion(player *connectedPlayer) {
	threshold := h.proxy.cfg.CompressionThreshold
	if threshold >= 0 && h.conn.Protocol().SupportsCompression() {
		// The packet announcing the threshold must be the last one sent
		// uncompressed.
		_ = h.conn.WritePacket(&packet.SetCompression{Threshold: threshold})
		h.conn.SetCompressionThreshold(threshold)
	}

	playerID := player.ID()
	if h.proxy.cfg.Forwarding == config.ForwardNone {
		// Without forwarding, backends know the player only by the
		// offline UUID; key-holder comparison must use the same one.
		playerID = profile.OfflinePlayerUUID(player.Username())
	}

	if !h.reconcileKey(player, playerID) {
		return
	}

	h.completeLoginProtocolPhaseAndInitialize(player)
}

// identityKey is the slice of the signed-key surface the reconciliation
// step touches. *profile.IdentifiedKey satisfies it.
type identityKey interface {
	SignatureHolder() *uuid.UUID
	AddHolder(id uuid.UUID) bool
}

// reconcileKey binds an unbound identity key to the player or verifies
// an existing binding. Returns false only for the one fatal case: an
// unbindable key under online mode.
func (h *authSessionHandler) reconcileKey(player *connectedPlayer, resolvedID uuid.UUID) bool {
	key := player.IdentifiedKey()
	if key == nil {
		return true
	}
	return h.reconcileKeyHolder(key, player.ID(), resolvedID)
}

func (h *authSessionHandler) reconcileKeyHolder(key identityKey, playerID, resolvedID uuid.UUID) bool {
	holder := key.SignatureHolder()
	if holder == nil {
		if !key.AddHolder(playerID) {
			// The key got bound to someone else in between: a replayed
			// or shared key. Only trustworthy credentials make this
			// fatal.
			if h.onlineMode {
				h.countLogin(observability.LoginOutcomeInvalidKey)
				h.inbound.disconnect(msgInvalidPublicKey)
				return false
			}
			h.log.Warn("identity key could not be verified")
		}
		return true
	}

	if *holder != resolvedID {
		h.log.Warn("identity key holder mismatches resolved UUID; signed chat and commands will be inconsistent for this player",
			"holder", holder.String(),
			"resolved", resolvedID.String(),
		)
	}
	return true
}

// completeLoginProtocolPhaseAndInitialize associates the player with the
// connection, runs the login hook and, if nothing vetoed it, registers
// the player and sends login success.
func (h *authSessionHandler) completeLoginProtocolPhaseAndInitialize(player *connectedPlayer) {
	h.conn.setAssociation(player)

	loginEvent := &LoginEvent{player: player}
	h.fireThen(loginEvent, func() {
		if h.conn.Closed() {
			// The player was never registered, so no registry cleanup is
			// owed; just tell listeners the login was abandoned.
			h.countLogin(observability.LoginOutcomeClosed)
			h.proxy.events.FireAndForget(&DisconnectEvent{
				player:      player,
				loginStatus: CanceledByUserBeforeCompleteLoginStatus,
			})
			return
		}

		if !loginEvent.Allowed() {
			h.countLogin(observability.LoginOutcomeVetoed)
			player.Disconnect(loginEvent.Reason())
			return
		}

		// The advisory check earlier can race with a concurrent
		// handshake for the same identity; this is the authoritative
		// one.
		if !h.proxy.registry.Register(player) {
			h.countLogin(observability.LoginOutcomeAlreadyConnected)
			player.disconnect(msgAlreadyConnected, true)
			return
		}
		if h.proxy.metrics != nil {
			h.proxy.metrics.PlayersOnline.Inc()
		}

		_ = h.conn.WritePacket(&packet.ServerLoginSuccess{
			UUID:       player.ID(),
			Username:   player.Username(),
			Properties: player.GameProfile().Properties,
		})
		h.state = loginStateSuccessSent

		if h.conn.Protocol().Lower(protocol.Minecraft1_20_2) {
			// No acknowledgement below the threshold: advance
			// synthetically and go straight to the play phase.
			h.state = loginStateAcknowledged
			h.conn.setActiveSessionHandler(protocol.StatePlay,
				newInitialConnectSessionHandler(player))
			h.connectToInitialServer(player)
		}
	})
}

// handlePacket accepts exactly one packet type in exactly one state.
// Everything else during login completion is a protocol violation and
// hard-closes the connection.
func (h *authSessionHandler) handlePacket(pc *packet.Decoded) {
	if _, ok := pc.Packet.(*packet.LoginAcknowledged); ok {
		h.handleLoginAcknowledged()
		return
	}
	h.countLogin(observability.LoginOutcomeViolation)
	h.conn.Close()
}

func (h *authSessionHandler) handleLoginAcknowledged() {
	if h.state != loginStateSuccessSent {
		h.countLogin(observability.LoginOutcomeViolation)
		h.inbound.disconnect(msgInvalidPlayerData)
		return
	}
	h.state = loginStateAcknowledged
	h.conn.setActiveSessionHandler(protocol.StateConfig,
		newClientConfigSessionHandler(h.player))
	h.connectToInitialServer(h.player)
}

// connectToInitialServer runs the shared post-login sequence: the
// post-login notification, the initial-server choice hook and the
// fire-and-forget backend connection request.
func (h *authSessionHandler) connectToInitialServer(player *connectedPlayer) {
	postLogin := &PostLoginEvent{player: player}
	h.fireThen(postLogin, func() {
		chooseEvent := &PlayerChooseInitialServerEvent{
			player:        player,
			initialServer: player.nextServerToTry(),
		}
		h.fireThen(chooseEvent, func() {
			toTry := chooseEvent.InitialServer()
			if toTry == nil {
				h.countLogin(observability.LoginOutcomeNoServers)
				player.Disconnect(msgNoAvailableServers)
				return
			}
			h.countLogin(observability.LoginOutcomeSuccess)
			player.createConnectionRequest(toTry).fireAndForget()
		})
	})
}

// disconnected tears down whatever exists: the player handle if the
// handshake got far enough to create one, and the handshake context
// always. Both are idempotent.
func (h *authSessionHandler) disconnected() {
	if h.player != nil {
		h.player.teardown()
	}
	h.inbound.cleanup()
}
