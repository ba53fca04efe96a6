// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

import (
	"github.com/wardstone/wardstone/internal/permission"
	"github.com/wardstone/wardstone/internal/profile"
)

// GameProfileRequestEvent is fired before the player handle exists, so
// extensions can replace the resolved profile wholesale (e.g. skin or
// name rewriting).
type GameProfileRequestEvent struct {
	inbound    *loginInbound
	original   profile.GameProfile
	onlineMode bool

	use *profile.GameProfile
}

// Original returns the profile the proxy resolved before any override.
func (e *GameProfileRequestEvent) Original() profile.GameProfile { return e.original }

// OnlineMode reports whether the player was credential-verified.
func (e *GameProfileRequestEvent) OnlineMode() bool { return e.onlineMode }

// VirtualHost returns the hostname the client used to reach the proxy.
func (e *GameProfileRequestEvent) VirtualHost() string { return e.inbound.virtualHost }

// SetGameProfile overrides the profile used for the rest of the login.
func (e *GameProfileRequestEvent) SetGameProfile(p profile.GameProfile) { e.use = &p }

// GameProfile returns the profile the login continues with.
func (e *GameProfileRequestEvent) GameProfile() profile.GameProfile {
	if e.use != nil {
		return *e.use
	}
	return e.original
}

// PermissionsSetupEvent is fired once per login so an extension can
// install the player's permission checker. If no handler sets a
// provider, the proxy-wide default applies.
type PermissionsSetupEvent struct {
	subject         permission.Subject
	defaultProvider permission.Provider

	provider permission.Provider
}

// Subject returns the player the permissions are being set up for.
func (e *PermissionsSetupEvent) Subject() permission.Subject { return e.subject }

// Provider returns the provider that will build the checker, falling
// back to the default when no handler supplied one.
func (e *PermissionsSetupEvent) Provider() permission.Provider {
	if e.provider == nil {
		return e.defaultProvider
	}
	return e.provider
}

// SetProvider overrides the permission provider. A nil provider is
// ignored.
func (e *PermissionsSetupEvent) SetProvider(p permission.Provider) {
	if p == nil {
		return
	}
	e.provider = p
}

// LoginEvent is fired after the player handle exists but before it is
// registered; a handler may veto the login with an explanation.
type LoginEvent struct {
	player Player

	denied bool
	reason string
}

// Player returns the player logging in.
func (e *LoginEvent) Player() Player { return e.player }

// Deny vetoes the login; the player is disconnected with reason.
func (e *LoginEvent) Deny(reason string) {
	e.denied = true
	e.reason = reason
}

// Allow clears a previous veto.
func (e *LoginEvent) Allow() {
	e.denied = false
	e.reason = ""
}

// Allowed reports whether the login may proceed.
func (e *LoginEvent) Allowed() bool { return !e.denied }

// Reason returns the veto explanation. Empty when Allowed.
func (e *LoginEvent) Reason() string { return e.reason }

// PostLoginEvent is fired once the player is registered and the login
// success packet has been sent.
type PostLoginEvent struct {
	player Player
}

// Player returns the logged-in player.
func (e *PostLoginEvent) Player() Player { return e.player }

// LoginStatus describes how far a disconnecting player got.
type LoginStatus uint8

const (
	// SuccessfulLoginStatus: the player completed login and was
	// registered when it disconnected.
	SuccessfulLoginStatus LoginStatus = iota
	// ConflictingLoginStatus: the player was disconnected because an
	// equivalent identity logged in.
	ConflictingLoginStatus
	// CanceledByUserLoginStatus: the client closed the connection before
	// registration completed.
	CanceledByUserLoginStatus
	// CanceledByProxyLoginStatus: the proxy disconnected the player.
	CanceledByProxyLoginStatus
	// CanceledByUserBeforeCompleteLoginStatus: the client closed the
	// connection while the login hook was still running; the player was
	// never registered.
	CanceledByUserBeforeCompleteLoginStatus
)

func (s LoginStatus) String() string {
	switch s {
	case SuccessfulLoginStatus:
		return "successful"
	case ConflictingLoginStatus:
		return "conflicting"
	case CanceledByUserLoginStatus:
		return "canceled_by_user"
	case CanceledByProxyLoginStatus:
		return "canceled_by_proxy"
	case CanceledByUserBeforeCompleteLoginStatus:
		return "canceled_by_user_before_complete"
	default:
		return "unknown"
	}
}

// DisconnectEvent is fired when a player's connection is gone.
type DisconnectEvent struct {
	player      Player
	loginStatus LoginStatus
}

// Player returns the disconnected player.
func (e *DisconnectEvent) Player() Player { return e.player }

// LoginStatus returns how far the login got before the disconnect.
func (e *DisconnectEvent) LoginStatus() LoginStatus { return e.loginStatus }

// PlayerChooseInitialServerEvent is fired when the login has finished
// and the proxy needs the first backend server for the player. Handlers
// may override the candidate computed from routing configuration.
type PlayerChooseInitialServerEvent struct {
	player        Player
	initialServer *RegisteredServer // may be nil if nothing is configured
}

// Player returns the player being routed.
func (e *PlayerChooseInitialServerEvent) Player() Player { return e.player }

// InitialServer returns the currently chosen server; nil means none.
func (e *PlayerChooseInitialServerEvent) InitialServer() *RegisteredServer {
	return e.initialServer
}

// SetInitialServer overrides the server the player is sent to.
func (e *PlayerChooseInitialServerEvent) SetInitialServer(s *RegisteredServer) {
	e.initialServer = s
}
