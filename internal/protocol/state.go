// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package protocol

// State identifies a connection's protocol phase. The active session
// handler is always paired with exactly one state; swapping the handler
// swaps the state.
type State uint8

const (
	StateHandshake State = iota
	StateStatus
	StateLogin
	StateConfig
	StatePlay
)

func (s State) String() string {
	switch s {
	case StateHandshake:
		return "handshake"
	case StateStatus:
		return "status"
	case StateLogin:
		return "login"
	case StateConfig:
		return "config"
	case StatePlay:
		return "play"
	default:
		return "unknown"
	}
}
