// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package packet defines the login-phase wire packets and the framing
// codec used to move them over a connection.
package packet

import (
	"bytes"

	"github.com/wardstone/wardstone/internal/protocol"
)

// Direction indicates which peer a packet travels toward.
type Direction uint8

const (
	// Clientbound packets are written by the proxy to the client.
	Clientbound Direction = iota
	// Serverbound packets are read by the proxy from the client.
	Serverbound
)

// Packet is a decoded protocol packet.
type Packet interface {
	// ID returns the packet's wire identifier in the given state.
	ID(state protocol.State) (int32, bool)
	// Encode writes the packet body (without the ID) to buf.
	Encode(buf *bytes.Buffer, v protocol.Version) error
	// Decode reads the packet body (without the ID) from buf.
	Decode(buf *bytes.Buffer, v protocol.Version) error
}

// Decoded wraps the result of reading one frame from the wire. Packet is
// nil when the frame's ID is not registered for the connection's current
// state; Payload always carries the raw body.
type Decoded struct {
	ID      int32
	Packet  Packet
	Payload []byte
}

// newPacket constructs an empty packet for a wire ID in the given
// direction and state, or nil if the ID is not recognized there. Only
// the states this proxy core participates in are registered; everything
// else is intentionally unknown and treated as a protocol violation by
// the session layer.
func newPacket(d Direction, state protocol.State, id int32) Packet {
	if d == Serverbound {
		switch state {
		case protocol.StateHandshake:
			if id == handshakeID {
				return &Handshake{}
			}
		case protocol.StateLogin:
			switch id {
			case loginStartID:
				return &LoginStart{}
			case loginAcknowledgedID:
				return &LoginAcknowledged{}
			}
		}
		return nil
	}
	switch state {
	case protocol.StateLogin:
		switch id {
		case disconnectID:
			return &Disconnect{}
		case loginSuccessID:
			return &ServerLoginSuccess{}
		case setCompressionID:
			return &SetCompression{}
		}
	case protocol.StateConfig:
		if id == disconnectID {
			return &Disconnect{}
		}
	}
	return nil
}
