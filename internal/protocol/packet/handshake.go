// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package packet

import (
	"bytes"
	"encoding/binary"

	"github.com/samber/oops"

	"github.com/wardstone/wardstone/internal/protocol"
)

const handshakeID int32 = 0x00

// Handshake intents.
const (
	StatusIntent int32 = 1
	LoginIntent  int32 = 2
)

// Handshake opens every connection: the client's protocol version, the
// virtual host it dialed, and whether it wants status or login.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	Port            uint16
	NextState       int32
}

func (*Handshake) ID(state protocol.State) (int32, bool) {
	if state == protocol.StateHandshake {
		return handshakeID, true
	}
	return 0, false
}

func (h *Handshake) Encode(buf *bytes.Buffer, _ protocol.Version) error {
	if err := WriteVarInt(buf, h.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteString(buf, h.ServerAddress); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, h.Port); err != nil {
		return oops.In("packet").Wrap(err)
	}
	return WriteVarInt(buf, h.NextState)
}

func (h *Handshake) Decode(buf *bytes.Buffer, _ protocol.Version) error {
	var err error
	if h.ProtocolVersion, err = ReadVarInt(buf); err != nil {
		return err
	}
	if h.ServerAddress, err = ReadString(buf); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.BigEndian, &h.Port); err != nil {
		return oops.In("packet").Wrap(err)
	}
	h.NextState, err = ReadVarInt(buf)
	return err
}
