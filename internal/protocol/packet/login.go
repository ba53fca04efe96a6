// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package packet

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/samber/oops"

	"github.com/wardstone/wardstone/internal/profile"
	"github.com/wardstone/wardstone/internal/protocol"
)

// Login-state wire identifiers.
const (
	disconnectID        int32 = 0x00 // clientbound
	loginSuccessID      int32 = 0x02 // clientbound
	setCompressionID    int32 = 0x03 // clientbound
	loginStartID        int32 = 0x00 // serverbound
	loginAcknowledgedID int32 = 0x03 // serverbound
)

// Disconnect kicks the client with a JSON text reason. It is valid in
// both the login and config states under ID 0x00 by construction of the
// modern protocol, which is the only reason this core ever sends it.
type Disconnect struct {
	Reason string
}

func (*Disconnect) ID(state protocol.State) (int32, bool) {
	switch state {
	case protocol.StateLogin, protocol.StateConfig:
		return disconnectID, true
	}
	return 0, false
}

func (d *Disconnect) Encode(buf *bytes.Buffer, _ protocol.Version) error {
	reason, err := json.Marshal(map[string]string{"text": d.Reason})
	if err != nil {
		return oops.In("packet").Wrap(err)
	}
	return WriteString(buf, string(reason))
}

func (d *Disconnect) Decode(buf *bytes.Buffer, _ protocol.Version) error {
	raw, err := ReadString(buf)
	if err != nil {
		return err
	}
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		// Legacy servers send bare strings.
		d.Reason = raw
		return nil
	}
	d.Reason = body.Text
	return nil
}

// SetCompression announces the compression threshold. It must be the
// last packet written uncompressed; the connection switches its codec
// immediately after sending it.
type SetCompression struct {
	Threshold int32
}

func (*SetCompression) ID(state protocol.State) (int32, bool) {
	if state == protocol.StateLogin {
		return setCompressionID, true
	}
	return 0, false
}

func (s *SetCompression) Encode(buf *bytes.Buffer, _ protocol.Version) error {
	return WriteVarInt(buf, s.Threshold)
}

func (s *SetCompression) Decode(buf *bytes.Buffer, _ protocol.Version) error {
	t, err := ReadVarInt(buf)
	if err != nil {
		return err
	}
	s.Threshold = t
	return nil
}

// ServerLoginSuccess completes the login phase from the proxy's side:
// username, profile properties and UUID of the registered player.
type ServerLoginSuccess struct {
	UUID       uuid.UUID
	Username   string
	Properties []profile.Property
}

func (*ServerLoginSuccess) ID(state protocol.State) (int32, bool) {
	if state == protocol.StateLogin {
		return loginSuccessID, true
	}
	return 0, false
}

func (s *ServerLoginSuccess) Encode(buf *bytes.Buffer, _ protocol.Version) error {
	if err := WriteUUID(buf, s.UUID); err != nil {
		return err
	}
	if err := WriteString(buf, s.Username); err != nil {
		return err
	}
	if err := WriteVarInt(buf, int32(len(s.Properties))); err != nil {
		return err
	}
	for _, p := range s.Properties {
		if err := WriteString(buf, p.Name); err != nil {
			return err
		}
		if err := WriteString(buf, p.Value); err != nil {
			return err
		}
		if err := WriteBool(buf, p.Signature != ""); err != nil {
			return err
		}
		if p.Signature != "" {
			if err := WriteString(buf, p.Signature); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *ServerLoginSuccess) Decode(buf *bytes.Buffer, _ protocol.Version) error {
	id, err := ReadUUID(buf)
	if err != nil {
		return err
	}
	s.UUID = id
	if s.Username, err = ReadString(buf); err != nil {
		return err
	}
	count, err := ReadVarInt(buf)
	if err != nil {
		return err
	}
	s.Properties = make([]profile.Property, 0, count)
	for i := int32(0); i < count; i++ {
		var p profile.Property
		if p.Name, err = ReadString(buf); err != nil {
			return err
		}
		if p.Value, err = ReadString(buf); err != nil {
			return err
		}
		signed, err := ReadBool(buf)
		if err != nil {
			return err
		}
		if signed {
			if p.Signature, err = ReadString(buf); err != nil {
				return err
			}
		}
		s.Properties = append(s.Properties, p)
	}
	return nil
}

// LoginStart is the first serverbound login packet: the client's claimed
// username and, from 1.20.2 on, its claimed UUID.
type LoginStart struct {
	Username string
	UUID     uuid.UUID
}

func (*LoginStart) ID(state protocol.State) (int32, bool) {
	if state == protocol.StateLogin {
		return loginStartID, true
	}
	return 0, false
}

func (l *LoginStart) Encode(buf *bytes.Buffer, v protocol.Version) error {
	if err := WriteString(buf, l.Username); err != nil {
		return err
	}
	if v.GreaterEqual(protocol.Minecraft1_20_2) {
		return WriteUUID(buf, l.UUID)
	}
	return nil
}

func (l *LoginStart) Decode(buf *bytes.Buffer, v protocol.Version) error {
	name, err := ReadString(buf)
	if err != nil {
		return err
	}
	l.Username = name
	if v.GreaterEqual(protocol.Minecraft1_20_2) {
		if l.UUID, err = ReadUUID(buf); err != nil {
			return err
		}
	}
	return nil
}

// LoginAcknowledged is the client's confirmation of login success,
// moving the connection into the configuration phase. 1.20.2+.
type LoginAcknowledged struct{}

func (*LoginAcknowledged) ID(state protocol.State) (int32, bool) {
	if state == protocol.StateLogin {
		return loginAcknowledgedID, true
	}
	return 0, false
}

func (*LoginAcknowledged) Encode(*bytes.Buffer, protocol.Version) error { return nil }
func (*LoginAcknowledged) Decode(*bytes.Buffer, protocol.Version) error { return nil }
