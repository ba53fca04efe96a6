// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package packet

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"io"
	"sync"

	"github.com/samber/oops"

	"github.com/wardstone/wardstone/internal/protocol"
)

// maxFrameLength bounds inbound frames. Login-phase packets are tiny;
// anything larger is hostile.
const maxFrameLength = 1 << 21

// Encoder frames and writes packets. It is not safe for concurrent use;
// the connection serializes writes around it.
type Encoder struct {
	w         io.Writer
	state     protocol.State
	version   protocol.Version
	threshold int32
}

// NewEncoder creates an encoder with compression disabled.
func NewEncoder(w io.Writer, v protocol.Version) *Encoder {
	return &Encoder{w: w, state: protocol.StateHandshake, version: v, threshold: -1}
}

// SetState switches the state used to resolve packet IDs.
func (e *Encoder) SetState(s protocol.State) { e.state = s }

// SetVersion fixes the protocol version once the handshake negotiated it.
func (e *Encoder) SetVersion(v protocol.Version) { e.version = v }

// SetCompressionThreshold enables compressed framing for all subsequent
// packets. The caller is responsible for announcing the threshold to the
// peer before switching.
func (e *Encoder) SetCompressionThreshold(threshold int32) { e.threshold = threshold }

// WritePacket frames and writes p.
func (e *Encoder) WritePacket(p Packet) error {
	id, ok := p.ID(e.state)
	if !ok {
		return oops.In("packet").
			Code("BAD_PACKET_STATE").
			With("state", e.state.String()).
			Errorf("packet %T not registered for state", p)
	}

	var body bytes.Buffer
	if err := WriteVarInt(&body, id); err != nil {
		return err
	}
	if err := p.Encode(&body, e.version); err != nil {
		return err
	}

	var frame bytes.Buffer
	if e.threshold < 0 {
		if err := WriteVarInt(&frame, int32(body.Len())); err != nil {
			return err
		}
		frame.Write(body.Bytes())
	} else if err := e.writeCompressed(&frame, body.Bytes()); err != nil {
		return err
	}

	if _, err := e.w.Write(frame.Bytes()); err != nil {
		return oops.In("packet").Wrap(err)
	}
	return nil
}

// writeCompressed writes the post-negotiation frame format: packets below
// the threshold travel uncompressed with a zero data-length marker.
func (e *Encoder) writeCompressed(frame *bytes.Buffer, body []byte) error {
	if int32(len(body)) < e.threshold {
		if err := WriteVarInt(frame, int32(len(body))+1); err != nil {
			return err
		}
		if err := WriteVarInt(frame, 0); err != nil {
			return err
		}
		frame.Write(body)
		return nil
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body); err != nil {
		return oops.In("packet").Wrap(err)
	}
	if err := zw.Close(); err != nil {
		return oops.In("packet").Wrap(err)
	}

	dataLen := int32(len(body))
	if err := WriteVarInt(frame, int32(VarIntLen(dataLen)+compressed.Len())); err != nil {
		return err
	}
	if err := WriteVarInt(frame, dataLen); err != nil {
		return err
	}
	frame.Write(compressed.Bytes())
	return nil
}

// Decoder reads and decodes frames travelling in one direction. Reads
// are driven by the connection's single reader goroutine; the setters
// may be called from the connection's event loop and take effect for the
// next frame.
type Decoder struct {
	r         *bufio.Reader
	direction Direction

	mu        sync.Mutex
	state     protocol.State
	version   protocol.Version
	threshold int32
}

// NewDecoder creates a decoder with compression disabled.
func NewDecoder(r io.Reader, d Direction, v protocol.Version) *Decoder {
	return &Decoder{
		r:         bufio.NewReader(r),
		direction: d,
		state:     protocol.StateHandshake,
		version:   v,
		threshold: -1,
	}
}

// SetState switches the state used to resolve packet IDs.
func (d *Decoder) SetState(s protocol.State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// SetVersion fixes the protocol version once the handshake negotiated it.
func (d *Decoder) SetVersion(v protocol.Version) {
	d.mu.Lock()
	d.version = v
	d.mu.Unlock()
}

// SetCompressionThreshold enables compressed framing for all subsequent
// reads.
func (d *Decoder) SetCompressionThreshold(threshold int32) {
	d.mu.Lock()
	d.threshold = threshold
	d.mu.Unlock()
}

// ReadPacket reads one frame and decodes it if the wire ID is known in
// the current state. Unknown IDs yield a Decoded with a nil Packet; the
// session layer decides what an unexpected packet means.
func (d *Decoder) ReadPacket() (*Decoded, error) {
	frameLen, err := ReadVarInt(d.r)
	if err != nil {
		return nil, err
	}
	if frameLen <= 0 || frameLen > maxFrameLength {
		return nil, oops.In("packet").
			Code("BAD_FRAME_LENGTH").
			With("length", frameLen).
			New("frame length out of bounds")
	}
	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(d.r, frame); err != nil {
		return nil, oops.In("packet").Wrap(err)
	}

	d.mu.Lock()
	state, version, threshold := d.state, d.version, d.threshold
	d.mu.Unlock()

	body := bytes.NewBuffer(frame)
	if threshold >= 0 {
		if body, err = d.inflate(body); err != nil {
			return nil, err
		}
	}

	id, err := ReadVarInt(body)
	if err != nil {
		return nil, err
	}
	decoded := &Decoded{ID: id, Payload: body.Bytes()}

	p := newPacket(d.direction, state, id)
	if p == nil {
		return decoded, nil
	}
	if err := p.Decode(body, version); err != nil {
		return nil, err
	}
	decoded.Packet = p
	return decoded, nil
}

// inflate unwraps the compressed frame format.
func (d *Decoder) inflate(frame *bytes.Buffer) (*bytes.Buffer, error) {
	dataLen, err := ReadVarInt(frame)
	if err != nil {
		return nil, err
	}
	if dataLen == 0 {
		return frame, nil
	}
	if dataLen < 0 || dataLen > maxFrameLength {
		return nil, oops.In("packet").
			Code("BAD_DATA_LENGTH").
			With("length", dataLen).
			New("uncompressed length out of bounds")
	}
	zr, err := zlib.NewReader(frame)
	if err != nil {
		return nil, oops.In("packet").Wrap(err)
	}
	defer zr.Close()
	data := make([]byte, dataLen)
	if _, err := io.ReadFull(zr, data); err != nil {
		return nil, oops.In("packet").Wrap(err)
	}
	return bytes.NewBuffer(data), nil
}
