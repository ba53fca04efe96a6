// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package packet

import (
	"io"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// maxVarIntBytes is the longest legal VarInt encoding.
const maxVarIntBytes = 5

// maxStringLength bounds serverbound strings to keep a hostile client from
// forcing large allocations.
const maxStringLength = 32767

// ReadVarInt reads a protocol VarInt from r.
func ReadVarInt(r io.ByteReader) (int32, error) {
	var result int32
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, oops.In("packet").Wrap(err)
		}
		result |= int32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, oops.In("packet").Code("VARINT_TOO_LONG").New("varint exceeds 5 bytes")
}

// WriteVarInt writes v to w in protocol VarInt form.
func WriteVarInt(w io.ByteWriter, v int32) error {
	uv := uint32(v)
	for {
		b := byte(uv & 0x7F)
		uv >>= 7
		if uv != 0 {
			b |= 0x80
		}
		if err := w.WriteByte(b); err != nil {
			return oops.In("packet").Wrap(err)
		}
		if uv == 0 {
			return nil
		}
	}
}

// VarIntLen returns the encoded size of v in bytes.
func VarIntLen(v int32) int {
	uv := uint32(v)
	n := 1
	for uv >= 0x80 {
		uv >>= 7
		n++
	}
	return n
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

type byteWriter interface {
	io.Writer
	io.ByteWriter
}

// ReadString reads a VarInt-prefixed UTF-8 string.
func ReadString(r byteReader) (string, error) {
	length, err := ReadVarInt(r)
	if err != nil {
		return "", err
	}
	if length < 0 || length > maxStringLength {
		return "", oops.In("packet").
			Code("STRING_TOO_LONG").
			With("length", length).
			New("string length out of bounds")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", oops.In("packet").Wrap(err)
	}
	return string(buf), nil
}

// WriteString writes s as a VarInt-prefixed UTF-8 string.
func WriteString(w byteWriter, s string) error {
	if err := WriteVarInt(w, int32(len(s))); err != nil {
		return err
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return oops.In("packet").Wrap(err)
	}
	return nil
}

// ReadBool reads a single boolean byte.
func ReadBool(r io.ByteReader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, oops.In("packet").Wrap(err)
	}
	return b != 0, nil
}

// WriteBool writes a single boolean byte.
func WriteBool(w io.ByteWriter, v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	if err := w.WriteByte(b); err != nil {
		return oops.In("packet").Wrap(err)
	}
	return nil
}

// ReadUUID reads a 16-byte big-endian UUID.
func ReadUUID(r byteReader) (uuid.UUID, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return uuid.Nil, oops.In("packet").Wrap(err)
	}
	return uuid.UUID(buf), nil
}

// WriteUUID writes id as 16 big-endian bytes.
func WriteUUID(w byteWriter, id uuid.UUID) error {
	if _, err := w.Write(id[:]); err != nil {
		return oops.In("packet").Wrap(err)
	}
	return nil
}
