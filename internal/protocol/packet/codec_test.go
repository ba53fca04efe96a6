// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package packet

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVarInt_RoundTrip(t *testing.T) {
	values := []int32{0, 1, 127, 128, 255, 300, 25565, 2097151, 2147483647, -1, -2147483648}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, WriteVarInt(&buf, v))
		assert.Equal(t, VarIntLen(v), buf.Len(), "encoded length mismatch for %d", v)

		got, err := ReadVarInt(&buf)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestVarInt_KnownEncodings(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, 300))
	assert.Equal(t, []byte{0xAC, 0x02}, buf.Bytes())

	buf.Reset()
	require.NoError(t, WriteVarInt(&buf, -1))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}, buf.Bytes())
}

func TestReadVarInt_TooLong(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	_, err := ReadVarInt(buf)
	assert.Error(t, err)
}

func TestString_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteString(&buf, "Steve"))

	got, err := ReadString(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Steve", got)
}

func TestReadString_RejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, maxStringLength+1))

	_, err := ReadString(&buf)
	assert.Error(t, err, "hostile length prefix must not cause an allocation")
}

func TestReadString_RejectsNegativeLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVarInt(&buf, -5))

	_, err := ReadString(&buf)
	assert.Error(t, err)
}

func TestUUID_RoundTrip(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")

	var buf bytes.Buffer
	require.NoError(t, WriteUUID(&buf, id))
	require.Equal(t, 16, buf.Len())

	got, err := ReadUUID(&buf)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestBool_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBool(&buf, true))
	require.NoError(t, WriteBool(&buf, false))

	v, err := ReadBool(&buf)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = ReadBool(&buf)
	require.NoError(t, err)
	assert.False(t, v)
}
