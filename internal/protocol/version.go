// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package protocol defines Minecraft protocol versions and connection states.
package protocol

import "fmt"

// Version is a Minecraft protocol version number.
type Version int32

// Named protocol versions relevant to login handling.
const (
	// Minecraft1_8 introduced packet compression.
	Minecraft1_8 Version = 47
	// Minecraft1_19 introduced signed player identity keys.
	Minecraft1_19 Version = 759
	// Minecraft1_20_2 introduced the configuration phase: clients at or
	// above this version must acknowledge login success before the proxy
	// may advance past the login state.
	Minecraft1_20_2 Version = 764
)

// versionNames maps known protocol versions to their release names.
var versionNames = map[Version]string{
	Minecraft1_8:    "1.8",
	Minecraft1_19:   "1.19",
	Minecraft1_20_2: "1.20.2",
}

// GreaterEqual reports whether v is at least other.
func (v Version) GreaterEqual(other Version) bool { return v >= other }

// Lower reports whether v is below other.
func (v Version) Lower(other Version) bool { return v < other }

// SupportsCompression reports whether the version understands the
// set-compression packet.
func (v Version) SupportsCompression() bool { return v.GreaterEqual(Minecraft1_8) }

// RequiresLoginAcknowledgement reports whether the client must confirm
// login success before the connection leaves the login state.
func (v Version) RequiresLoginAcknowledgement() bool { return v.GreaterEqual(Minecraft1_20_2) }

func (v Version) String() string {
	if name, ok := versionNames[v]; ok {
		return name
	}
	return fmt.Sprintf("protocol %d", int32(v))
}
