// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package proxy

// User-facing disconnect messages. Kept in one place so translations
// stay consistent between the login core and the backend connector.
const (
	msgAlreadyConnected   = "You are already connected to this proxy!"
	msgInvalidPublicKey   = "Invalid public key."
	msgInvalidPlayerData  = "Invalid player data."
	msgNoAvailableServers = "There are no available servers to connect you to."
	msgUnableToConnect    = "Unable to connect you to the server. Please try again later."
)
