// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

// Package config loads and validates the proxy configuration from
// defaults, an optional YAML file and command-line flags, in that order
// of increasing precedence.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// ForwardingMode controls how player info reaches backend servers.
type ForwardingMode string

const (
	// ForwardNone sends nothing; backends see every player as offline.
	ForwardNone ForwardingMode = "none"
	// ForwardLegacy appends player info to the handshake address.
	ForwardLegacy ForwardingMode = "legacy"
	// ForwardModern uses the cryptographically signed forwarding channel.
	ForwardModern ForwardingMode = "modern"
)

// Config is the proxy configuration.
type Config struct {
	// Bind is the listen address for game connections.
	Bind string `koanf:"bind"`
	// OnlineMode controls whether players are expected to have been
	// verified against the session servers before login completion.
	OnlineMode bool `koanf:"online-mode"`
	// Forwarding selects the player-info forwarding mode.
	Forwarding ForwardingMode `koanf:"forwarding"`
	// CompressionThreshold is the minimum packet size to compress;
	// negative disables compression entirely.
	CompressionThreshold int32 `koanf:"compression-threshold"`
	// Servers maps backend server names to their addresses.
	Servers map[string]string `koanf:"servers"`
	// Try is the ordered list of server names to try for new players.
	Try []string `koanf:"try"`
	// ForcedHosts overrides the try list per virtual host.
	ForcedHosts map[string][]string `koanf:"forced-hosts"`
	// MetricsAddr is the observability HTTP address; empty disables it.
	MetricsAddr string `koanf:"metrics-addr"`
	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log-format"`
}

// Default values applied before any file or flag overrides.
func defaults() Config {
	return Config{
		Bind:                 ":25565",
		OnlineMode:           true,
		Forwarding:           ForwardNone,
		CompressionThreshold: 256,
		Servers:              map[string]string{},
		MetricsAddr:          "127.0.0.1:9100",
		LogFormat:            "json",
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (if non-empty) and the given flag set (if non-nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	cfg := defaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, oops.In("config").
				Code("CONFIG_FILE_NOT_FOUND").
				With("path", path).
				Wrap(err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.In("config").
				Code("CONFIG_PARSE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.In("config").Code("FLAG_LOAD_FAILED").Wrap(err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Bind == "" {
		return oops.In("config").Code("EMPTY_BIND").New("bind address is required")
	}
	switch c.Forwarding {
	case ForwardNone, ForwardLegacy, ForwardModern:
	default:
		return oops.In("config").
			Code("BAD_FORWARDING_MODE").
			With("forwarding", string(c.Forwarding)).
			New("forwarding must be none, legacy or modern")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.In("config").
			Code("BAD_LOG_FORMAT").
			With("log-format", c.LogFormat).
			New("log-format must be 'json' or 'text'")
	}
	for _, name := range c.Try {
		if _, ok := c.Servers[name]; !ok {
			return oops.In("config").
				Code("UNKNOWN_TRY_SERVER").
				With("server", name).
				New("try list references an unconfigured server")
		}
	}
	for host, servers := range c.ForcedHosts {
		for _, name := range servers {
			if _, ok := c.Servers[name]; !ok {
				return oops.In("config").
					Code("UNKNOWN_FORCED_HOST_SERVER").
					With("host", host).
					With("server", name).
					New("forced host references an unconfigured server")
			}
		}
	}
	return nil
}
