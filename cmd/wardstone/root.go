// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Wardstone Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Wardstone CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wardstone",
		Short: "Wardstone - A Minecraft proxy",
		Long: `Wardstone is a Minecraft proxy that completes client logins,
runs extension hooks and routes players to backend servers.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(NewCheckConfigCmd())

	return cmd
}

// NewCheckConfigCmd creates the check-config subcommand.
func NewCheckConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cmd.Printf("configuration ok: %d server(s), forwarding=%s\n",
				len(cfg.Servers), cfg.Forwarding)
			return nil
		},
	}
}
