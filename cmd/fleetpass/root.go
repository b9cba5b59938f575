// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the FleetPass CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleetpass",
		Short: "FleetPass - session and authentication service",
		Long: `FleetPass is the session and authentication service for a
multi-tenant fleet booking platform. It manages agency-scoped user
accounts, cookie-carried session tokens, and the server-side session
table behind them.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
