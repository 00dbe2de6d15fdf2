// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

var (
	// WebSocket connection flags, shared by every client subcommand
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool
)

var rootCmd = &cobra.Command{
	Use:   "robora",
	Short: "RoBoRa rover control node and client tools",
	Long: `RoBoRa - control node and client tools for the RoBoRa rover.

The serve command runs the node itself: the WebSocket command channel and
the firmware/filesystem update ingress. The remaining commands are clients
that talk to a running node.

Client connection:
  --url ws://rover.local:8080/ws [--username user]

For WebSocket authentication, the password is read from the ROBORA_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell
history.`,
	Version: roboproto.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "Node WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
