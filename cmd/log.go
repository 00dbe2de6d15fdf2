// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Display node broadcasts in human-readable format",
	Long: `Continuously print command-channel messages as they arrive.

Each line carries a timestamp and the raw JSON of the message. Useful for
watching telemetry and update events from a script or a terminal.`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("RoBoRa - Message Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for {
		e, err := conn.Read()
		if err != nil {
			fmt.Printf("Connection closed: %v\n", err)
			return nil
		}
		payload, err := e.Encode()
		if err != nil {
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}
		fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), payload)
	}
}
