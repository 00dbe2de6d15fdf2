// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the command channel with a greeting round trip",
	Long: `Send hello_robora to the node and wait for the hello_webui greeting.

This is useful for verifying:
  - WebSocket connection is established
  - HTTP Basic authentication works
  - The node is dispatching commands

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 5, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("RoBoRa - Command Channel Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	// Consume the connect greeting so it cannot satisfy the first ping.
	conn.ReadTimeout(2 * time.Second)

	successCount := 0
	failCount := 0

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		startTime := time.Now()
		if err := conn.Send(roboproto.Envelope{"CMD": roboproto.CmdHello}); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		reply, err := waitForReply(conn, roboproto.CmdHelloReply, time.Duration(pingTimeout)*time.Second)
		if err != nil {
			fmt.Printf("%v\n", err)
			failCount++
			continue
		}

		rtt := time.Since(startTime)
		fmt.Printf("HELLO from %s (ver %s), rtt=%v\n",
			reply.String("server", "?"),
			reply.String("ver", "?"),
			rtt.Round(time.Millisecond))
		successCount++

		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d responses received, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// waitForReply reads until a message with the wanted CMD arrives, skipping
// broadcasts like telemetry and update events.
func waitForReply(conn *NodeConn, cmd string, timeout time.Duration) (roboproto.Envelope, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("TIMEOUT (no %s in %v)", cmd, timeout)
		}
		e, err := conn.ReadTimeout(remaining)
		if err != nil {
			return nil, fmt.Errorf("READ FAILED: %v", err)
		}
		if e.Command() == cmd {
			return e, nil
		}
	}
}
