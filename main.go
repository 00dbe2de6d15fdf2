// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project
//
// RoBoRa Control Node
//
// The network-facing control node for the RoBoRa rover: a WebSocket command
// channel, firmware/filesystem update ingestion, and the client tools for
// driving, monitoring, and updating a node.

package main

import (
	"fmt"
	"os"

	"github.com/RoBoRa25/robora/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
