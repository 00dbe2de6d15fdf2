// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package roboproto defines the RoBoRa command-channel message family.
//
// Every message on the channel is a JSON object carrying a mandatory "CMD"
// field. Commands flow from clients to the node; replies mirror the command
// name. Update pipeline status is broadcast as the "ota" message family with
// an "event" discriminator. This package provides the envelope codec, the
// command and event name constants, and builders for the replies the node
// emits.
package roboproto

import "time"

// Version reported in greetings and info replies.
const Version = "2.0.0"

// Channel limits. A single logical message may never exceed MaxMessageSize
// once reassembled; MaxClients bounds the accumulator pool.
const (
	MaxClients     = 4
	MaxMessageSize = 8 * 1024
)

// Commands (client → node).
const (
	CmdHello       = "hello_robora"
	CmdReboot      = "reboot"
	CmdConfigReq   = "config_req"
	CmdConfigRead  = "config_rd"
	CmdConfigWrite = "config_wr"
	CmdInfoReq     = "info_req"
	CmdMove        = "move"
	CmdFunction    = "function"
	CmdResetMemory = "reset_memory"
	CmdDisplayMsg  = "displaymsg"
)

// Replies and broadcasts (node → client).
const (
	CmdHelloReply = "hello_webui"
	CmdAck        = "ack"
	CmdError      = "error"
	CmdInfo       = "info"
	CmdOTA        = "ota"
	CmdTelemetry  = "telemetry"
)

// Update event discriminators carried in the "event" field of CmdOTA
// messages.
const (
	EventStart    = "start"
	EventReject   = "reject"
	EventProgress = "progress"
	EventEnd      = "end"
)

// Update targets carried in the X-Update-Target header and the "target"
// field of start events.
const (
	TargetApp = "app"
	TargetFS  = "fs"
)

// Restart delays. The reply to the triggering request must reach the wire
// before the process goes down, so both are comfortably above a broadcast
// flush.
const (
	RebootDelayCommand = 500 * time.Millisecond
	RebootDelayUpdate  = 700 * time.Millisecond
)
