// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package roboproto

// Reply builders for the node side of the command channel. These ensure
// replies always mirror the command name and keep field naming consistent
// with what the web UI expects.

// ErrorReply builds the {CMD:"error"} envelope sent to the offending client
// only, never broadcast.
func ErrorReply(msg string) Envelope {
	return Envelope{"CMD": CmdError, "msg": msg}
}

// AckReply acknowledges a command that has no payload to return.
func AckReply(msg string) Envelope {
	return Envelope{"CMD": CmdAck, "msg": msg}
}

// HelloReply is the greeting sent on connect and in response to CmdHello.
func HelloReply(server string) Envelope {
	return Envelope{"CMD": CmdHelloReply, "server": server, "ver": Version}
}

// StatusOK builds the conventional {CMD:<cmd>, status:"OK"} reply.
func StatusOK(cmd string) Envelope {
	return Envelope{"CMD": cmd, "status": "OK"}
}
