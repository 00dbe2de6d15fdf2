// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package roboproto

// Update event builders. Events are value envelopes, fully derived from the
// session state at emission time and never mutated afterwards.

// StartEvent announces a new update session. total is the declared stream
// length (0 when unknown), max the capacity of the resolved partition.
func StartEvent(target string, total, max int64, partLabel string) Envelope {
	e := Envelope{
		"CMD":    CmdOTA,
		"event":  EventStart,
		"target": target,
		"total":  total,
		"max":    max,
	}
	if partLabel != "" {
		e["part"] = partLabel
	}
	return e
}

// RejectEvent announces that an update was refused before or during writing.
func RejectEvent(reason string) Envelope {
	return Envelope{
		"CMD":    CmdOTA,
		"event":  EventReject,
		"reason": reason,
	}
}

// ProgressEvent reports bytes written so far against the expected total.
func ProgressEvent(done, total int64) Envelope {
	return Envelope{
		"CMD":   CmdOTA,
		"event": EventProgress,
		"done":  done,
		"total": total,
	}
}

// EndEvent terminates an update session. Exactly one end event is emitted
// per session that reached the writing phase.
func EndEvent(ok bool, message string) Envelope {
	return Envelope{
		"CMD":     CmdOTA,
		"event":   EventEnd,
		"ok":      ok,
		"message": message,
	}
}
