// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// recorder captures replies and broadcasts for assertions.
type recorder struct {
	replies    []roboproto.Envelope
	broadcasts []roboproto.Envelope
}

func (r *recorder) Reply(e roboproto.Envelope)     { r.replies = append(r.replies, e) }
func (r *recorder) Broadcast(e roboproto.Envelope) { r.broadcasts = append(r.broadcasts, e) }

func TestDispatch_InvokesHandler(t *testing.T) {
	reg := NewRegistry(nil)
	var got roboproto.Envelope
	reg.Register("move", func(r Responder, e roboproto.Envelope) {
		got = e
		r.Reply(roboproto.StatusOK("move"))
	})

	rec := &recorder{}
	reg.Dispatch([]byte(`{"CMD":"move","x":"5","y":"-5"}`), rec)

	require.NotNil(t, got)
	assert.Equal(t, 5, got.Int("x", 0))
	assert.Equal(t, -5, got.Int("y", 0))
	require.Len(t, rec.replies, 1)
	assert.Equal(t, "move", rec.replies[0].Command())
	assert.Equal(t, "OK", rec.replies[0]["status"])
}

func TestDispatch_UnknownCommand(t *testing.T) {
	reg := NewRegistry(nil)
	invoked := false
	reg.Register("move", func(Responder, roboproto.Envelope) { invoked = true })

	rec := &recorder{}
	reg.Dispatch([]byte(`{"CMD":"fly"}`), rec)

	assert.False(t, invoked, "no handler may run for an unknown command")
	require.Len(t, rec.replies, 1)
	assert.Equal(t, roboproto.CmdError, rec.replies[0].Command())
	assert.Equal(t, "unknown command", rec.replies[0]["msg"])
	assert.Empty(t, rec.broadcasts, "errors go to the sender only")
}

func TestDispatch_CaseSensitiveLookup(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register("move", func(Responder, roboproto.Envelope) {
		t.Fatal("handler invoked for wrong-case command")
	})

	rec := &recorder{}
	reg.Dispatch([]byte(`{"CMD":"MOVE"}`), rec)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, roboproto.CmdError, rec.replies[0].Command())
}

func TestDispatch_MalformedPayload(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register("move", func(Responder, roboproto.Envelope) {
		t.Fatal("handler invoked for malformed payload")
	})

	rec := &recorder{}
	reg.Dispatch([]byte(`{"CMD":`), rec)
	require.Len(t, rec.replies, 1)
	assert.Equal(t, roboproto.CmdError, rec.replies[0].Command())
	assert.Contains(t, rec.replies[0]["msg"], "invalid json payload")
}

func TestCommands_Sorted(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register("move", nil)
	reg.Register("function", nil)
	reg.Register("reboot", nil)

	assert.Equal(t, []string{"function", "move", "reboot"}, reg.Commands())
}
