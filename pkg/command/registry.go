// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package command routes decoded command-channel messages to named handlers.
package command

import (
	"sort"

	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// Responder lets a handler answer the originating connection or address
// every open connection.
type Responder interface {
	Reply(e roboproto.Envelope)
	Broadcast(e roboproto.Envelope)
}

// HandlerFunc processes one decoded message. Handlers run on the execution
// context draining the transport: a stalled handler stalls message
// processing for every connection, so handlers must return promptly and
// push long work elsewhere.
type HandlerFunc func(r Responder, e roboproto.Envelope)

// Registry maps command names to handlers. Lookup is exact and
// case-sensitive. Register all handlers before serving; the map is read-only
// afterwards and needs no locking.
type Registry struct {
	handlers map[string]HandlerFunc
	log      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
}

// Register binds a handler to a command name, replacing any previous binding.
func (reg *Registry) Register(name string, h HandlerFunc) {
	reg.handlers[name] = h
}

// Commands returns the registered command names, sorted.
func (reg *Registry) Commands() []string {
	names := make([]string, 0, len(reg.handlers))
	for name := range reg.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch decodes a reassembled text message and invokes the matching
// handler. Decoding failures and unknown commands are answered with an
// error envelope to the sender only; no handler runs and no state changes.
func (reg *Registry) Dispatch(payload []byte, r Responder) {
	e, err := roboproto.Decode(payload)
	if err != nil {
		reg.log.Debug("undecodable message", zap.Error(err))
		r.Reply(roboproto.ErrorReply(err.Error()))
		return
	}

	name := e.Command()
	h, ok := reg.handlers[name]
	if !ok {
		reg.log.Debug("unknown command", zap.String("cmd", name))
		r.Reply(roboproto.ErrorReply("unknown command"))
		return
	}
	h(r, e)
}
