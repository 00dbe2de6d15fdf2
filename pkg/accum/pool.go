// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package accum reassembles fragmented transport frames into complete
// logical messages, one in-progress message per connection, drawn from a
// fixed pool of accumulator slots.
package accum

import (
	"errors"
	"sync"
)

// Kind tags a logical message with the opcode of its first frame. Only the
// first frame's kind matters; continuation frames are pure payload.
type Kind int

const (
	KindNone Kind = iota
	KindText
	KindBinary
)

// Pool and payload limit errors.
var (
	// ErrPoolExhausted is returned when every slot is claimed by another
	// live connection. The requester must be told; connections themselves
	// are not refused.
	ErrPoolExhausted = errors.New("accumulator pool exhausted")

	// ErrPayloadTooLarge is returned when a message declares, or grows to,
	// more than the pool's payload limit. The slot is reset, not released.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Frame is one transport-level delivery unit.
type Frame struct {
	First       bool // first frame of a new logical message
	Final       bool // last frame of the message
	Kind        Kind // opcode, meaningful on the first frame only
	DeclaredLen int  // announced total message length, 0 when unknown
	Payload     []byte
}

// Message is a fully reassembled logical message.
type Message struct {
	Kind Kind
	Data []byte
}

// slot accumulates one in-progress message for one connection.
type slot struct {
	id       uint64
	inUse    bool
	kind     Kind
	expected int
	buf      []byte
}

func (s *slot) reset() {
	s.buf = s.buf[:0]
	s.expected = 0
	s.kind = KindNone
}

// Pool is a fixed-capacity set of accumulator slots keyed by connection id.
// All methods are safe for concurrent use; each frame is ingested atomically
// with respect to other connections.
type Pool struct {
	mu         sync.Mutex
	maxPayload int
	slots      []slot
}

// NewPool creates a pool with size slots and a hard per-message payload cap.
func NewPool(size, maxPayload int) *Pool {
	return &Pool{
		maxPayload: maxPayload,
		slots:      make([]slot, size),
	}
}

// acquire returns the slot already owned by id, or claims a free one.
// Returns nil when the pool is exhausted. Caller holds p.mu.
func (p *Pool) acquire(id uint64) *slot {
	for i := range p.slots {
		if p.slots[i].inUse && p.slots[i].id == id {
			return &p.slots[i]
		}
	}
	for i := range p.slots {
		if !p.slots[i].inUse {
			s := &p.slots[i]
			s.inUse = true
			s.id = id
			s.reset()
			return s
		}
	}
	return nil
}

// Acquire claims a slot for a connection ahead of its first frame, as done
// on connect. Idempotent for an id that already owns a slot.
func (p *Pool) Acquire(id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquire(id) == nil {
		return ErrPoolExhausted
	}
	return nil
}

// Release frees the slot owned by id, typically on disconnect. Unknown ids
// are ignored.
func (p *Pool) Release(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.slots {
		if p.slots[i].inUse && p.slots[i].id == id {
			p.slots[i].inUse = false
			p.slots[i].reset()
			return
		}
	}
}

// InUse reports the number of claimed slots.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.slots {
		if p.slots[i].inUse {
			n++
		}
	}
	return n
}

// Ingest feeds one frame from the given connection into its accumulator.
// When the frame completes a logical message the message is returned and the
// slot is reset for the next one. A nil message with nil error means more
// frames are expected.
//
// Frames for one message arrive in order on their connection; the transport
// guarantees per-connection ordering only, so frames from different
// connections interleave freely.
func (p *Pool) Ingest(id uint64, f Frame) (*Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.acquire(id)
	if s == nil {
		return nil, ErrPoolExhausted
	}

	if f.First {
		s.reset()
		s.kind = f.Kind
		s.expected = f.DeclaredLen
		if s.expected > p.maxPayload {
			s.reset()
			return nil, ErrPayloadTooLarge
		}
		if s.expected > 0 && cap(s.buf) < s.expected {
			s.buf = make([]byte, 0, s.expected)
		}
	}

	s.buf = append(s.buf, f.Payload...)

	// The declared length is advisory; the running total is the backstop
	// when the transport cannot announce one.
	if len(s.buf) > p.maxPayload {
		s.reset()
		return nil, ErrPayloadTooLarge
	}

	if !f.Final {
		return nil, nil
	}

	msg := &Message{
		Kind: s.kind,
		Data: append([]byte(nil), s.buf...),
	}
	s.reset()
	return msg, nil
}
