// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package device

import "sync"

// MaxDisplayLines is the tallest message the panel can show.
const MaxDisplayLines = 8

// DefaultScrollDelayMs is the per-frame scroll delay when the client does
// not supply one.
const DefaultScrollDelayMs = 1500

// DisplayMessage is one message for the front panel.
type DisplayMessage struct {
	Lines    []string
	Size     int // font size step, 1..3
	Invert   bool
	Truncate bool // cut long lines instead of wrapping
	Scroll   bool
	DelayMs  int // per-frame delay when scrolling
	Loop     bool
}

// Display models the front panel message buffer. Loading a message
// replaces the previous one wholesale.
type Display struct {
	mu  sync.Mutex
	msg DisplayMessage
	set bool
}

func NewDisplay() *Display {
	return &Display{}
}

// Load replaces the current message. Extra lines beyond the panel height
// are dropped, the font size is clamped to the supported steps.
func (d *Display) Load(msg DisplayMessage) {
	if len(msg.Lines) > MaxDisplayLines {
		msg.Lines = msg.Lines[:MaxDisplayLines]
	}
	msg.Size = clamp(msg.Size, 1, 3)
	if msg.DelayMs < 0 {
		msg.DelayMs = 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msg = msg
	d.set = true
}

// Clear empties the panel.
func (d *Display) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.msg = DisplayMessage{}
	d.set = false
}

// Current returns the loaded message, and whether one is set.
func (d *Display) Current() (DisplayMessage, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msg := d.msg
	msg.Lines = append([]string(nil), d.msg.Lines...)
	return msg, d.set
}
