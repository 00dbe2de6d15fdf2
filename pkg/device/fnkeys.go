// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package device

import (
	"fmt"
	"sync"
)

// FnAction is a named on/off action bound to a function key slot.
type FnAction struct {
	Name string
	On   func()
	Off  func()
}

// MaxFnKeys is the number of function key slots exposed to clients.
const MaxFnKeys = 8

// FnKeys maps the web UI function buttons to named actions.
type FnKeys struct {
	mu      sync.Mutex
	actions [MaxFnKeys]*FnAction
	state   [MaxFnKeys]bool
}

func NewFnKeys() *FnKeys {
	return &FnKeys{}
}

// Bind assigns an action to a slot, replacing any previous binding.
func (f *FnKeys) Bind(idx int, a FnAction) error {
	if idx < 0 || idx >= MaxFnKeys {
		return fmt.Errorf("fn key %d out of range", idx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions[idx] = &a
	f.state[idx] = false
	return nil
}

// Set switches a slot on or off, running the bound action. Setting an
// unbound slot only records the state.
func (f *FnKeys) Set(idx int, on bool) error {
	if idx < 0 || idx >= MaxFnKeys {
		return fmt.Errorf("fn key %d out of range", idx)
	}
	f.mu.Lock()
	a := f.actions[idx]
	f.state[idx] = on
	f.mu.Unlock()

	if a == nil {
		return nil
	}
	if on {
		if a.On != nil {
			a.On()
		}
	} else if a.Off != nil {
		a.Off()
	}
	return nil
}

// State reports whether a slot is currently on.
func (f *FnKeys) State(idx int) bool {
	if idx < 0 || idx >= MaxFnKeys {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state[idx]
}

// Names lists the bound action per slot, empty string for unbound slots.
func (f *FnKeys) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, MaxFnKeys)
	for i, a := range f.actions {
		if a != nil {
			out[i] = a.Name
		}
	}
	return out
}
