// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package sched runs a single action after a delay, decoupled from the
// request that scheduled it. The node uses it for deferred restarts so the
// triggering reply can still reach the wire.
package sched

import (
	"sync"
	"time"
)

// Action is a pending single-shot deferred action.
type Action struct {
	timer *time.Timer
	once  sync.Once
	fired chan struct{}
}

// After schedules fn to run exactly once, on its own goroutine, after at
// least delay has elapsed. Best-effort: if the process ends first, fn is
// simply never observed.
func After(delay time.Duration, fn func()) *Action {
	a := &Action{fired: make(chan struct{})}
	a.timer = time.AfterFunc(delay, func() {
		a.once.Do(func() {
			fn()
			close(a.fired)
		})
	})
	return a
}

// Stop cancels the action if it has not started. Returns true when the
// action will never run.
func (a *Action) Stop() bool {
	stopped := a.timer.Stop()
	if stopped {
		a.once.Do(func() { close(a.fired) })
	}
	return stopped
}

// Done reports completion or cancellation; useful for tests.
func (a *Action) Done() <-chan struct{} {
	return a.fired
}
