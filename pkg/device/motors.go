// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package device holds the thin collaborators behind the command registry:
// the motor mixer, function keys, display model, LED state and the
// telemetry loop. None of them touch hardware here; they are the node-side
// models the command handlers act on.
package device

import (
	"sync"

	"github.com/RoBoRa25/robora/pkg/params"
)

// Input and output ranges of the mixer.
const (
	stickRange = 127 // joystick inputs clamp to [-127, 127]
	mixRange   = 100 // wheel targets scale to [-maxVel, maxVel], maxVel <= 100
)

// Motors mixes joystick input into left/right wheel targets. The mixing
// chain follows the drive configuration: deadzone, expo curve, tank or
// arcade mix, steer gain, per-side invert, and a maxVel ceiling.
type Motors struct {
	mu       sync.Mutex
	cfg      params.MotorConfig
	throttle int
	steer    int
	targetA  int
	targetB  int
}

// NewMotors creates a stopped mixer with the given configuration.
func NewMotors(cfg params.MotorConfig) *Motors {
	return &Motors{cfg: cfg}
}

// Reload swaps the configuration and stops the motors, matching the
// behaviour of a config_wr on the running rover.
func (m *Motors) Reload(cfg params.MotorConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.throttle, m.steer = 0, 0
	m.targetA, m.targetB = 0, 0
}

// Apply takes raw joystick throttle/steer in [-127, 127] and computes the
// wheel targets.
func (m *Motors) Apply(throttle, steer int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	throttle = clamp(throttle, -stickRange, stickRange)
	steer = clamp(steer, -stickRange, stickRange)
	m.throttle, m.steer = throttle, steer

	if m.cfg.TankInvThr {
		throttle = -throttle
	}
	if m.cfg.TankInvStr {
		steer = -steer
	}

	thr := m.shape(throttle)
	str := m.shape(steer)
	str = str * m.cfg.SteerGain / 100

	left := thr + str
	right := thr - str
	if m.cfg.ArcadeEnabled {
		// Arcade blending softens the inner wheel on combined input.
		k := m.cfg.ArcadeK
		left = left * (100 + k) / 200
		right = right * (100 + k) / 200
	}

	maxVel := clamp(m.cfg.MaxVel, 0, mixRange)
	left = clamp(left, -mixRange, mixRange) * maxVel / 100
	right = clamp(right, -mixRange, mixRange) * maxVel / 100

	if m.cfg.InvertA {
		left = -left
	}
	if m.cfg.InvertB {
		right = -right
	}

	m.targetA, m.targetB = left, right
}

// shape applies the deadzone and expo curve to one axis, scaling the
// surviving range to [-100, 100].
func (m *Motors) shape(v int) int {
	dz := m.cfg.Deadzone
	if v > -dz && v < dz {
		return 0
	}
	sign := 1
	if v < 0 {
		sign = -1
		v = -v
	}
	// Re-scale the band above the deadzone to the full output range.
	out := (v - dz) * mixRange / (stickRange - dz)
	if m.cfg.ExpoPct > 0 {
		linear := out * (100 - m.cfg.ExpoPct)
		curved := out * out * out / (mixRange * mixRange) * m.cfg.ExpoPct
		out = (linear + curved) / 100
	}
	return sign * out
}

// Stop zeros both wheel targets. Invoked when the last client disconnects.
func (m *Motors) Stop() {
	m.Apply(0, 0)
}

// Throttle returns the last raw throttle input.
func (m *Motors) Throttle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.throttle
}

// Steer returns the last raw steer input.
func (m *Motors) Steer() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.steer
}

// Targets returns the current left/right wheel targets.
func (m *Motors) Targets() (left, right int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.targetA, m.targetB
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
