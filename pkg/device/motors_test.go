// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package device

import (
	"testing"

	"github.com/RoBoRa25/robora/pkg/params"
)

func tankCfg() params.MotorConfig {
	return params.MotorConfig{
		MaxVel:     100,
		Deadzone:   5,
		SteerGain:  100,
		TankInvStr: true,
	}
}

// ============================================================================
// Mixing
// ============================================================================

func TestMotorsDeadzone(t *testing.T) {
	m := NewMotors(tankCfg())
	for _, v := range []int{-4, 0, 4} {
		m.Apply(v, 0)
		l, r := m.Targets()
		if l != 0 || r != 0 {
			t.Errorf("Apply(%d, 0): targets = (%d, %d), want (0, 0)", v, l, r)
		}
	}
}

func TestMotorsFullThrottle(t *testing.T) {
	m := NewMotors(tankCfg())
	m.Apply(127, 0)
	l, r := m.Targets()
	if l != 100 || r != 100 {
		t.Errorf("targets = (%d, %d), want (100, 100)", l, r)
	}
}

func TestMotorsInputClamped(t *testing.T) {
	m := NewMotors(tankCfg())
	m.Apply(500, -500)
	if m.Throttle() != 127 {
		t.Errorf("throttle = %d, want 127", m.Throttle())
	}
	if m.Steer() != -127 {
		t.Errorf("steer = %d, want -127", m.Steer())
	}
}

func TestMotorsMaxVelCeiling(t *testing.T) {
	cfg := tankCfg()
	cfg.MaxVel = 60
	m := NewMotors(cfg)
	m.Apply(127, 0)
	l, r := m.Targets()
	if l != 60 || r != 60 {
		t.Errorf("targets = (%d, %d), want (60, 60)", l, r)
	}
}

func TestMotorsSteerOpposesSides(t *testing.T) {
	m := NewMotors(tankCfg())
	m.Apply(0, 127)
	l, r := m.Targets()
	if l >= 0 || r <= 0 {
		t.Errorf("targets = (%d, %d), want opposite signs", l, r)
	}
	if l != -r {
		t.Errorf("pure steer not symmetric: (%d, %d)", l, r)
	}
}

func TestMotorsInvert(t *testing.T) {
	cfg := tankCfg()
	cfg.InvertA = true
	m := NewMotors(cfg)
	m.Apply(127, 0)
	l, r := m.Targets()
	if l != -100 || r != 100 {
		t.Errorf("targets = (%d, %d), want (-100, 100)", l, r)
	}
}

func TestMotorsExpoSoftensMidrange(t *testing.T) {
	linear := NewMotors(tankCfg())
	cfg := tankCfg()
	cfg.ExpoPct = 50
	curved := NewMotors(cfg)

	linear.Apply(64, 0)
	curved.Apply(64, 0)
	ll, _ := linear.Targets()
	cl, _ := curved.Targets()
	if cl >= ll {
		t.Errorf("expo target %d not below linear %d at half stick", cl, ll)
	}

	linear.Apply(127, 0)
	curved.Apply(127, 0)
	ll, _ = linear.Targets()
	cl, _ = curved.Targets()
	if cl != ll {
		t.Errorf("expo target %d differs from linear %d at full stick", cl, ll)
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestMotorsStop(t *testing.T) {
	m := NewMotors(tankCfg())
	m.Apply(100, 50)
	m.Stop()
	l, r := m.Targets()
	if l != 0 || r != 0 {
		t.Errorf("targets after Stop = (%d, %d), want (0, 0)", l, r)
	}
}

func TestMotorsReloadStops(t *testing.T) {
	m := NewMotors(tankCfg())
	m.Apply(100, 0)
	cfg := tankCfg()
	cfg.MaxVel = 50
	m.Reload(cfg)
	l, r := m.Targets()
	if l != 0 || r != 0 {
		t.Errorf("targets after Reload = (%d, %d), want (0, 0)", l, r)
	}
	m.Apply(127, 0)
	l, _ = m.Targets()
	if l != 50 {
		t.Errorf("target after reload = %d, want 50", l)
	}
}
