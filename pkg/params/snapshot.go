// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package params

// MotorConfig is a point-in-time snapshot of the motor mixing parameters.
type MotorConfig struct {
	MaxVel        int
	Deadzone      int
	ExpoPct       int
	SteerGain     int
	ArcadeK       int
	ArcadeEnabled bool
	InvertA       bool
	InvertB       bool
	TankInvThr    bool
	TankInvStr    bool
}

// TelemetryConfig is a snapshot of the telemetry loop parameters.
type TelemetryConfig struct {
	Enable    bool
	RefreshMs int
}

// MotorConfig reads the motor namespace into a snapshot. Unreadable values
// fall back to defaults; a corrupt store never stalls the drive path.
func (s *Store) MotorConfig() MotorConfig {
	geti := func(key string) int { n, _ := s.GetInt(key); return n }
	getb := func(key string) bool { b, _ := s.GetBool(key); return b }
	return MotorConfig{
		MaxVel:        geti("maxVel"),
		Deadzone:      geti("deadzone"),
		ExpoPct:       geti("expoPct"),
		SteerGain:     geti("SteerGain"),
		ArcadeK:       geti("arcadeK"),
		ArcadeEnabled: getb("arcadeEnabled"),
		InvertA:       getb("invertA"),
		InvertB:       getb("invertB"),
		TankInvThr:    getb("tankInvThr"),
		TankInvStr:    getb("tankInvStr"),
	}
}

// TelemetryConfig reads the telemetry namespace into a snapshot.
func (s *Store) TelemetryConfig() TelemetryConfig {
	enable, _ := s.GetBool("enable")
	refresh, _ := s.GetInt("refresh")
	return TelemetryConfig{Enable: enable, RefreshMs: refresh}
}
