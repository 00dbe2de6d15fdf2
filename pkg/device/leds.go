// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package device

import "sync"

// LEDMode is the state of the body LED strip.
type LEDMode int

const (
	LEDOff LEDMode = iota
	LEDWhite
	LEDRed
	LEDGreen
	LEDBlue
	LEDRainbow
)

func (m LEDMode) String() string {
	switch m {
	case LEDWhite:
		return "white"
	case LEDRed:
		return "red"
	case LEDGreen:
		return "green"
	case LEDBlue:
		return "blue"
	case LEDRainbow:
		return "rainbow"
	default:
		return "off"
	}
}

// LEDs tracks the requested strip mode.
type LEDs struct {
	mu   sync.Mutex
	mode LEDMode
}

func NewLEDs() *LEDs {
	return &LEDs{}
}

func (l *LEDs) Set(mode LEDMode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.mode = mode
}

func (l *LEDs) Mode() LEDMode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mode
}

// BindDefaults registers the stock LED actions on the first fn key slots.
func (l *LEDs) BindDefaults(keys *FnKeys) {
	bind := func(idx int, name string, mode LEDMode) {
		keys.Bind(idx, FnAction{
			Name: name,
			On:   func() { l.Set(mode) },
			Off:  func() { l.Set(LEDOff) },
		})
	}
	bind(0, "led_white", LEDWhite)
	bind(1, "led_red", LEDRed)
	bind(2, "led_green", LEDGreen)
	bind(3, "led_blue", LEDBlue)
	bind(4, "led_rainbow", LEDRainbow)
}
