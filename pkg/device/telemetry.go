// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package device

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/params"
	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// Sampler produces one telemetry reading. Implementations fill the fields
// they know; zero values are broadcast as-is.
type Sampler interface {
	Sample() roboproto.Envelope
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() roboproto.Envelope

func (f SamplerFunc) Sample() roboproto.Envelope { return f() }

const minTelemetryRefresh = 50 * time.Millisecond

// Telemetry periodically broadcasts a CMD:"telemetry" envelope to all
// connected clients. The loop can be reconfigured live via Reload.
type Telemetry struct {
	sampler   Sampler
	broadcast func(roboproto.Envelope)
	log       *zap.Logger

	mu     sync.Mutex
	cfg    params.TelemetryConfig
	bumped chan struct{}
}

// NewTelemetry builds the loop. A nil sampler broadcasts bare envelopes,
// a nil logger is replaced with a no-op one.
func NewTelemetry(sampler Sampler, broadcast func(roboproto.Envelope), cfg params.TelemetryConfig, log *zap.Logger) *Telemetry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telemetry{
		sampler:   sampler,
		broadcast: broadcast,
		log:       log,
		cfg:       cfg,
		bumped:    make(chan struct{}, 1),
	}
}

// Reload swaps the loop configuration. The running loop picks it up on
// the next tick, or immediately when the interval changed.
func (t *Telemetry) Reload(cfg params.TelemetryConfig) {
	t.mu.Lock()
	t.cfg = cfg
	t.mu.Unlock()
	select {
	case t.bumped <- struct{}{}:
	default:
	}
}

func (t *Telemetry) config() params.TelemetryConfig {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// Run drives the loop until the context is cancelled.
func (t *Telemetry) Run(ctx context.Context) {
	for {
		cfg := t.config()
		interval := time.Duration(cfg.RefreshMs) * time.Millisecond
		if interval < minTelemetryRefresh {
			interval = minTelemetryRefresh
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-t.bumped:
			timer.Stop()
			continue
		case <-timer.C:
		}

		if !cfg.Enable {
			continue
		}
		env := roboproto.Envelope{}
		if t.sampler != nil {
			env = t.sampler.Sample()
		}
		if env == nil {
			env = roboproto.Envelope{}
		}
		env["CMD"] = roboproto.CmdTelemetry
		t.broadcast(env)
	}
}
