// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package update owns the firmware/filesystem update pipeline: a single
// session state machine fed by either ingress encoding, writing into a
// storage partition with capacity and integrity checks, and broadcasting
// rate-limited status events.
package update

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/partition"
	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// progressInterval caps progress broadcasts to one per interval regardless
// of chunk arrival rate.
const progressInterval = 150 * time.Millisecond

// Session state. Starting is transient inside Begin; between calls the
// session is either idle or writing.
type State int

const (
	StateIdle State = iota
	StateWriting
)

// Session errors surfaced to the ingress handlers.
var (
	ErrNoSession        = errors.New("no update session in progress")
	ErrCapacityExceeded = errors.New("stream exceeds partition")
	ErrDigestMismatch   = errors.New("digest mismatch")
)

// Emitter delivers a status event to every observer. The production
// implementation is the WebSocket hub broadcast.
type Emitter interface {
	Emit(e roboproto.Envelope)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(e roboproto.Envelope)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e roboproto.Envelope) { f(e) }

// Session is the single update state machine for the node. At most one
// upload is in flight; a new Begin abandons an incomplete predecessor.
// Methods are not safe for concurrent use; the ingress side serializes
// calls (see server wiring).
type Session struct {
	provider  partition.Provider
	emitter   Emitter
	manifests *ManifestStore
	onSuccess func()
	log       *zap.Logger
	now       func() time.Time

	state    State
	target   string
	part     partition.Partition
	w        partition.Writer
	total    int64
	written  int64
	md5hex   string
	digest   hash.Hash
	lastProg time.Time
}

// NewSession wires a session to its collaborators. onSuccess runs after a
// successful finalize (the node schedules its deferred restart there);
// manifests may be nil to skip manifest records.
func NewSession(provider partition.Provider, emitter Emitter, manifests *ManifestStore, onSuccess func(), log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		provider:  provider,
		emitter:   emitter,
		manifests: manifests,
		onSuccess: onSuccess,
		log:       log,
		now:       time.Now,
	}
}

// State reports the current session state.
func (s *Session) State() State { return s.state }

// Written reports bytes accepted by the partition so far.
func (s *Session) Written() int64 { return s.written }

// Begin starts a new session for the first chunk of an upload. An
// incomplete prior session is abandoned: its staged bytes are discarded and
// the new image starts from offset 0. total is the declared stream length
// (0 when unknown); md5hex an optional integrity digest supplied
// out-of-band.
//
// On any failure the session stays (or returns to) idle and a reject event
// is broadcast.
func (s *Session) Begin(target string, total int64, md5hex string) error {
	if s.state == StateWriting {
		// Last writer wins at the session level. The abandoned partial is
		// dropped from staging; no terminal event for a session that never
		// finished writing by its own ingress.
		s.log.Warn("abandoning incomplete update session",
			zap.String("target", s.target),
			zap.Int64("written", s.written))
		if err := s.w.Abort(); err != nil {
			s.log.Warn("abort of abandoned session failed", zap.Error(err))
		}
		s.reset()
	}

	part, err := s.provider.Partition(target)
	if err != nil {
		s.reject("Partition not found")
		return fmt.Errorf("resolve target %q: %w", target, err)
	}

	if total > 0 && total > part.Capacity() {
		s.reject("Image too big for partition")
		return fmt.Errorf("declared total %d exceeds capacity %d: %w",
			total, part.Capacity(), ErrCapacityExceeded)
	}

	s.emitter.Emit(roboproto.StartEvent(target, total, part.Capacity(), part.Label()))

	w, err := part.OpenWriter()
	if err != nil {
		s.reject("Update begin failed")
		return fmt.Errorf("open partition %s: %w", part.Label(), err)
	}

	s.state = StateWriting
	s.target = target
	s.part = part
	s.w = w
	s.total = total
	s.written = 0
	s.md5hex = strings.ToLower(md5hex)
	s.digest = md5.New()
	s.lastProg = time.Time{}

	s.log.Info("update session started",
		zap.String("target", target),
		zap.String("partition", part.Label()),
		zap.Int64("total", total),
		zap.Int64("capacity", part.Capacity()))
	return nil
}

// Write streams one chunk into the partition. A chunk that would overflow
// the partition aborts the whole session before any of it is written; the
// session returns to idle and no end event follows (the reject is the
// terminal signal for observers, the error for the ingress).
func (s *Session) Write(chunk []byte) error {
	if s.state != StateWriting {
		return ErrNoSession
	}
	if len(chunk) == 0 {
		return nil
	}

	if s.written+int64(len(chunk)) > s.part.Capacity() {
		if err := s.w.Abort(); err != nil {
			s.log.Warn("abort of overflowing session failed", zap.Error(err))
		}
		s.reject("Stream exceeds partition")
		s.reset()
		return ErrCapacityExceeded
	}

	n, err := s.w.Write(chunk)
	s.digest.Write(chunk[:n])
	s.written += int64(n)
	if err != nil {
		// A short write corrupts the digest check at finalize; the session
		// continues and fails there if it matters.
		s.log.Warn("partition write shortfall",
			zap.Int("requested", len(chunk)),
			zap.Int("accepted", n),
			zap.Error(err))
	}

	now := s.now()
	if now.Sub(s.lastProg) >= progressInterval {
		s.lastProg = now
		s.emitter.Emit(roboproto.ProgressEvent(s.written, s.expectedTotal()))
	}
	return nil
}

// Finish finalizes the session: the staged image is committed, the
// integrity digest verified, and exactly one end event broadcast. A
// successful finalize triggers the onSuccess hook; a failed one does not.
func (s *Session) Finish() error {
	if s.state != StateWriting {
		return ErrNoSession
	}

	err := s.finalize()
	if err != nil {
		s.log.Error("update finalize failed", zap.Error(err))
		s.emitter.Emit(roboproto.EndEvent(false, "FAIL"))
		s.reset()
		return err
	}

	s.emitter.Emit(roboproto.ProgressEvent(s.written, s.expectedTotal()))
	s.emitter.Emit(roboproto.EndEvent(true, "OK"))
	s.log.Info("update session finished",
		zap.String("target", s.target),
		zap.Int64("written", s.written))
	if s.onSuccess != nil {
		s.onSuccess()
	}
	s.reset()
	return nil
}

func (s *Session) finalize() error {
	if s.md5hex != "" {
		sum := hex.EncodeToString(s.digest.Sum(nil))
		if sum != s.md5hex {
			s.w.Abort()
			return fmt.Errorf("md5 %s != declared %s: %w", sum, s.md5hex, ErrDigestMismatch)
		}
	}
	if err := s.w.Commit(); err != nil {
		return err
	}
	if s.manifests != nil {
		m := Manifest{
			Target:      s.target,
			Partition:   s.part.Label(),
			Size:        s.written,
			MD5:         hex.EncodeToString(s.digest.Sum(nil)),
			CompletedAt: s.now().UTC(),
		}
		if err := s.manifests.Save(m); err != nil {
			// The image itself is committed; a missing manifest only
			// degrades info reporting.
			s.log.Warn("manifest save failed", zap.Error(err))
		}
	}
	return nil
}

// expectedTotal is the declared stream length, falling back to the
// partition capacity when the client announced none.
func (s *Session) expectedTotal() int64 {
	if s.total > 0 {
		return s.total
	}
	return s.part.Capacity()
}

func (s *Session) reject(reason string) {
	s.emitter.Emit(roboproto.RejectEvent(reason))
}

func (s *Session) reset() {
	s.state = StateIdle
	s.target = ""
	s.part = nil
	s.w = nil
	s.total = 0
	s.written = 0
	s.md5hex = ""
	s.digest = nil
}
