// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/partition"
	"github.com/RoBoRa25/robora/pkg/roboproto"
	"github.com/RoBoRa25/robora/pkg/update"
)

// Upload headers shared by both ingress encodings.
const (
	headerTarget = "X-Update-Target"
	headerMD5    = "X-Content-MD5"
)

// sessionBegin, sessionWrite and sessionFinish funnel both encodings
// through dispatchMu so session calls never interleave with each other or
// with command handlers.
func (n *Node) sessionBegin(target string, total int64, md5hex string) error {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()
	return n.session.Begin(target, total, md5hex)
}

func (n *Node) sessionWrite(chunk []byte) error {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()
	return n.session.Write(chunk)
}

func (n *Node) sessionFinish() error {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()
	return n.session.Finish()
}

// handleUpdateStream is the raw octet ingress: the request body is the
// image, the target and digest ride in headers, and the declared length is
// the Content-Length.
func (n *Node) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "FAIL", http.StatusMethodNotAllowed)
		return
	}

	target := r.Header.Get(headerTarget)
	if target == "" {
		target = roboproto.TargetApp
	}
	total := r.ContentLength
	if total < 0 {
		total = 0
	}

	if err := n.sessionBegin(target, total, r.Header.Get(headerMD5)); err != nil {
		n.beginError(w, err)
		return
	}
	if err := n.streamBody(r.Body); err != nil {
		n.writeError(w, err)
		return
	}
	if err := n.sessionFinish(); err != nil {
		http.Error(w, "FAIL end", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "OK")
}

// handleUpdateForm is the multipart form ingress used by the web UI. The
// first file part is the image; the overall length is unknown up front, so
// capacity is enforced while streaming.
func (n *Node) handleUpdateForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "FAIL", http.StatusMethodNotAllowed)
		return
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		http.Error(w, "FAIL", http.StatusBadRequest)
		return
	}
	mr, err := r.MultipartReader()
	if err != nil {
		http.Error(w, "FAIL", http.StatusBadRequest)
		return
	}

	target := r.URL.Query().Get("target")
	if target == "" {
		target = r.Header.Get(headerTarget)
	}
	if target == "" {
		target = roboproto.TargetApp
	}
	md5hex := r.Header.Get(headerMD5)

	started := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A truncated multipart stream after Begin leaves the session
			// writing; the next Begin abandons it.
			n.log.Debug("multipart read failed", zap.Error(err))
			http.Error(w, "FAIL", http.StatusBadRequest)
			return
		}

		// Value fields may override the target or digest ahead of the
		// file part.
		if part.FileName() == "" {
			value, _ := io.ReadAll(io.LimitReader(part, 256))
			switch part.FormName() {
			case "target":
				target = string(value)
			case "md5":
				md5hex = string(value)
			}
			continue
		}

		if started {
			// One image per request; trailing file parts are drained and
			// ignored.
			io.Copy(io.Discard, part)
			continue
		}
		started = true

		if err := n.sessionBegin(target, 0, md5hex); err != nil {
			n.beginError(w, err)
			return
		}
		if err := n.streamBody(part); err != nil {
			n.writeError(w, err)
			return
		}
	}

	if !started {
		http.Error(w, "FAIL", http.StatusBadRequest)
		return
	}
	if err := n.sessionFinish(); err != nil {
		http.Error(w, "FAIL end", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "OK")
}

// streamBody pushes a reader through the session in fixed-size chunks.
func (n *Node) streamBody(rd io.Reader) error {
	buf := make([]byte, readChunk)
	for {
		nr, rerr := rd.Read(buf)
		if nr > 0 {
			if err := n.sessionWrite(buf[:nr]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func (n *Node) beginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, partition.ErrNotFound):
		http.Error(w, "Partition not found", http.StatusBadRequest)
	case errors.Is(err, update.ErrCapacityExceeded):
		http.Error(w, "Too big", http.StatusRequestEntityTooLarge)
	default:
		http.Error(w, "FAIL begin", http.StatusInternalServerError)
	}
}

func (n *Node) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, update.ErrCapacityExceeded) {
		http.Error(w, "Too big", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, "FAIL", http.StatusInternalServerError)
}
