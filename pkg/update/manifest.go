// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package update

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Manifest records a successfully finalized image. It is the node's only
// memory of past updates and is surfaced through the info command.
type Manifest struct {
	Target      string    `cbor:"1,keyasint"`
	Partition   string    `cbor:"2,keyasint"`
	Size        int64     `cbor:"3,keyasint"`
	MD5         string    `cbor:"4,keyasint"`
	CompletedAt time.Time `cbor:"5,keyasint"`
}

// ManifestStore persists one manifest per target as a CBOR record next to
// the partition images.
type ManifestStore struct {
	dir string
}

// NewManifestStore stores manifests under dir, creating it if needed.
func NewManifestStore(dir string) (*ManifestStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	return &ManifestStore{dir: dir}, nil
}

func (ms *ManifestStore) path(target string) string {
	return filepath.Join(ms.dir, target+".manifest")
}

// Save writes the manifest for its target, replacing any previous record.
func (ms *ManifestStore) Save(m Manifest) error {
	data, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tmp := ms.path(m.Target) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ms.path(m.Target))
}

// Load reads the manifest for a target. Returns os.ErrNotExist when no
// update was ever recorded for it.
func (ms *ManifestStore) Load(target string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(ms.path(target))
	if err != nil {
		return m, err
	}
	if err := cbor.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
