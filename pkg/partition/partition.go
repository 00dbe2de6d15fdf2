// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package partition resolves logical update targets to fixed-capacity,
// independently erasable storage regions and provides writers that stage an
// image durably: a half-written image is never visible under the committed
// name.
package partition

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Target labels, matching the X-Update-Target header values.
const (
	TargetApp = "app"
	TargetFS  = "fs"
)

// Partition resolution and write errors.
var (
	ErrNotFound         = errors.New("partition not found")
	ErrCapacityExceeded = errors.New("write exceeds partition capacity")
	ErrWriterClosed     = errors.New("partition writer closed")
)

// Writer streams an image into a partition. Bytes land in a staging area;
// Commit makes them the partition's content atomically, Abort discards them.
// Exactly one of Commit or Abort must be called.
type Writer interface {
	// Write appends len(p) bytes, returning how many were accepted.
	// Returns ErrCapacityExceeded once the region is full.
	Write(p []byte) (int, error)
	Commit() error
	Abort() error
}

// Partition is one fixed-capacity storage region.
type Partition interface {
	Label() string
	Capacity() int64
	// OpenWriter erases any staged content and starts a fresh image write.
	OpenWriter() (Writer, error)
	// Size returns the committed image size, 0 when nothing was committed.
	Size() (int64, error)
}

// Provider resolves a logical target to its partition.
type Provider interface {
	Partition(target string) (Partition, error)
}

// FileProvider backs partitions with files under a state directory: the
// application image as app0.img and the filesystem image as fs.img, each
// with a configured capacity.
type FileProvider struct {
	dir   string
	parts map[string]*filePartition
}

// NewFileProvider creates the state directory if needed and configures the
// two standard partitions. A zero capacity disables the target, which then
// resolves to ErrNotFound.
func NewFileProvider(dir string, appCapacity, fsCapacity int64) (*FileProvider, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create partition dir: %w", err)
	}
	p := &FileProvider{dir: dir, parts: make(map[string]*filePartition)}
	if appCapacity > 0 {
		p.parts[TargetApp] = &filePartition{dir: dir, label: "app0", capacity: appCapacity}
	}
	if fsCapacity > 0 {
		p.parts[TargetFS] = &filePartition{dir: dir, label: "fs", capacity: fsCapacity}
	}
	return p, nil
}

// Partition implements Provider.
func (p *FileProvider) Partition(target string) (Partition, error) {
	part, ok := p.parts[target]
	if !ok {
		return nil, ErrNotFound
	}
	return part, nil
}

// Dir returns the state directory backing the provider.
func (p *FileProvider) Dir() string { return p.dir }

type filePartition struct {
	dir      string
	label    string
	capacity int64
}

func (fp *filePartition) Label() string   { return fp.label }
func (fp *filePartition) Capacity() int64 { return fp.capacity }

func (fp *filePartition) imagePath() string {
	return filepath.Join(fp.dir, fp.label+".img")
}

func (fp *filePartition) stagingPath() string {
	return filepath.Join(fp.dir, fp.label+".staging")
}

func (fp *filePartition) Size() (int64, error) {
	info, err := os.Stat(fp.imagePath())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (fp *filePartition) OpenWriter() (Writer, error) {
	f, err := os.OpenFile(fp.stagingPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open partition %s: %w", fp.label, err)
	}
	return &fileWriter{part: fp, f: f}, nil
}

type fileWriter struct {
	part    *filePartition
	f       *os.File
	written int64
	done    bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, ErrWriterClosed
	}
	if w.written+int64(len(p)) > w.part.capacity {
		return 0, ErrCapacityExceeded
	}
	n, err := w.f.Write(p)
	w.written += int64(n)
	return n, err
}

// Commit fsyncs the staged image and renames it over the committed name, so
// a crash mid-update leaves the previous image intact.
func (w *fileWriter) Commit() error {
	if w.done {
		return ErrWriterClosed
	}
	w.done = true
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("sync partition %s: %w", w.part.label, err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close partition %s: %w", w.part.label, err)
	}
	if err := os.Rename(w.part.stagingPath(), w.part.imagePath()); err != nil {
		return fmt.Errorf("commit partition %s: %w", w.part.label, err)
	}
	return nil
}

func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.f.Close()
	return os.Remove(w.part.stagingPath())
}
