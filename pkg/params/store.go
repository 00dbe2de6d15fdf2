// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package params

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// ErrUnknownKey is returned for keys outside the parameter schema.
var ErrUnknownKey = errors.New("unknown parameter key")

// Store persists parameter values in BadgerDB under the node state
// directory. Keys are namespaced as "<namespace>/<key>"; values are stored
// as strings so one codec covers every parameter type.
type Store struct {
	db  *badger.DB
	log *zap.Logger
}

// Open opens (or creates) the store at dir and seeds defaults for any
// parameter missing from disk, so a first boot comes up fully configured.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open param store: %w", err)
	}
	s := &Store{db: db, log: log}
	if err := s.seedDefaults(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func storageKey(ns Namespace, key string) []byte {
	return []byte(ns.Name + "/" + key)
}

func (s *Store) seedDefaults() error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, ns := range Namespaces {
			for _, p := range ns.Params {
				k := storageKey(ns, p.Key)
				if _, err := txn.Get(k); err == nil {
					continue
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
				if err := txn.Set(k, []byte(p.Default)); err != nil {
					return err
				}
				s.log.Debug("seeded parameter default",
					zap.String("key", p.Key), zap.String("value", p.Default))
			}
		}
		return nil
	})
}

// Get returns the stored value for key, falling back to its schema default.
// Unknown keys return ErrUnknownKey.
func (s *Store) Get(key string) (string, error) {
	ns, info, ok := Lookup(key)
	if !ok {
		return "", ErrUnknownKey
	}
	val := info.Default
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey(ns, key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = string(v)
			return nil
		})
	})
	return val, err
}

// GetInt returns the parameter as an int, clamped to the schema range.
func (s *Store) GetInt(key string) (int, error) {
	raw, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	_, info, _ := Lookup(key)
	n, err := strconv.Atoi(raw)
	if err != nil {
		n, _ = strconv.Atoi(info.Default)
	}
	if info.Type == TypeInt || info.Type == TypeBool {
		if n < info.Min {
			n = info.Min
		}
		if n > info.Max {
			n = info.Max
		}
	}
	return n, nil
}

// GetBool returns the parameter as a boolean (any nonzero value is true).
func (s *Store) GetBool(key string) (bool, error) {
	n, err := s.GetInt(key)
	return n != 0, err
}

// Put stores a value for a known key. Int and bool values are validated and
// clamped to the schema range before storage; out-of-schema keys are
// rejected.
func (s *Store) Put(key, value string) error {
	ns, info, ok := Lookup(key)
	if !ok {
		return ErrUnknownKey
	}
	value = clampValue(info, value)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storageKey(ns, key), []byte(value))
	})
}

func clampValue(info Info, value string) string {
	switch info.Type {
	case TypeInt, TypeBool:
		n, err := strconv.Atoi(value)
		if err != nil {
			return info.Default
		}
		if n < info.Min {
			n = info.Min
		}
		if n > info.Max {
			n = info.Max
		}
		return strconv.Itoa(n)
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return info.Default
		}
	}
	return value
}

// ResetDefaults rewrites every parameter back to its schema default.
func (s *Store) ResetDefaults() error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, ns := range Namespaces {
			for _, p := range ns.Params {
				if err := txn.Set(storageKey(ns, p.Key), []byte(p.Default)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Listing builds the config_req reply: per section, parallel arrays of
// keys, labels, types and current values.
func (s *Store) Listing() roboproto.Envelope {
	e := roboproto.Envelope{"CMD": roboproto.CmdConfigReq}
	for _, ns := range Namespaces {
		keys := make([]string, 0, len(ns.Params))
		labels := make([]string, 0, len(ns.Params))
		types := make([]string, 0, len(ns.Params))
		values := make([]string, 0, len(ns.Params))
		for _, p := range ns.Params {
			v, err := s.Get(p.Key)
			if err != nil {
				v = p.Default
			}
			keys = append(keys, p.Key)
			labels = append(labels, p.Label)
			types = append(types, p.Type.String())
			values = append(values, v)
		}
		e[ns.Section] = map[string]any{
			"params": keys,
			"labels": labels,
			"types":  types,
			"values": values,
		}
	}
	return e
}
