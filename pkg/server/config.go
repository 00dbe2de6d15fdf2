// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package server is the RoBoRa control node: the WebSocket command channel,
// the HTTP update ingress, and the wiring between the command registry,
// the update session, the parameter store and the device collaborators.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/RoBoRa25/robora/pkg/roboproto"
)

// Config is the node configuration, loaded from YAML.
type Config struct {
	// Listen is the HTTP/WebSocket bind address.
	Listen string `yaml:"listen"`
	// Hostname identifies the node in greetings and info replies.
	Hostname string `yaml:"hostname"`
	// StateDir holds the parameter store, partition images and manifests.
	StateDir string `yaml:"state_dir"`

	Partitions PartitionConfig `yaml:"partitions"`
	Channel    ChannelConfig   `yaml:"channel"`
}

// PartitionConfig sizes the update targets. A zero capacity disables the
// target entirely.
type PartitionConfig struct {
	AppCapacity int64 `yaml:"app_capacity"`
	FSCapacity  int64 `yaml:"fs_capacity"`
}

// ChannelConfig bounds the command channel.
type ChannelConfig struct {
	MaxClients     int `yaml:"max_clients"`
	MaxMessageSize int `yaml:"max_message_size"`
}

// DefaultConfig returns the configuration a bare node runs with.
func DefaultConfig() Config {
	return Config{
		Listen:   ":8080",
		Hostname: "robora",
		StateDir: "/var/lib/robora",
		Partitions: PartitionConfig{
			AppCapacity: 4 * 1024 * 1024,
			FSCapacity:  2 * 1024 * 1024,
		},
		Channel: ChannelConfig{
			MaxClients:     roboproto.MaxClients,
			MaxMessageSize: roboproto.MaxMessageSize,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults untouched.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is empty")
	}
	if c.Channel.MaxClients < 1 {
		return fmt.Errorf("max_clients %d out of range", c.Channel.MaxClients)
	}
	if c.Channel.MaxMessageSize < 1 {
		return fmt.Errorf("max_message_size %d out of range", c.Channel.MaxMessageSize)
	}
	if c.Partitions.AppCapacity < 0 || c.Partitions.FSCapacity < 0 {
		return fmt.Errorf("partition capacity must not be negative")
	}
	return nil
}
