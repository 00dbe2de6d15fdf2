// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

// Package params is the node's persistent device parameter store: three
// namespaces of typed, defaulted parameters that the web UI reads and
// writes over the command channel. The node-level deployment configuration
// (listen address, partition sizes) lives elsewhere; this store holds the
// knobs a driver tunes at runtime.
package params

// Type is the wire/storage type of a parameter. Values are stored as
// strings; Type drives validation, clamping, and UI rendering.
type Type int

const (
	TypeInt Type = iota
	TypeBool
	TypeFloat
	TypeString
)

// String returns the UI name of the type.
func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	}
	return "unknown"
}

// Info describes one parameter: its key, human label, type, numeric range
// (ints only) and default value.
type Info struct {
	Key     string
	Label   string
	Type    Type
	Min     int
	Max     int
	Default string
}

// Namespace groups parameters by subsystem. Section is the name used in
// the config_req listing.
type Namespace struct {
	Name    string
	Section string
	Params  []Info
}

// Namespaces is the full parameter schema. Keys are unique across
// namespaces; IsParamKey and lookups rely on that.
var Namespaces = []Namespace{
	{
		Name:    "wifi_cfg",
		Section: "connessione",
		Params: []Info{
			{Key: "ap_sta", Label: "AccessPoint / Station", Type: TypeBool, Min: 0, Max: 1, Default: "0"},
			{Key: "retray", Label: "Retry Count", Type: TypeInt, Min: 0, Max: 100, Default: "0"},
			{Key: "STssid", Label: "Station SSID", Type: TypeString, Default: "MY_WIFI"},
			{Key: "STpass", Label: "Station Password", Type: TypeString, Default: "MYPASSWORD"},
			{Key: "APssid", Label: "Access SSID", Type: TypeString, Default: "ROBORA2025"},
			{Key: "APpass", Label: "Access Password", Type: TypeString, Default: "ROBORA2025"},
			{Key: "AP__ip", Label: "IP address", Type: TypeString, Default: "192.168.4.1"},
			{Key: "AP__gw", Label: "Gateway address", Type: TypeString, Default: "192.168.4.1"},
			{Key: "AP_sub", Label: "Subnet address", Type: TypeString, Default: "255.255.255.0"},
		},
	},
	{
		Name:    "moto_cfg",
		Section: "motore",
		Params: []Info{
			{Key: "maxVel", Label: "Velocita Massima", Type: TypeInt, Min: 0, Max: 100, Default: "100"},
			{Key: "deadzone", Label: "Deadzone", Type: TypeInt, Min: 0, Max: 100, Default: "5"},
			{Key: "expoPct", Label: "Expo Percentuale", Type: TypeInt, Min: 0, Max: 100, Default: "0"},
			{Key: "SteerGain", Label: "Guadagno Sterzo", Type: TypeInt, Min: 0, Max: 100, Default: "70"},
			{Key: "arcadeK", Label: "Arcade K", Type: TypeInt, Min: 0, Max: 100, Default: "85"},
			{Key: "arcadeEnabled", Label: "Arcade Abilitato", Type: TypeBool, Min: 0, Max: 1, Default: "0"},
			{Key: "invertA", Label: "Inverti Motor A", Type: TypeBool, Min: 0, Max: 1, Default: "0"},
			{Key: "invertB", Label: "Inverti Motor B", Type: TypeBool, Min: 0, Max: 1, Default: "0"},
			{Key: "tankInvThr", Label: "Tank inverti Throttle", Type: TypeBool, Min: 0, Max: 1, Default: "0"},
			{Key: "tankInvStr", Label: "Tank inverti Steer", Type: TypeBool, Min: 0, Max: 1, Default: "1"},
		},
	},
	{
		Name:    "tele_cfg",
		Section: "telemetria",
		Params: []Info{
			{Key: "enable", Label: "Enable", Type: TypeBool, Min: 0, Max: 1, Default: "0"},
			{Key: "refresh", Label: "Refresh Time", Type: TypeInt, Min: 0, Max: 3600, Default: "250"},
		},
	},
}

// Lookup finds a parameter by key across all namespaces.
func Lookup(key string) (Namespace, Info, bool) {
	for _, ns := range Namespaces {
		for _, p := range ns.Params {
			if p.Key == key {
				return ns, p, true
			}
		}
	}
	return Namespace{}, Info{}, false
}

// IsParamKey reports whether key names a known parameter.
func IsParamKey(key string) bool {
	_, _, ok := Lookup(key)
	return ok
}
