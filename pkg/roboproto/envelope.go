// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package roboproto

import (
	"encoding/json"
	"fmt"
)

// Envelope is one decoded command-channel message. Field values keep the
// loose typing of the wire format: existing web UI clients send numbers as
// strings and booleans as 0/1, so the accessors below accept all three
// representations.
type Envelope map[string]any

// Decode parses a JSON payload into an Envelope.
func Decode(payload []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("invalid json payload: %w", err)
	}
	return e, nil
}

// Encode serializes the envelope for the wire.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// MustEncode serializes the envelope and panics on failure. Envelopes built
// by this package contain only JSON-representable values.
func (e Envelope) MustEncode() []byte {
	data, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return data
}

// Command returns the value of the mandatory CMD field, or "" when absent or
// not a string.
func (e Envelope) Command() string {
	s, _ := e["CMD"].(string)
	return s
}

// String returns the field as a string, or def when absent.
func (e Envelope) String(key, def string) string {
	v, ok := e[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	}
	return def
}

// Bool returns the field as a boolean. Numbers are false only at zero;
// strings are parsed as integers first, so "0" and "" are false.
func (e Envelope) Bool(key string, def bool) bool {
	v, ok := e[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return atoiLoose(x) != 0
	}
	return def
}

// Int returns the field as an int, accepting numbers and numeric strings.
func (e Envelope) Int(key string, def int) int {
	v, ok := e[key]
	if !ok {
		return def
	}
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case int64:
		return int(x)
	case string:
		return atoiLoose(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	return def
}

// U8 returns the field clamped to [0, 255].
func (e Envelope) U8(key string, def uint8) uint8 {
	if _, ok := e[key]; !ok {
		return def
	}
	x := e.Int(key, int(def))
	if x < 0 {
		x = 0
	}
	if x > 255 {
		x = 255
	}
	return uint8(x)
}

// U16 returns the field clamped to [0, 65535].
func (e Envelope) U16(key string, def uint16) uint16 {
	if _, ok := e[key]; !ok {
		return def
	}
	x := e.Int(key, int(def))
	if x < 0 {
		x = 0
	}
	if x > 65535 {
		x = 65535
	}
	return uint16(x)
}

// Strings returns the field as a string slice when it is a JSON array,
// skipping non-string elements.
func (e Envelope) Strings(key string) []string {
	arr, ok := e[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// atoiLoose parses a leading integer the way C's atoi does: optional sign,
// digits, everything after the first non-digit ignored. Returns 0 when the
// string has no leading integer.
func atoiLoose(s string) int {
	i, n, sign := 0, 0, 1
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		if s[i] == '-' {
			sign = -1
		}
		i++
	}
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
	}
	return sign * n
}
