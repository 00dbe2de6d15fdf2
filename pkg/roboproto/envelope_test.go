// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Orazio Franco, RoBoRa Project

package roboproto

import (
	"encoding/json"
	"testing"
)

// ============================================================
// Decode Tests
// ============================================================

func TestDecode_Command(t *testing.T) {
	e, err := Decode([]byte(`{"CMD":"move","x":"10","y":"-20"}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if e.Command() != "move" {
		t.Errorf("Command mismatch: expected %q, got %q", "move", e.Command())
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"truncated object", `{"CMD":"move"`},
		{"bare word", `move`},
		{"empty", ``},
		{"array root", `["move"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.payload)); err == nil {
				t.Errorf("expected decode error for %q", tt.payload)
			}
		})
	}
}

func TestDecode_MissingCommand(t *testing.T) {
	e, err := Decode([]byte(`{"x":"1"}`))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if e.Command() != "" {
		t.Errorf("expected empty command, got %q", e.Command())
	}
}

// ============================================================
// Accessor Tests
// ============================================================

func TestEnvelope_Bool(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		key      string
		def      bool
		expected bool
	}{
		{"json true", `{"v":true}`, "v", false, true},
		{"json false", `{"v":false}`, "v", true, false},
		{"number nonzero", `{"v":2}`, "v", false, true},
		{"number zero", `{"v":0}`, "v", true, false},
		{"string one", `{"v":"1"}`, "v", false, true},
		{"string zero", `{"v":"0"}`, "v", true, false},
		{"string garbage", `{"v":"on"}`, "v", true, false},
		{"missing uses default", `{}`, "v", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if got := e.Bool(tt.key, tt.def); got != tt.expected {
				t.Errorf("Bool(%q) = %v, expected %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvelope_Int(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected int
	}{
		{"number", `{"v":42}`, 42},
		{"negative number", `{"v":-7}`, -7},
		{"numeric string", `{"v":"127"}`, 127},
		{"negative string", `{"v":"-127"}`, -127},
		{"trailing junk", `{"v":"15px"}`, 15},
		{"non numeric string", `{"v":"abc"}`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if got := e.Int("v", -1); got != tt.expected {
				t.Errorf("Int = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestEnvelope_U8Clamping(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected uint8
	}{
		{"in range", `{"v":200}`, 200},
		{"negative clamps to zero", `{"v":-5}`, 0},
		{"overflow clamps to 255", `{"v":999}`, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := Decode([]byte(tt.payload))
			if got := e.U8("v", 1); got != tt.expected {
				t.Errorf("U8 = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestEnvelope_U16Clamping(t *testing.T) {
	e, _ := Decode([]byte(`{"v":70000}`))
	if got := e.U16("v", 1); got != 65535 {
		t.Errorf("U16 overflow should clamp to 65535, got %d", got)
	}
	e, _ = Decode([]byte(`{}`))
	if got := e.U16("v", 1500); got != 1500 {
		t.Errorf("U16 missing key should use default, got %d", got)
	}
}

func TestEnvelope_Strings(t *testing.T) {
	e, _ := Decode([]byte(`{"strings":["a",3,"b",null,"c"]}`))
	got := e.Strings("strings")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Strings length = %d, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Strings[%d] = %q, expected %q", i, got[i], want[i])
		}
	}
	if e.Strings("missing") != nil {
		t.Error("missing key should return nil")
	}
}

// ============================================================
// Builder Tests
// ============================================================

func TestBuilders_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		cmd  string
	}{
		{"error", ErrorReply("unknown command"), CmdError},
		{"ack", AckReply("rebooting"), CmdAck},
		{"hello", HelloReply("robora"), CmdHelloReply},
		{"status", StatusOK(CmdMove), CmdMove},
		{"start", StartEvent(TargetApp, 1000, 2048, "app0"), CmdOTA},
		{"reject", RejectEvent("Partition not found"), CmdOTA},
		{"progress", ProgressEvent(500, 1000), CmdOTA},
		{"end", EndEvent(true, "OK"), CmdOTA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.env.MustEncode()
			var decoded map[string]any
			if err := json.Unmarshal(data, &decoded); err != nil {
				t.Fatalf("encoded envelope not valid JSON: %v", err)
			}
			if decoded["CMD"] != tt.cmd {
				t.Errorf("CMD = %v, expected %q", decoded["CMD"], tt.cmd)
			}
		})
	}
}

func TestStartEvent_OmitsEmptyLabel(t *testing.T) {
	e := StartEvent(TargetFS, 0, 4096, "")
	if _, ok := e["part"]; ok {
		t.Error("empty partition label should be omitted")
	}
}
