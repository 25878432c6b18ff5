// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"testing"
)

func TestParseRadio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Radio
		err  bool
	}{
		{"gsm", RadioGSM, false},
		{"GSM", RadioGSM, false},
		{"umts", RadioWCDMA, false},
		{"wcdma", RadioWCDMA, false},
		{" lte ", RadioLTE, false},
		{"cdma", RadioCDMA, false},
		{"5g", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseRadio(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseRadio(%q): expected error=%v, got %v", tt.in, tt.err, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRadio(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestCellKeyValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  CellKey
		want bool
	}{
		{"gsm ok", CellKey{RadioGSM, 234, 10, 3, 1234}, true},
		{"gsm cid too wide", CellKey{RadioGSM, 234, 10, 3, 65536}, false},
		{"lte max cid", CellKey{RadioLTE, 234, 10, 3, 1<<28 - 1}, true},
		{"lte cid too wide", CellKey{RadioLTE, 234, 10, 3, 1 << 28}, false},
		{"wcdma wide cid", CellKey{RadioWCDMA, 234, 10, 3, 1 << 28}, true},
		{"wcdma cid overflow", CellKey{RadioWCDMA, 234, 10, 3, 1<<32 - 1}, false},
		{"cdma wide mnc", CellKey{RadioCDMA, 310, 32767, 65534, 1}, true},
		{"gsm wide mnc", CellKey{RadioGSM, 310, 1000, 3, 1}, false},
		{"gsm wide lac", CellKey{RadioGSM, 310, 10, 65534, 1}, false},
		{"zero mcc", CellKey{RadioGSM, 0, 10, 3, 1}, false},
		{"zero lac", CellKey{RadioGSM, 234, 10, 0, 1}, false},
		{"zero cid", CellKey{RadioGSM, 234, 10, 3, 0}, false},
		{"unknown radio", CellKey{"5g", 234, 10, 3, 1}, false},
	}
	for _, tt := range tests {
		if got := tt.key.Valid(); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}

func TestCellKeyStringRoundTrip(t *testing.T) {
	t.Parallel()

	key := CellKey{RadioLTE, 262, 1, 4711, 123456}
	if s := key.String(); s != "lte:262:1:4711:123456" {
		t.Fatalf("unexpected encoding %q", s)
	}
	parsed, err := ParseCellKey(key.String())
	if err != nil {
		t.Fatalf("ParseCellKey error: %v", err)
	}
	if parsed != key {
		t.Errorf("expected %+v, got %+v", key, parsed)
	}

	area, err := ParseCellAreaKey("umts:234:10:3")
	if err != nil {
		t.Fatalf("ParseCellAreaKey error: %v", err)
	}
	if area != (CellAreaKey{RadioWCDMA, 234, 10, 3}) {
		t.Errorf("unexpected area %+v", area)
	}
	if key.Area().String() != "lte:262:1:4711" {
		t.Errorf("unexpected area key %q", key.Area().String())
	}

	for _, bad := range []string{"", "gsm:1:2", "gsm:a:2:3", "x:1:2:3", "gsm:1:2:3:z"} {
		if _, err := ParseCellKey(bad); err == nil {
			t.Errorf("expected error parsing %q", bad)
		}
	}
}

func TestMACHelpers(t *testing.T) {
	t.Parallel()

	if got := NormalizeMAC("AA:BB:CC:DD:EE:FF"); got != "aabbccddeeff" {
		t.Errorf("expected aabbccddeeff, got %s", got)
	}
	if got := NormalizeMAC("aabb.ccdd.eeff"); got != "aabbccddeeff" {
		t.Errorf("expected dotted form normalized, got %s", got)
	}

	tests := []struct {
		mac    string
		valid  bool
		usable bool
	}{
		{"aabbccddeeff", true, false}, // locally administered bit set on 0xaa
		{"a8bbccddeeff", true, true},
		{"020000000001", true, false},
		{"000000000000", false, false},
		{"ffffffffffff", false, false},
		{TestMAC, false, false},
		{"a8bbccddeef", false, false},
		{"A8BBCCDDEEFF", false, false},
		{"g8bbccddeeff", false, false},
	}
	for _, tt := range tests {
		if got := ValidMAC(tt.mac); got != tt.valid {
			t.Errorf("ValidMAC(%s): expected %v, got %v", tt.mac, tt.valid, got)
		}
		if got := UsableMAC(tt.mac); got != tt.usable {
			t.Errorf("UsableMAC(%s): expected %v, got %v", tt.mac, tt.usable, got)
		}
	}

	if MACShard("a8bbccddeeff") != "a" {
		t.Errorf("expected shard a, got %s", MACShard("a8bbccddeeff"))
	}
}

func TestSimilarMACs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"a8bbccddeef0", "a8bbccddeef1", true},
		{"a8bbccddee10", "a8bbccddee13", true},
		{"a8bbccddeeff", "a8bbccddee00", false},
		{"a8bbccddeef0", "a9bbccddeef3", false},
		{"a8bbccddeef0", "nothex", false},
	}
	for _, tt := range tests {
		if got := SimilarMACs(tt.a, tt.b, 2); got != tt.want {
			t.Errorf("SimilarMACs(%s, %s): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestStationShards(t *testing.T) {
	t.Parallel()

	shards := StationShards()
	if len(shards) != 36 {
		t.Fatalf("expected 36 shards, got %d", len(shards))
	}
	if shards[0] != "cell_gsm" || shards[4] != "wifi_0" || shards[35] != "blue_f" {
		t.Errorf("unexpected shard order: %v", shards)
	}

	tests := []struct {
		shard string
		want  StationType
		ok    bool
	}{
		{"cell_lte", StationCell, true},
		{"wifi_a", StationWifi, true},
		{"blue_0", StationBlue, true},
		{"wifi", "", false},
		{"datamap_ne", "", false},
	}
	for _, tt := range tests {
		got, ok := ShardType(tt.shard)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ShardType(%s): expected %q/%v, got %q/%v", tt.shard, tt.want, tt.ok, got, ok)
		}
	}
}

func TestAPIKey(t *testing.T) {
	t.Parallel()

	key := APIKey{
		Key:                     "test",
		AllowFallback:           true,
		FallbackName:            "fall",
		FallbackURL:             "http://127.0.0.1:9/?api",
		FallbackRateLimit:       10,
		FallbackRateLimitExpire: 60,
	}
	if !key.CanFallback() {
		t.Error("expected fully configured key to allow fallback")
	}
	if key.FallbackCacheTTL() != 0 {
		t.Errorf("expected disabled cache, got %v", key.FallbackCacheTTL())
	}
	key.FallbackURL = ""
	if key.CanFallback() {
		t.Error("expected key without url to deny fallback")
	}

	for s, want := range map[string]bool{
		"test":                   true,
		"0123-abcd-XYZ":          true,
		"":                       false,
		"bad key":                false,
		"ключ":                   false,
		string(make([]byte, 41)): false,
	} {
		if got := ValidAPIKeyString(s); got != want {
			t.Errorf("ValidAPIKeyString(%q): expected %v, got %v", s, want, got)
		}
	}
}
