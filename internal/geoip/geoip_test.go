// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package geoip

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/regions"
)

const testDB = "testdata/GeoIP2-City-Test.mmdb"

func openTestDB(t *testing.T) *DB {
	t.Helper()
	geo, err := regions.Default()
	if err != nil {
		t.Fatalf("load regions: %v", err)
	}
	db, err := Open(testDB, geo, logging.Nop())
	if err != nil {
		t.Fatalf("open geoip: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestLookup(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	tests := []struct {
		name     string
		ip       string
		found    bool
		region   string
		lat, lon float64
		accuracy float64
		city     bool
	}{
		{"london city", "81.2.69.160", true, "GB", 51.5142, -0.0931, CityRadius, true},
		{"gb country only", "2.125.160.216", true, "GB", 54.0, -2.0, 609_000, false},
		{"milton city", "216.160.83.56", true, "US", 47.2513, -122.3149, CityRadius, true},
		{"unknown region radius", "67.43.156.1", true, "BT", 27.5, 90.5, DefaultRegionRadius, false},
		{"no location", "89.160.20.112", false, "", 0, 0, 0, false},
		{"private", "10.0.0.1", false, "", 0, 0, 0, false},
		{"loopback", "127.0.0.1", false, "", 0, 0, 0, false},
		{"not in database", "81.2.70.1", false, "", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec, ok := db.Lookup(net.ParseIP(tt.ip))
			if ok != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, ok)
			}
			if !ok {
				return
			}
			if rec.RegionCode != tt.region {
				t.Errorf("expected region %s, got %s", tt.region, rec.RegionCode)
			}
			if rec.Lat != tt.lat || rec.Lon != tt.lon {
				t.Errorf("expected %v,%v, got %v,%v", tt.lat, tt.lon, rec.Lat, rec.Lon)
			}
			if rec.Accuracy != tt.accuracy {
				t.Errorf("expected accuracy %v, got %v", tt.accuracy, rec.Accuracy)
			}
			if rec.City != tt.city {
				t.Errorf("expected city=%v, got %v", tt.city, rec.City)
			}
		})
	}
}

func TestCountry(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	code, name, ok := db.Country(net.ParseIP("89.160.20.112"))
	if !ok {
		t.Fatal("expected country for address without location")
	}
	if code != "SE" || name != "Sweden" {
		t.Errorf("expected SE/Sweden, got %s/%s", code, name)
	}

	if _, _, ok := db.Country(net.ParseIP("81.2.70.1")); ok {
		t.Error("expected no country for unknown address")
	}
}

func TestDisabled(t *testing.T) {
	t.Parallel()
	db, err := Open("", nil, logging.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if db.Ready() {
		t.Error("expected disabled db to not be ready")
	}
	if _, ok := db.Lookup(net.ParseIP("81.2.69.160")); ok {
		t.Error("expected no result from disabled db")
	}
	if age := db.Age(time.Now()); age != -1 {
		t.Errorf("expected age -1, got %v", age)
	}
	if err := db.Close(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()
	if _, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"), nil, logging.Nop()); err == nil {
		t.Error("expected error for missing file")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.mmdb")
	if err := os.WriteFile(garbage, []byte("not a database"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(garbage, nil, logging.Nop()); err == nil {
		t.Error("expected error for invalid file")
	}
}

func TestReloadKeepsPreviousOnError(t *testing.T) {
	t.Parallel()
	db := openTestDB(t)

	err := db.Reload(filepath.Join(t.TempDir(), "missing.mmdb"))
	if err == nil {
		t.Fatal("expected reload error")
	}
	if errors.Is(err, ErrNotCityDatabase) {
		t.Errorf("expected read error, got %v", err)
	}
	if _, ok := db.Lookup(net.ParseIP("81.2.69.160")); !ok {
		t.Error("expected previous database to stay active")
	}

	if err := db.Reload(testDB); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !db.Ready() {
		t.Error("expected ready after reload")
	}
	if age := db.Age(time.Now()); age < 0 {
		t.Errorf("expected non-negative age, got %v", age)
	}
}
