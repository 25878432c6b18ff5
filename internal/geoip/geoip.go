// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package geoip

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"github.com/rs/zerolog"
)

const (
	// CityRadius caps the accuracy of city level answers, in meters.
	CityRadius = 50_000.0

	// DefaultRegionRadius is used for countries without a known radius.
	DefaultRegionRadius = 5_000_000.0
)

// ErrNotCityDatabase is returned when the file is not a City edition.
var ErrNotCityDatabase = errors.New("geoip: database is not a city database")

// RadiusSource supplies characteristic region radii in meters.
type RadiusSource interface {
	Radius(code string) (float64, bool)
}

// Record is the answer for one address.
type Record struct {
	Lat        float64
	Lon        float64
	Accuracy   float64
	RegionCode string
	RegionName string
	City       bool
}

type cityRecord struct {
	City struct {
		GeoNameID uint              `maxminddb:"geoname_id"`
		Names     map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		IsoCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  *float64 `maxminddb:"latitude"`
		Longitude *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// DB is a hot swappable GeoIP reader. The zero value is not usable; use
// Open.
type DB struct {
	reader atomic.Pointer[maxminddb.Reader]
	radii  RadiusSource
	logger zerolog.Logger
}

// Open loads the database at path. An empty path yields a DB that is not
// Ready and finds nothing.
func Open(path string, radii RadiusSource, logger zerolog.Logger) (*DB, error) {
	db := &DB{radii: radii, logger: logger.With().Str("component", "geoip").Logger()}
	if path == "" {
		db.logger.Info().Msg("GeoIP disabled, no database path configured")
		return db, nil
	}
	if err := db.Reload(path); err != nil {
		return nil, err
	}
	return db, nil
}

// Reload replaces the active database with the file at path. On error the
// previous database stays active.
func (db *DB) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read geoip database: %w", err)
	}
	reader, err := maxminddb.FromBytes(data)
	if err != nil {
		return fmt.Errorf("parse geoip database: %w", err)
	}
	if !strings.Contains(reader.Metadata.DatabaseType, "City") {
		return fmt.Errorf("%w: %s", ErrNotCityDatabase, reader.Metadata.DatabaseType)
	}
	db.reader.Store(reader)
	db.logger.Info().
		Str("path", path).
		Str("type", reader.Metadata.DatabaseType).
		Time("built", buildTime(reader)).
		Msg("GeoIP database loaded")
	return nil
}

// Ready reports whether a database is loaded.
func (db *DB) Ready() bool {
	return db.reader.Load() != nil
}

// Age returns how old the loaded database build is, or -1 when none is
// loaded.
func (db *DB) Age(now time.Time) time.Duration {
	r := db.reader.Load()
	if r == nil {
		return -1
	}
	return now.Sub(buildTime(r))
}

// Lookup returns the position for ip. Records without a location or a
// country are not found.
func (db *DB) Lookup(ip net.IP) (Record, bool) {
	rec, ok := db.lookup(ip)
	if !ok || rec.Location.Latitude == nil || rec.Location.Longitude == nil || rec.Country.IsoCode == "" {
		return Record{}, false
	}
	code := strings.ToUpper(rec.Country.IsoCode)
	radius, known := db.regionRadius(code)
	if !known {
		radius = DefaultRegionRadius
	}
	out := Record{
		Lat:        round7(*rec.Location.Latitude),
		Lon:        round7(*rec.Location.Longitude),
		Accuracy:   radius,
		RegionCode: code,
		RegionName: rec.Country.Names["en"],
		City:       rec.City.GeoNameID != 0,
	}
	if out.City {
		out.Accuracy = math.Min(CityRadius, radius)
	}
	return out, true
}

// Country returns the region code and English name for ip. Unlike Lookup
// it does not need a location.
func (db *DB) Country(ip net.IP) (string, string, bool) {
	rec, ok := db.lookup(ip)
	if !ok || rec.Country.IsoCode == "" {
		return "", "", false
	}
	return strings.ToUpper(rec.Country.IsoCode), rec.Country.Names["en"], true
}

// Close releases the active reader.
func (db *DB) Close() error {
	r := db.reader.Swap(nil)
	if r == nil {
		return nil
	}
	return r.Close()
}

func (db *DB) lookup(ip net.IP) (cityRecord, bool) {
	var rec cityRecord
	r := db.reader.Load()
	if r == nil || ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return rec, false
	}
	_, found, err := r.LookupNetwork(ip, &rec)
	if err != nil {
		db.logger.Warn().Err(err).Str("ip", ip.String()).Msg("GeoIP lookup failed")
		return rec, false
	}
	return rec, found
}

func (db *DB) regionRadius(code string) (float64, bool) {
	if db.radii == nil {
		return 0, false
	}
	return db.radii.Radius(code)
}

func buildTime(r *maxminddb.Reader) time.Time {
	return time.Unix(int64(r.Metadata.BuildEpoch), 0).UTC()
}

func round7(v float64) float64 {
	return math.Round(v*1e7) / 1e7
}
