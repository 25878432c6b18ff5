// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"math"
	"time"
)

// Blocklist policy.
const (
	// TemporaryBlockDuration is how long a detected move keeps dropping
	// observations for the station.
	TemporaryBlockDuration = 7 * 24 * time.Hour

	// PermanentBlockThreshold is the move count at which a block never
	// expires.
	PermanentBlockThreshold = 6

	// MaxOldSamples caps the weight of the existing estimate when merging
	// new observations, so long-lived stations can still drift.
	MaxOldSamples = 1000
)

// Station is the persisted estimate for one emitter. The same shape serves
// every cell, Wi-Fi and Bluetooth shard table; the identity fields in use
// depend on Type.
type Station struct {
	Type StationType `json:"type"`
	CellKey
	MAC string `json:"mac,omitempty"`
	PSC *int   `json:"psc,omitempty"`

	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Radius  int     `json:"radius"` // meters
	Samples int64   `json:"samples"`
	MinLat  float64 `json:"min_lat"`
	MaxLat  float64 `json:"max_lat"`
	MinLon  float64 `json:"min_lon"`
	MaxLon  float64 `json:"max_lon"`
	Region  string  `json:"region,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	LastSeen   time.Time `json:"last_seen"` // date, UTC midnight

	// BlockLast is the last detected move, set on locate reads when the
	// station has an expired block entry.
	BlockLast time.Time `json:"-"`
}

// Key is the station identity: the cell key string or the MAC.
func (s *Station) Key() string {
	if s.Type == StationCell {
		return s.CellKey.String()
	}
	return s.MAC
}

// HasPosition reports whether the station carries a position estimate.
func (s *Station) HasPosition() bool {
	return s.Samples > 0
}

// Score rates how trustworthy the estimate is. It grows with the sample
// count and the number of days the station has been seen at its current
// position, and decays with the age of the last update. A station with
// many samples and no radius saw identical observations and is scored as
// a single sample.
func (s *Station) Score(now time.Time) float64 {
	monthsOld := math.Max(now.Sub(s.ModifiedAt).Hours()/24, 0) / 30
	ageWeight := 1 / math.Sqrt(math.Floor(monthsOld)+1)

	since := DateOf(s.CreatedAt)
	if !s.BlockLast.IsZero() && DateOf(s.BlockLast).After(since) {
		since = DateOf(s.BlockLast)
	}
	days := math.Max(DateOf(s.ModifiedAt).Sub(since).Hours()/24, 1)
	collectionWeight := math.Min(days/10, 1)

	samples := float64(s.Samples)
	if samples > 1 && s.Radius == 0 {
		samples = 1
	}
	sampleWeight := math.Min(math.Max(math.Log2(math.Max(samples, 1)), 0.5), 10)

	return ageWeight * collectionWeight * sampleWeight
}

// BlockEntry records the detected moves of one station identity.
type BlockEntry struct {
	Key     string    `json:"key"`
	FirstAt time.Time `json:"first_at"`
	LastAt  time.Time `json:"last_at"`
	Count   int       `json:"count"`
}

// Permanent reports whether the block never expires.
func (b *BlockEntry) Permanent() bool {
	return b.Count >= PermanentBlockThreshold
}

// Blocked reports whether observations for the station are dropped at now.
func (b *BlockEntry) Blocked(now time.Time) bool {
	return b.Permanent() || now.Sub(b.LastAt) < TemporaryBlockDuration
}

// Area is the aggregate of every positioned cell in one location area.
type Area struct {
	CellAreaKey
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	Radius        int       `json:"radius"`
	AvgCellRadius int       `json:"avg_cell_radius"`
	NumCells      int       `json:"num_cells"`
	MinLat        float64   `json:"min_lat"`
	MaxLat        float64   `json:"max_lat"`
	MinLon        float64   `json:"min_lon"`
	MaxLon        float64   `json:"max_lon"`
	Region        string    `json:"region,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	ModifiedAt    time.Time `json:"modified_at"`
	LastSeen      time.Time `json:"last_seen"`
}

// CellShard names the station shard for a radio.
func CellShard(r Radio) string {
	return "cell_" + string(r)
}

// MACStationShard names the Wi-Fi or Bluetooth station shard for a MAC.
func MACStationShard(t StationType, mac string) string {
	return string(t) + "_" + MACShard(mac)
}

const hexDigits = "0123456789abcdef"

// StationShards lists every station shard: four cell shards followed by
// sixteen Wi-Fi and sixteen Bluetooth shards.
func StationShards() []string {
	shards := make([]string, 0, len(Radios)+32)
	for _, r := range Radios {
		shards = append(shards, CellShard(r))
	}
	for _, t := range []StationType{StationWifi, StationBlue} {
		for i := 0; i < len(hexDigits); i++ {
			shards = append(shards, string(t)+"_"+hexDigits[i:i+1])
		}
	}
	return shards
}

// ShardType returns the station type a shard name belongs to.
func ShardType(shard string) (StationType, bool) {
	for _, t := range StationTypes {
		if len(shard) > len(t)+1 && shard[:len(t)] == string(t) && shard[len(t)] == '_' {
			return t, true
		}
	}
	return "", false
}

// DateOf truncates t to its UTC date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
