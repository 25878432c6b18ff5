// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"
	"net"
	"time"

	"github.com/tomtom215/triangulum/internal/geoip"
	"github.com/tomtom215/triangulum/internal/models"
	"github.com/tomtom215/triangulum/internal/regions"
)

// Provider is one source in the search chain.
type Provider interface {
	// Name labels the provider on logs and metrics.
	Name() string
	// ShouldSearch is a cheap gate evaluated before Search. best is the
	// answer selected so far and may be empty.
	ShouldSearch(q *Query, best Outcome) bool
	// Search never fails; problems are logged and yield an empty Outcome.
	Search(ctx context.Context, q *Query) Outcome
}

// Precedence ranks answer sources. Higher wins regardless of accuracy.
type Precedence int

const (
	PrecedenceNone Precedence = iota
	PrecedenceGeoIP
	PrecedenceFallback
	PrecedenceCellArea
	PrecedenceCell
	PrecedenceMAC // Wi-Fi and Bluetooth
)

// score maps a precedence onto the [0,1] result score.
func (p Precedence) score() float64 {
	return float64(p) / float64(PrecedenceMAC)
}

// Outcome is what a provider found.
type Outcome struct {
	Result     models.Result
	Precedence Precedence
	Hit        bool
}

// Found reports whether the outcome carries an answer.
func (o Outcome) Found() bool {
	return o.Result.Found()
}

// Better reports whether o should replace best.
func (o Outcome) Better(best Outcome) bool {
	if !o.Found() {
		return false
	}
	if !best.Found() || o.Precedence > best.Precedence {
		return true
	}
	return o.Precedence == best.Precedence && o.Result.Accuracy < best.Result.Accuracy
}

func positionOutcome(q *Query, p Precedence, res models.Result) Outcome {
	res.Kind = models.ResultPosition
	res.Score = p.score()
	return Outcome{Result: res, Precedence: p, Hit: q.Satisfies(res.Accuracy)}
}

// StationSource reads positioned stations and areas. Blocked stations are
// never returned.
type StationSource interface {
	CellStations(ctx context.Context, keys []models.CellKey, now time.Time) ([]models.Station, error)
	MACStations(ctx context.Context, t models.StationType, macs []string, now time.Time) ([]models.Station, error)
	Areas(ctx context.Context, keys []models.CellAreaKey) ([]models.Area, error)
}

// GeoIPSource resolves client addresses.
type GeoIPSource interface {
	Lookup(ip net.IP) (geoip.Record, bool)
	Country(ip net.IP) (code, name string, ok bool)
}

// RegionSource resolves region metadata and MCC mappings.
type RegionSource interface {
	ForCode(code string) (regions.Region, bool)
	CodesForMCC(mcc int) []string
	ForCell(lat, lon float64, mcc int) (string, bool)
}
