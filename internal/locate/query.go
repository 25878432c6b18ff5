// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"net"
	"sort"
	"time"

	"github.com/tomtom215/triangulum/internal/models"
)

// CellQuery is one cell seen by the device.
type CellQuery struct {
	models.CellKey
	Signal *int
	TA     *int
	PSC    *int
	ASU    *int
	Age    *int64
}

// MACQuery is one Wi-Fi access point or Bluetooth beacon seen by the
// device.
type MACQuery struct {
	MAC       string
	Signal    *int
	SNR       *int
	Channel   *int
	Frequency *int
	Age       *int64
}

// SignalOrMissing returns the reported signal or MissingSignal.
func (m *MACQuery) SignalOrMissing() int {
	if m.Signal == nil {
		return MissingSignal
	}
	return *m.Signal
}

// Fallbacks toggles the reduced confidence providers. Both default to
// enabled.
type Fallbacks struct {
	LACF bool
	IPF  bool
}

// DefaultFallbacks enables every fallback.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{LACF: true, IPF: true}
}

// Query is a normalized locate request.
type Query struct {
	APIKey    *models.APIKey // nil when no valid key was given
	APIType   string
	Cells     []CellQuery          // full cell keys
	Areas     []models.CellAreaKey // every location area mentioned, deduplicated
	Wifis     []MACQuery
	Blues     []MACQuery
	IP        net.IP
	Fallbacks Fallbacks
	Now       time.Time
}

// KeyName is the API key string used on metrics and counters.
func (q *Query) KeyName() string {
	if q.APIKey == nil {
		return "none"
	}
	return q.APIKey.Key
}

// HasRadioData reports whether the query carries any station.
func (q *Query) HasRadioData() bool {
	return len(q.Cells) > 0 || len(q.Areas) > 0 || len(q.Wifis) > 0 || len(q.Blues) > 0
}

// ExpectedAccuracy is the accuracy class the query data can deliver. An
// answer at or below it satisfies the query.
func (q *Query) ExpectedAccuracy() float64 {
	switch {
	case len(q.Wifis) >= MinMACsInQuery || len(q.Blues) >= MinMACsInQuery:
		return AccuracyHigh
	case len(q.Cells) > 0 || len(q.Areas) > 0:
		return AccuracyMedium
	}
	return 0
}

// Satisfies reports whether an answer with the given accuracy is good
// enough for the query.
func (q *Query) Satisfies(accuracy float64) bool {
	expected := q.ExpectedAccuracy()
	if expected == 0 {
		return accuracy > 0
	}
	return accuracy <= expected
}

// Normalize drops invalid stations and duplicates. Cells keep the first
// entry per key; Wi-Fi and Bluetooth entries keep the strongest signal per
// MAC, and only MACs usable for positioning survive.
func (q *Query) Normalize() {
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}

	seenCells := make(map[models.CellKey]struct{}, len(q.Cells))
	seenAreas := make(map[models.CellAreaKey]struct{}, len(q.Areas)+len(q.Cells))
	areas := make([]models.CellAreaKey, 0, len(q.Areas)+len(q.Cells))
	addArea := func(a models.CellAreaKey) {
		if !a.Valid() {
			return
		}
		if _, ok := seenAreas[a]; ok {
			return
		}
		seenAreas[a] = struct{}{}
		areas = append(areas, a)
	}
	for _, a := range q.Areas {
		addArea(a)
	}

	cells := q.Cells[:0]
	for _, c := range q.Cells {
		addArea(c.Area())
		if !c.Valid() {
			continue
		}
		if _, ok := seenCells[c.CellKey]; ok {
			continue
		}
		seenCells[c.CellKey] = struct{}{}
		cells = append(cells, c)
	}
	q.Cells = cells
	q.Areas = areas
	q.Wifis = normalizeMACs(q.Wifis)
	q.Blues = normalizeMACs(q.Blues)
}

func normalizeMACs(in []MACQuery) []MACQuery {
	best := make(map[string]int, len(in))
	out := make([]MACQuery, 0, len(in))
	for _, m := range in {
		m.MAC = models.NormalizeMAC(m.MAC)
		if !models.UsableMAC(m.MAC) {
			continue
		}
		if i, ok := best[m.MAC]; ok {
			if m.SignalOrMissing() > out[i].SignalOrMissing() {
				out[i] = m
			}
			continue
		}
		best[m.MAC] = len(out)
		out = append(out, m)
	}
	return out
}

// cellKeys returns the cell keys in query order.
func (q *Query) cellKeys() []models.CellKey {
	keys := make([]models.CellKey, len(q.Cells))
	for i := range q.Cells {
		keys[i] = q.Cells[i].CellKey
	}
	return keys
}

func macList(in []MACQuery) []string {
	macs := make([]string, len(in))
	for i := range in {
		macs[i] = in[i].MAC
	}
	sort.Strings(macs)
	return macs
}
