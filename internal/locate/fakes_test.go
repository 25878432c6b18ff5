// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/triangulum/internal/geoip"
	"github.com/tomtom215/triangulum/internal/models"
	"github.com/tomtom215/triangulum/internal/regions"
)

// fakeStations serves stations from maps.
type fakeStations struct {
	mu    sync.Mutex
	cells map[models.CellKey]models.Station
	macs  map[string]models.Station
	areas map[models.CellAreaKey]models.Area
	err   error
	calls int
}

func newFakeStations() *fakeStations {
	return &fakeStations{
		cells: make(map[models.CellKey]models.Station),
		macs:  make(map[string]models.Station),
		areas: make(map[models.CellAreaKey]models.Area),
	}
}

func (f *fakeStations) addCell(k models.CellKey, lat, lon float64, radius int) {
	f.cells[k] = models.Station{
		Type: models.StationCell, CellKey: k,
		Lat: lat, Lon: lon, Radius: radius, Samples: 10,
		MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon,
	}
}

func (f *fakeStations) addMAC(t models.StationType, mac string, lat, lon float64) {
	f.macs[mac] = models.Station{
		Type: t, MAC: mac,
		Lat: lat, Lon: lon, Samples: 10,
		MinLat: lat, MaxLat: lat, MinLon: lon, MaxLon: lon,
	}
}

func (f *fakeStations) addArea(k models.CellAreaKey, lat, lon float64, radius int) {
	f.areas[k] = models.Area{CellAreaKey: k, Lat: lat, Lon: lon, Radius: radius, NumCells: 3}
}

func (f *fakeStations) CellStations(_ context.Context, keys []models.CellKey, _ time.Time) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Station
	for _, k := range keys {
		if st, ok := f.cells[k]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStations) MACStations(_ context.Context, t models.StationType, macs []string, _ time.Time) ([]models.Station, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Station
	for _, mac := range macs {
		if st, ok := f.macs[mac]; ok && st.Type == t {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStations) Areas(_ context.Context, keys []models.CellAreaKey) ([]models.Area, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Area
	for _, k := range keys {
		if a, ok := f.areas[k]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeGeoIP resolves addresses from maps keyed by the IP string.
type fakeGeoIP struct {
	records   map[string]geoip.Record
	countries map[string][2]string
}

func (f *fakeGeoIP) Lookup(ip net.IP) (geoip.Record, bool) {
	rec, ok := f.records[ip.String()]
	return rec, ok
}

func (f *fakeGeoIP) Country(ip net.IP) (string, string, bool) {
	c, ok := f.countries[ip.String()]
	if !ok {
		return "", "", false
	}
	return c[0], c[1], true
}

// londonGeoIP knows one London address.
func londonGeoIP() *fakeGeoIP {
	return &fakeGeoIP{
		records: map[string]geoip.Record{
			"81.2.69.160": {Lat: 51.5142, Lon: -0.0931, Accuracy: 50_000, RegionCode: "GB", RegionName: "United Kingdom", City: true},
		},
		countries: map[string][2]string{
			"81.2.69.160": {"GB", "United Kingdom"},
			"24.24.24.24": {"US", "United States"},
		},
	}
}

func testRegions(t *testing.T) *regions.Geocoder {
	t.Helper()
	g, err := regions.Default()
	if err != nil {
		t.Fatalf("failed to load regions: %v", err)
	}
	return g
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func gsmCell(cid int64) models.CellKey {
	return models.CellKey{Radio: models.RadioGSM, MCC: 234, MNC: 10, LAC: 3, CID: cid}
}
