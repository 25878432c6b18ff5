// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"time"

	"github.com/tomtom215/triangulum/internal/locate"
	"github.com/tomtom215/triangulum/internal/models"
)

// GeoSubmitRequest is the body of /v1/geosubmit and /v2/geosubmit.
type GeoSubmitRequest struct {
	Items *[]GeoSubmitItem `json:"items"`
}

// GeoSubmitItem is one submitted report. /v2/geosubmit nests the position
// under "position"; /v1/geosubmit carries the same fields on the item
// itself. A nested position wins when both are present.
type GeoSubmitItem struct {
	GeoSubmitPosition

	Timestamp        int64                    `json:"timestamp,omitempty"`
	RadioType        string                   `json:"radioType,omitempty"`
	Position         *GeoSubmitPosition       `json:"position,omitempty"`
	CellTowers       []GeoSubmitCell          `json:"cellTowers,omitempty"`
	WifiAccessPoints []GeoSubmitWifi          `json:"wifiAccessPoints,omitempty"`
	BluetoothBeacons []locate.BluetoothBeacon `json:"bluetoothBeacons,omitempty"`
}

// GeoSubmitPosition is the device position of a report.
type GeoSubmitPosition struct {
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitudeAccuracy,omitempty"`
	Age              *int64   `json:"age,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
	Pressure         *float64 `json:"pressure,omitempty"`
	Source           string   `json:"source,omitempty"`
}

// GeoSubmitCell is a submitted cell. /v1/geosubmit names the scrambling
// code "psc".
type GeoSubmitCell struct {
	locate.CellTower
	ShortPSC *int `json:"psc,omitempty"`
	Serving  *int `json:"serving,omitempty"`
}

// GeoSubmitWifi is a submitted Wi-Fi access point.
type GeoSubmitWifi = locate.WifiAccessPoint

// SubmitRequest is the legacy /v1/submit body.
type SubmitRequest struct {
	Items *[]SubmitItem `json:"items"`
}

// SubmitItem is one legacy report. Time is an ISO 8601 string.
type SubmitItem struct {
	Lat              *float64     `json:"lat,omitempty"`
	Lon              *float64     `json:"lon,omitempty"`
	Time             string       `json:"time,omitempty"`
	Accuracy         *float64     `json:"accuracy,omitempty"`
	Age              *int64       `json:"age,omitempty"`
	Altitude         *float64     `json:"altitude,omitempty"`
	AltitudeAccuracy *float64     `json:"altitude_accuracy,omitempty"`
	Heading          *float64     `json:"heading,omitempty"`
	Pressure         *float64     `json:"pressure,omitempty"`
	Speed            *float64     `json:"speed,omitempty"`
	Source           string       `json:"source,omitempty"`
	Radio            string       `json:"radio,omitempty"`
	Cells            []SubmitCell `json:"cell,omitempty"`
	Wifis            []SubmitWifi `json:"wifi,omitempty"`
}

// SubmitCell is a legacy cell entry.
type SubmitCell struct {
	SearchCell
	Age     *int64 `json:"age,omitempty"`
	Serving *int   `json:"serving,omitempty"`
}

// SubmitWifi is a legacy Wi-Fi entry.
type SubmitWifi struct {
	SearchWifi
	Age *int64 `json:"age,omitempty"`
}

// legacyTimeLayouts are the accepted forms of SubmitItem.Time.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Reports converts the items. Items without a position, and stations
// with an unknown radio or no cell id, are skipped; the ingest pipeline
// validates everything else.
func (g *GeoSubmitRequest) Reports() []models.Report {
	if g.Items == nil {
		return nil
	}
	out := make([]models.Report, 0, len(*g.Items))
	for i := range *g.Items {
		if r, ok := (*g.Items)[i].report(); ok {
			out = append(out, r)
		}
	}
	return out
}

func (it *GeoSubmitItem) report() (models.Report, bool) {
	p := it.GeoSubmitPosition
	if it.Position != nil {
		p = *it.Position
	}
	if p.Latitude == nil || p.Longitude == nil {
		return models.Report{}, false
	}

	r := models.Report{
		Timestamp: it.Timestamp,
		Position: models.Position{
			Lat:              *p.Latitude,
			Lon:              *p.Longitude,
			Accuracy:         p.Accuracy,
			Altitude:         p.Altitude,
			AltitudeAccuracy: p.AltitudeAccuracy,
			Age:              p.Age,
			Heading:          p.Heading,
			Speed:            p.Speed,
			Pressure:         p.Pressure,
			Source:           p.Source,
		},
	}
	for _, c := range it.CellTowers {
		name := c.RadioType
		if name == "" {
			name = it.RadioType
		}
		radio, err := models.ParseRadio(name)
		if err != nil || c.CellID == nil {
			continue
		}
		psc := c.PSC
		if psc == nil {
			psc = c.ShortPSC
		}
		r.Cells = append(r.Cells, models.CellReport{
			CellKey: models.CellKey{
				Radio: radio,
				MCC:   c.MobileCountryCode,
				MNC:   c.MobileNetworkCode,
				LAC:   c.LocationAreaCode,
				CID:   *c.CellID,
			},
			PSC:     psc,
			Signal:  c.SignalStrength,
			TA:      c.TimingAdvance,
			ASU:     c.ASU,
			Age:     c.Age,
			Serving: c.Serving,
		})
	}
	for _, w := range it.WifiAccessPoints {
		if w.MACAddress == "" {
			continue
		}
		r.Wifis = append(r.Wifis, models.WifiReport{
			MAC:       w.MACAddress,
			Channel:   w.Channel,
			Frequency: w.Frequency,
			Signal:    w.SignalStrength,
			SNR:       w.SignalToNoiseRatio,
			Age:       w.Age,
		})
	}
	for _, b := range it.BluetoothBeacons {
		if b.MACAddress == "" {
			continue
		}
		r.Blues = append(r.Blues, models.BlueReport{MAC: b.MACAddress, Signal: b.SignalStrength, Age: b.Age})
	}
	return r, true
}

// Reports converts the legacy items with the same rules as
// GeoSubmitRequest.Reports.
func (s *SubmitRequest) Reports() []models.Report {
	if s.Items == nil {
		return nil
	}
	out := make([]models.Report, 0, len(*s.Items))
	for i := range *s.Items {
		if r, ok := (*s.Items)[i].report(); ok {
			out = append(out, r)
		}
	}
	return out
}

func (it *SubmitItem) report() (models.Report, bool) {
	if it.Lat == nil || it.Lon == nil {
		return models.Report{}, false
	}
	r := models.Report{
		Timestamp: parseLegacyTime(it.Time),
		Position: models.Position{
			Lat:              *it.Lat,
			Lon:              *it.Lon,
			Accuracy:         it.Accuracy,
			Altitude:         it.Altitude,
			AltitudeAccuracy: it.AltitudeAccuracy,
			Age:              it.Age,
			Heading:          it.Heading,
			Speed:            it.Speed,
			Pressure:         it.Pressure,
			Source:           it.Source,
		},
	}
	for _, c := range it.Cells {
		name := c.Radio
		if name == "" {
			name = it.Radio
		}
		radio, err := models.ParseRadio(name)
		if err != nil || c.CID == nil {
			continue
		}
		r.Cells = append(r.Cells, models.CellReport{
			CellKey: models.CellKey{Radio: radio, MCC: c.MCC, MNC: c.MNC, LAC: c.LAC, CID: *c.CID},
			PSC:     c.PSC,
			Signal:  c.Signal,
			TA:      c.TA,
			ASU:     c.ASU,
			Age:     c.Age,
			Serving: c.Serving,
		})
	}
	for _, w := range it.Wifis {
		if w.Key == "" {
			continue
		}
		r.Wifis = append(r.Wifis, models.WifiReport{
			MAC:       w.Key,
			Channel:   w.Channel,
			Frequency: w.Frequency,
			Signal:    w.Signal,
			SNR:       w.SNR,
			Age:       w.Age,
		})
	}
	return r, true
}

// parseLegacyTime returns epoch milliseconds, or zero when s is empty or
// unparseable so that ingest substitutes the receive time.
func parseLegacyTime(s string) int64 {
	if s == "" {
		return 0
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}
