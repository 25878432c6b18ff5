// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"time"

	"github.com/tomtom215/triangulum/internal/validation"
)

// Position source values, best first.
const (
	SourceFixed = "fixed"
	SourceGNSS  = "gnss"
	SourceFused = "fused"
	SourceQuery = "query"
)

// Observation field bounds shared by all station types.
const (
	MaxAccuracy = 1_000_000.0
	MinAge      = -3_600_000
	MaxAge      = 3_600_000

	MinWifiChannel   = 1
	MaxWifiChannel   = 199
	MinWifiFrequency = 2400
	MaxWifiFrequency = 5999
	MinWifiSignal    = -100
	MaxWifiSignal    = -10
	MinWifiSNR       = 1
	MaxWifiSNR       = 100
	MinBlueSignal    = -127
	MaxBlueSignal    = 0

	// MaxTimestampAge bounds how far back a report timestamp is trusted.
	MaxTimestampAge = 60 * 24 * time.Hour
)

// Position is the device position attached to a report. Ranges are enforced
// by Validate; a report whose position fails is dropped as a whole.
type Position struct {
	Lat              float64  `json:"lat" validate:"finite,gte=-85.051,lte=85.051"`
	Lon              float64  `json:"lon" validate:"finite,gte=-180,lte=180"`
	Accuracy         *float64 `json:"accuracy,omitempty" validate:"omitempty,finite,gte=0,lte=1000000"`
	Altitude         *float64 `json:"altitude,omitempty" validate:"omitempty,finite,gte=-10911,lte=100000"`
	AltitudeAccuracy *float64 `json:"altitude_accuracy,omitempty" validate:"omitempty,finite,gte=0,lte=110911"`
	Age              *int64   `json:"age,omitempty" validate:"omitempty,gte=-3600000,lte=3600000"`
	Heading          *float64 `json:"heading,omitempty" validate:"omitempty,finite,gte=0,lte=360"`
	Speed            *float64 `json:"speed,omitempty" validate:"omitempty,finite,gte=0,lte=300"`
	Pressure         *float64 `json:"pressure,omitempty" validate:"omitempty,finite,gte=100,lte=1200"`
	Source           string   `json:"source,omitempty" validate:"omitempty,oneof=fixed gnss fused query"`
}

// Validate checks the position ranges.
func (p *Position) Validate() error {
	return validation.ValidateStruct(p)
}

// CellReport is one cell entry inside a report.
type CellReport struct {
	CellKey
	PSC     *int   `json:"psc,omitempty"`
	Signal  *int   `json:"signal,omitempty"`
	TA      *int   `json:"ta,omitempty"`
	ASU     *int   `json:"asu,omitempty"`
	Age     *int64 `json:"age,omitempty"`
	Serving *int   `json:"serving,omitempty"`
}

// Sanitize clears optional fields that are out of range for the radio.
func (c *CellReport) Sanitize() {
	if c.PSC != nil && !pscInRange(c.Radio, *c.PSC) {
		c.PSC = nil
	}
	if c.Signal != nil && !cellSignalInRange(c.Radio, *c.Signal) {
		c.Signal = nil
	}
	if c.TA != nil && (*c.TA < MinTA || *c.TA > MaxTA || c.Radio == RadioWCDMA || c.Radio == RadioCDMA) {
		c.TA = nil
	}
	if c.ASU != nil && !cellASUInRange(c.Radio, *c.ASU) {
		c.ASU = nil
	}
	c.Age = clampAge(c.Age)
	if c.Serving != nil && *c.Serving != 0 && *c.Serving != 1 {
		c.Serving = nil
	}
}

// WifiReport is one Wi-Fi access point entry inside a report.
type WifiReport struct {
	MAC       string `json:"mac"`
	Channel   *int   `json:"channel,omitempty"`
	Frequency *int   `json:"frequency,omitempty"`
	Signal    *int   `json:"signal,omitempty"`
	SNR       *int   `json:"snr,omitempty"`
	Age       *int64 `json:"age,omitempty"`
}

// Sanitize normalizes the MAC and clears out of range optional fields. The
// channel is derived from the frequency when only the latter is present.
func (w *WifiReport) Sanitize() {
	w.MAC = NormalizeMAC(w.MAC)
	if w.Frequency != nil && (*w.Frequency < MinWifiFrequency || *w.Frequency > MaxWifiFrequency) {
		w.Frequency = nil
	}
	if w.Channel != nil && (*w.Channel < MinWifiChannel || *w.Channel > MaxWifiChannel) {
		w.Channel = nil
	}
	if w.Channel == nil && w.Frequency != nil {
		if ch, ok := ChannelForFrequency(*w.Frequency); ok {
			w.Channel = &ch
		}
	}
	if w.Signal != nil && (*w.Signal < MinWifiSignal || *w.Signal > MaxWifiSignal) {
		w.Signal = nil
	}
	if w.SNR != nil && (*w.SNR < MinWifiSNR || *w.SNR > MaxWifiSNR) {
		w.SNR = nil
	}
	w.Age = clampAge(w.Age)
}

// BlueReport is one Bluetooth beacon entry inside a report.
type BlueReport struct {
	MAC    string `json:"mac"`
	Signal *int   `json:"signal,omitempty"`
	Age    *int64 `json:"age,omitempty"`
}

// Sanitize normalizes the MAC and clears out of range optional fields.
func (b *BlueReport) Sanitize() {
	b.MAC = NormalizeMAC(b.MAC)
	if b.Signal != nil && (*b.Signal < MinBlueSignal || *b.Signal > MaxBlueSignal) {
		b.Signal = nil
	}
	b.Age = clampAge(b.Age)
}

// Report is one submitted position with the emitters seen there.
type Report struct {
	Timestamp int64        `json:"timestamp,omitempty"` // epoch milliseconds
	Position  Position     `json:"position"`
	Cells     []CellReport `json:"cell,omitempty"`
	Wifis     []WifiReport `json:"wifi,omitempty"`
	Blues     []BlueReport `json:"blue,omitempty"`
}

// HasStations reports whether the report carries any emitter at all.
func (r *Report) HasStations() bool {
	return len(r.Cells) > 0 || len(r.Wifis) > 0 || len(r.Blues) > 0
}

// ReportBatch is the unit placed on the incoming queue: every report of one
// submission together with its submitter.
type ReportBatch struct {
	APIKey   string   `json:"api_key,omitempty"`
	Nickname string   `json:"nickname,omitempty"`
	Reports  []Report `json:"reports"`
}

// NormalizeTimestamp replaces missing or untrusted timestamps with now and
// truncates the result to the first day of its month in UTC.
func NormalizeTimestamp(ms int64, now time.Time) time.Time {
	now = now.UTC()
	ts := now
	if ms > 0 {
		t := time.UnixMilli(ms).UTC()
		if !t.After(now) && !t.Before(now.Add(-MaxTimestampAge)) {
			ts = t
		}
	}
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ChannelForFrequency maps a Wi-Fi center frequency in MHz onto its channel.
func ChannelForFrequency(mhz int) (int, bool) {
	switch {
	case mhz == 2484:
		return 14, true
	case mhz >= 2412 && mhz < 2484:
		return (mhz - 2407) / 5, true
	case mhz >= 5000 && mhz <= 5999:
		return (mhz - 5000) / 5, true
	}
	return 0, false
}

func clampAge(age *int64) *int64 {
	if age == nil || (*age >= MinAge && *age <= MaxAge) {
		return age
	}
	return nil
}
