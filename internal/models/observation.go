// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

// Observation is one measurement of one station, combining the station
// fields of a report entry with the report position. Observations are the
// items on the per-shard station update queues and are never mutated once
// queued.
type Observation struct {
	Type StationType `json:"type"`
	CellKey
	MAC string `json:"mac,omitempty"`

	Lat              float64  `json:"lat"`
	Lon              float64  `json:"lon"`
	Accuracy         *float64 `json:"accuracy,omitempty"`
	Altitude         *float64 `json:"altitude,omitempty"`
	AltitudeAccuracy *float64 `json:"altitude_accuracy,omitempty"`
	Heading          *float64 `json:"heading,omitempty"`
	Speed            *float64 `json:"speed,omitempty"`
	Pressure         *float64 `json:"pressure,omitempty"`
	Source           string   `json:"source,omitempty"`
	Timestamp        int64    `json:"timestamp"` // epoch milliseconds

	// Nickname credits a new station to its submitter.
	Nickname string `json:"nickname,omitempty"`

	Age       *int64 `json:"age,omitempty"`
	Signal    *int   `json:"signal,omitempty"`
	SNR       *int   `json:"snr,omitempty"`
	TA        *int   `json:"ta,omitempty"`
	ASU       *int   `json:"asu,omitempty"`
	PSC       *int   `json:"psc,omitempty"`
	Channel   *int   `json:"channel,omitempty"`
	Frequency *int   `json:"frequency,omitempty"`
}

// Key is the station identity: the cell key string or the MAC.
func (o *Observation) Key() string {
	if o.Type == StationCell {
		return o.CellKey.String()
	}
	return o.MAC
}

// Shard names the station table and update queue suffix for the
// observation, e.g. cell_gsm or wifi_a.
func (o *Observation) Shard() string {
	if o.Type == StationCell {
		return CellShard(o.Radio)
	}
	return MACStationShard(o.Type, o.MAC)
}

// Better reports whether o is a better measurement of the same station than
// other. The lower accuracy wins when both carry one, then the stronger
// signal, the smaller timing advance and finally the higher ASU.
func (o *Observation) Better(other *Observation) bool {
	if o.Accuracy != nil && other.Accuracy != nil && *o.Accuracy != *other.Accuracy {
		return *o.Accuracy < *other.Accuracy
	}
	if o.Signal != nil && other.Signal != nil && *o.Signal != *other.Signal {
		return *o.Signal > *other.Signal
	}
	if o.TA != nil && other.TA != nil && *o.TA != *other.TA {
		return *o.TA < *other.TA
	}
	if o.ASU != nil && other.ASU != nil && *o.ASU != *other.ASU {
		return *o.ASU > *other.ASU
	}
	return false
}

func newObservation(t StationType, r *Report, ts int64) Observation {
	p := r.Position
	return Observation{
		Type:             t,
		Lat:              p.Lat,
		Lon:              p.Lon,
		Accuracy:         p.Accuracy,
		Altitude:         p.Altitude,
		AltitudeAccuracy: p.AltitudeAccuracy,
		Heading:          p.Heading,
		Speed:            p.Speed,
		Pressure:         p.Pressure,
		Source:           p.Source,
		Timestamp:        ts,
		Age:              p.Age,
	}
}

// CellObservation combines a cell entry with its report.
func CellObservation(r *Report, c *CellReport, ts int64) Observation {
	o := newObservation(StationCell, r, ts)
	o.CellKey = c.CellKey
	o.PSC, o.Signal, o.TA, o.ASU = c.PSC, c.Signal, c.TA, c.ASU
	if c.Age != nil {
		o.Age = c.Age
	}
	return o
}

// WifiObservation combines a Wi-Fi entry with its report.
func WifiObservation(r *Report, w *WifiReport, ts int64) Observation {
	o := newObservation(StationWifi, r, ts)
	o.MAC = w.MAC
	o.Channel, o.Frequency, o.Signal, o.SNR = w.Channel, w.Frequency, w.Signal, w.SNR
	if w.Age != nil {
		o.Age = w.Age
	}
	return o
}

// BlueObservation combines a Bluetooth entry with its report.
func BlueObservation(r *Report, b *BlueReport, ts int64) Observation {
	o := newObservation(StationBlue, r, ts)
	o.MAC = b.MAC
	o.Signal = b.Signal
	if b.Age != nil {
		o.Age = b.Age
	}
	return o
}
