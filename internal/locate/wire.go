// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"sort"

	"github.com/tomtom215/triangulum/internal/models"
)

// GeolocateRequest is the body of a geolocate call. The same shape is sent
// to external fallback services.
type GeolocateRequest struct {
	HomeMobileCountryCode *int              `json:"homeMobileCountryCode,omitempty"`
	HomeMobileNetworkCode *int              `json:"homeMobileNetworkCode,omitempty"`
	RadioType             string            `json:"radioType,omitempty"`
	Carrier               string            `json:"carrier,omitempty"`
	ConsiderIP            *bool             `json:"considerIp,omitempty"`
	CellTowers            []CellTower       `json:"cellTowers,omitempty"`
	WifiAccessPoints      []WifiAccessPoint `json:"wifiAccessPoints,omitempty"`
	BluetoothBeacons      []BluetoothBeacon `json:"bluetoothBeacons,omitempty"`
	Fallbacks             *FallbackOptions  `json:"fallbacks,omitempty"`
}

// CellTower is one entry of cellTowers. A tower without cellId names a
// location area only.
type CellTower struct {
	RadioType         string `json:"radioType,omitempty"`
	MobileCountryCode int    `json:"mobileCountryCode"`
	MobileNetworkCode int    `json:"mobileNetworkCode"`
	LocationAreaCode  int    `json:"locationAreaCode"`
	CellID            *int64 `json:"cellId,omitempty"`
	Age               *int64 `json:"age,omitempty"`
	SignalStrength    *int   `json:"signalStrength,omitempty"`
	TimingAdvance     *int   `json:"timingAdvance,omitempty"`
	PSC               *int   `json:"primaryScramblingCode,omitempty"`
	ASU               *int   `json:"asu,omitempty"`
}

// WifiAccessPoint is one entry of wifiAccessPoints.
type WifiAccessPoint struct {
	MACAddress         string `json:"macAddress"`
	Age                *int64 `json:"age,omitempty"`
	Channel            *int   `json:"channel,omitempty"`
	Frequency          *int   `json:"frequency,omitempty"`
	SignalStrength     *int   `json:"signalStrength,omitempty"`
	SignalToNoiseRatio *int   `json:"signalToNoiseRatio,omitempty"`
	SSID               string `json:"ssid,omitempty"`
}

// BluetoothBeacon is one entry of bluetoothBeacons.
type BluetoothBeacon struct {
	MACAddress     string `json:"macAddress"`
	Age            *int64 `json:"age,omitempty"`
	Name           string `json:"name,omitempty"`
	SignalStrength *int   `json:"signalStrength,omitempty"`
}

// FallbackOptions toggles fallbacks. Absent fields keep the default.
type FallbackOptions struct {
	LACF *bool `json:"lacf,omitempty"`
	IPF  *bool `json:"ipf,omitempty"`
}

// GeolocateResponse is the body of a successful geolocate answer.
type GeolocateResponse struct {
	Location LatLng  `json:"location"`
	Accuracy float64 `json:"accuracy"`
	Fallback string  `json:"fallback,omitempty"`
}

// LatLng is a position on the geolocate wire.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Query converts the request into an unnormalized query. Towers with an
// unknown radio type are skipped.
func (r *GeolocateRequest) Query() *Query {
	q := &Query{Fallbacks: DefaultFallbacks()}
	if r.Fallbacks != nil {
		if r.Fallbacks.LACF != nil {
			q.Fallbacks.LACF = *r.Fallbacks.LACF
		}
		if r.Fallbacks.IPF != nil {
			q.Fallbacks.IPF = *r.Fallbacks.IPF
		}
	}

	for _, t := range r.CellTowers {
		name := t.RadioType
		if name == "" {
			name = r.RadioType
		}
		radio, err := models.ParseRadio(name)
		if err != nil {
			continue
		}
		if t.CellID == nil {
			q.Areas = append(q.Areas, models.CellAreaKey{
				Radio: radio, MCC: t.MobileCountryCode, MNC: t.MobileNetworkCode, LAC: t.LocationAreaCode,
			})
			continue
		}
		q.Cells = append(q.Cells, CellQuery{
			CellKey: models.CellKey{
				Radio: radio,
				MCC:   t.MobileCountryCode,
				MNC:   t.MobileNetworkCode,
				LAC:   t.LocationAreaCode,
				CID:   *t.CellID,
			},
			Signal: t.SignalStrength,
			TA:     t.TimingAdvance,
			PSC:    t.PSC,
			ASU:    t.ASU,
			Age:    t.Age,
		})
	}

	for _, w := range r.WifiAccessPoints {
		q.Wifis = append(q.Wifis, MACQuery{
			MAC:       w.MACAddress,
			Signal:    w.SignalStrength,
			SNR:       w.SignalToNoiseRatio,
			Channel:   w.Channel,
			Frequency: w.Frequency,
			Age:       w.Age,
		})
	}
	for _, b := range r.BluetoothBeacons {
		q.Blues = append(q.Blues, MACQuery{MAC: b.MACAddress, Signal: b.SignalStrength, Age: b.Age})
	}
	return q
}

// outboundRequest builds the body sent to an external fallback service
// from a normalized query. Bluetooth beacons are not forwarded and the
// upstream is never asked to use the client address.
func outboundRequest(q *Query) *GeolocateRequest {
	noIP := false
	lacf := q.Fallbacks.LACF
	req := &GeolocateRequest{
		ConsiderIP: &noIP,
		Fallbacks:  &FallbackOptions{LACF: &lacf, IPF: &noIP},
	}
	for _, c := range q.Cells {
		cid := c.CID
		req.CellTowers = append(req.CellTowers, CellTower{
			RadioType:         string(c.Radio),
			MobileCountryCode: c.MCC,
			MobileNetworkCode: c.MNC,
			LocationAreaCode:  c.LAC,
			CellID:            &cid,
			Age:               c.Age,
			SignalStrength:    c.Signal,
			TimingAdvance:     c.TA,
			PSC:               c.PSC,
			ASU:               c.ASU,
		})
	}
	for _, w := range q.Wifis {
		req.WifiAccessPoints = append(req.WifiAccessPoints, WifiAccessPoint{
			MACAddress:         w.MAC,
			Age:                w.Age,
			Channel:            w.Channel,
			Frequency:          w.Frequency,
			SignalStrength:     w.Signal,
			SignalToNoiseRatio: w.SNR,
		})
	}
	return req
}

// fingerprintInput is the canonical form of an outbound request: station
// keys only, sorted, so that signal jitter maps onto one cache entry.
type fingerprintInput struct {
	Cells []string `json:"cells"`
	Wifis []string `json:"wifis"`
	LACF  bool     `json:"lacf"`
}

func canonicalOutbound(req *GeolocateRequest) fingerprintInput {
	in := fingerprintInput{
		Cells: make([]string, 0, len(req.CellTowers)),
		Wifis: make([]string, 0, len(req.WifiAccessPoints)),
	}
	for _, t := range req.CellTowers {
		key := models.CellKey{
			Radio: models.Radio(t.RadioType),
			MCC:   t.MobileCountryCode,
			MNC:   t.MobileNetworkCode,
			LAC:   t.LocationAreaCode,
		}
		if t.CellID != nil {
			key.CID = *t.CellID
		}
		in.Cells = append(in.Cells, key.String())
	}
	for _, w := range req.WifiAccessPoints {
		in.Wifis = append(in.Wifis, w.MACAddress)
	}
	sort.Strings(in.Cells)
	sort.Strings(in.Wifis)
	if req.Fallbacks != nil && req.Fallbacks.LACF != nil {
		in.LACF = *req.Fallbacks.LACF
	}
	return in
}
