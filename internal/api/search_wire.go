// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import "github.com/tomtom215/triangulum/internal/locate"

// SearchRequest is the legacy /v1/search body.
type SearchRequest struct {
	Radio     string                  `json:"radio,omitempty"`
	Cells     []SearchCell            `json:"cell,omitempty"`
	Wifis     []SearchWifi            `json:"wifi,omitempty"`
	Blues     []SearchBlue            `json:"blue,omitempty"`
	Fallbacks *locate.FallbackOptions `json:"fallbacks,omitempty"`
}

// SearchCell is one legacy cell entry. A cell without cid names a location
// area only.
type SearchCell struct {
	Radio  string `json:"radio,omitempty"`
	MCC    int    `json:"mcc"`
	MNC    int    `json:"mnc"`
	LAC    int    `json:"lac"`
	CID    *int64 `json:"cid,omitempty"`
	ASU    *int   `json:"asu,omitempty"`
	PSC    *int   `json:"psc,omitempty"`
	Signal *int   `json:"signal,omitempty"`
	TA     *int   `json:"ta,omitempty"`
}

// SearchWifi is one legacy Wi-Fi entry; key is the BSSID.
type SearchWifi struct {
	Key       string `json:"key"`
	Frequency *int   `json:"frequency,omitempty"`
	Channel   *int   `json:"channel,omitempty"`
	Signal    *int   `json:"signal,omitempty"`
	SNR       *int   `json:"signalToNoiseRatio,omitempty"`
	SSID      string `json:"ssid,omitempty"`
}

// SearchBlue is one legacy Bluetooth entry.
type SearchBlue struct {
	Key    string `json:"key"`
	Signal *int   `json:"signal,omitempty"`
	Name   string `json:"name,omitempty"`
}

// SearchResponse is the legacy answer. A miss carries only the status.
type SearchResponse struct {
	Status   string   `json:"status"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Fallback string   `json:"fallback,omitempty"`
}

// GeolocateRequest maps the legacy body onto the geolocate shape so both
// endpoints share one query path.
func (s *SearchRequest) GeolocateRequest() *locate.GeolocateRequest {
	req := &locate.GeolocateRequest{RadioType: s.Radio, Fallbacks: s.Fallbacks}
	for _, c := range s.Cells {
		req.CellTowers = append(req.CellTowers, locate.CellTower{
			RadioType:         c.Radio,
			MobileCountryCode: c.MCC,
			MobileNetworkCode: c.MNC,
			LocationAreaCode:  c.LAC,
			CellID:            c.CID,
			SignalStrength:    c.Signal,
			TimingAdvance:     c.TA,
			PSC:               c.PSC,
			ASU:               c.ASU,
		})
	}
	for _, w := range s.Wifis {
		req.WifiAccessPoints = append(req.WifiAccessPoints, locate.WifiAccessPoint{
			MACAddress:         w.Key,
			Channel:            w.Channel,
			Frequency:          w.Frequency,
			SignalStrength:     w.Signal,
			SignalToNoiseRatio: w.SNR,
			SSID:               w.SSID,
		})
	}
	for _, b := range s.Blues {
		req.BluetoothBeacons = append(req.BluetoothBeacons, locate.BluetoothBeacon{
			MACAddress:     b.Key,
			Name:           b.Name,
			SignalStrength: b.Signal,
		})
	}
	return req
}
