// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"fmt"
	"strings"
)

// Radio is a cellular radio generation. The string value is the wire name.
type Radio string

const (
	RadioGSM   Radio = "gsm"
	RadioWCDMA Radio = "wcdma"
	RadioLTE   Radio = "lte"
	RadioCDMA  Radio = "cdma"
)

// Radios lists every radio in cell shard order.
var Radios = []Radio{RadioGSM, RadioWCDMA, RadioLTE, RadioCDMA}

// ParseRadio maps a wire name onto a Radio. "umts" is accepted as the
// legacy name for WCDMA; matching is case insensitive.
func ParseRadio(s string) (Radio, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gsm":
		return RadioGSM, nil
	case "wcdma", "umts":
		return RadioWCDMA, nil
	case "lte":
		return RadioLTE, nil
	case "cdma":
		return RadioCDMA, nil
	}
	return "", fmt.Errorf("unknown radio type %q", s)
}

// Valid reports whether r is one of the known radios.
func (r Radio) Valid() bool {
	switch r {
	case RadioGSM, RadioWCDMA, RadioLTE, RadioCDMA:
		return true
	}
	return false
}

// StationType partitions stations by emitter technology.
type StationType string

const (
	StationBlue StationType = "blue"
	StationCell StationType = "cell"
	StationWifi StationType = "wifi"
)

// StationTypes lists every station type.
var StationTypes = []StationType{StationBlue, StationCell, StationWifi}

// MaxMoveMeters is the bounding box diagonal beyond which a station is
// considered to have moved.
func (t StationType) MaxMoveMeters() float64 {
	switch t {
	case StationCell:
		return 150_000
	case StationWifi:
		return 5_000
	case StationBlue:
		return 500
	}
	return 0
}
