// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

// ResultKind distinguishes position and region answers.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultPosition
	ResultRegion
)

// DataSource is the provenance of a result. Internal answers take precedence
// over fallback answers, and fallback answers over GeoIP.
type DataSource string

const (
	DataSourceInternal DataSource = "internal"
	DataSourceFallback DataSource = "fallback"
	DataSourceGeoIP    DataSource = "geoip"
)

// Fallback tags reported to clients.
const (
	FallbackLACF = "lacf"
	FallbackIPF  = "ipf"
)

// Result is a single locate answer.
type Result struct {
	Kind       ResultKind `json:"-"`
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`
	Accuracy   float64    `json:"accuracy"`
	RegionCode string     `json:"region_code,omitempty"`
	RegionName string     `json:"region_name,omitempty"`
	Fallback   string     `json:"fallback,omitempty"`
	Source     DataSource `json:"source,omitempty"`
	Score      float64    `json:"score"`
}

// Found reports whether the result carries an answer.
func (r Result) Found() bool {
	return r.Kind != ResultNone
}
