// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

// Clustering parameters for MAC based stations.
const (
	MaxWifiClusterMeters = 500.0
	MaxBlueClusterMeters = 100.0
	MinMACsInQuery       = 2
	MinMACsInCluster     = 2
	MaxWifisInCluster    = 5
	MaxBluesInCluster    = 5

	// MissingSignal is assumed for stations reported without a signal.
	// It is worse than nearly every signal seen in practice.
	MissingSignal = -100

	// SimilarMACCandidates is the candidate count at or below which
	// neighbouring MACs are collapsed into one station.
	SimilarMACCandidates = 3

	// SimilarMACDistance is the byte difference within which two MACs
	// belong to the same device.
	SimilarMACDistance = 2
)

// Accuracy floors in meters.
const (
	BlueMinAccuracy = 10.0
	WifiMinAccuracy = 100.0
	CellMinAccuracy = 5000.0
	LACMinAccuracy  = 20000.0
)

// Accuracy classes used to decide whether an answer is a hit.
const (
	AccuracyHigh   = 1000.0
	AccuracyMedium = 50000.0
)

// API types used on metrics and for the daily limit.
const (
	APITypeLocate = "locate"
	APITypeRegion = "region"
)

// DefaultRegionAccuracy is reported for regions without a known radius.
const DefaultRegionAccuracy = 5_000_000.0
