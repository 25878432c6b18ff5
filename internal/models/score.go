// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import "time"

// ScoreKey is the kind of contribution being counted.
type ScoreKey int

const (
	ScoreLocation ScoreKey = 0
	ScoreNewCell  ScoreKey = 2
	ScoreNewWifi  ScoreKey = 3
	ScoreNewBlue  ScoreKey = 4
)

// ScoreKeyFor maps a station type onto its new-station score key.
func ScoreKeyFor(t StationType) ScoreKey {
	switch t {
	case StationCell:
		return ScoreNewCell
	case StationWifi:
		return ScoreNewWifi
	}
	return ScoreNewBlue
}

// Score is a per user, per day contribution counter increment.
type Score struct {
	UserID int64
	Key    ScoreKey
	Day    time.Time
	Value  int64
}

// Nickname length bounds for user accounting.
const (
	MinNicknameLength = 2
	MaxNicknameLength = 128
)

// ValidNickname reports whether a submitted nickname is accepted for score
// accounting.
func ValidNickname(s string) bool {
	n := len([]rune(s))
	return n >= MinNicknameLength && n <= MaxNicknameLength
}
