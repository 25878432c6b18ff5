// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell identity bounds.
const (
	MinMCC     = 1
	MaxMCC     = 999
	MinMNC     = 0
	MaxMNC     = 999
	MaxMNCCDMA = 32767
	MinLAC     = 1
	MaxLAC     = 65533
	MaxLACCDMA = 65534
	MinCID     = 1
	MaxCID     = 1<<32 - 2
	MaxCIDLTE  = 1<<28 - 1
	MaxCID16   = 1<<16 - 1

	MinPSC    = 0
	MaxPSC    = 511
	MaxPSCLTE = 503
	MinTA     = 0
	MaxTA     = 63
)

var (
	minCellSignal = map[Radio]int{RadioGSM: -113, RadioWCDMA: -121, RadioLTE: -140, RadioCDMA: -120}
	maxCellSignal = map[Radio]int{RadioGSM: -51, RadioWCDMA: -25, RadioLTE: -43, RadioCDMA: -40}
	minCellASU    = map[Radio]int{RadioGSM: 0, RadioWCDMA: -5, RadioLTE: 0, RadioCDMA: 1}
	maxCellASU    = map[Radio]int{RadioGSM: 31, RadioWCDMA: 91, RadioLTE: 97, RadioCDMA: 16}
)

// CellAreaKey identifies a location area: every cell sharing radio, mcc,
// mnc and lac.
type CellAreaKey struct {
	Radio Radio `json:"radio"`
	MCC   int   `json:"mcc"`
	MNC   int   `json:"mnc"`
	LAC   int   `json:"lac"`
}

// String encodes the key as radio:mcc:mnc:lac, the form used on the area
// update queue.
func (k CellAreaKey) String() string {
	return fmt.Sprintf("%s:%d:%d:%d", k.Radio, k.MCC, k.MNC, k.LAC)
}

// Valid checks the identity ranges for the radio.
func (k CellAreaKey) Valid() bool {
	if !k.Radio.Valid() {
		return false
	}
	if k.MCC < MinMCC || k.MCC > MaxMCC {
		return false
	}
	maxMNC, maxLAC := MaxMNC, MaxLAC
	if k.Radio == RadioCDMA {
		maxMNC, maxLAC = MaxMNCCDMA, MaxLACCDMA
	}
	if k.MNC < MinMNC || k.MNC > maxMNC {
		return false
	}
	return k.LAC >= MinLAC && k.LAC <= maxLAC
}

// ParseCellAreaKey decodes the String form.
func ParseCellAreaKey(s string) (CellAreaKey, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 4 {
		return CellAreaKey{}, fmt.Errorf("invalid area key %q", s)
	}
	radio, err := ParseRadio(parts[0])
	if err != nil {
		return CellAreaKey{}, err
	}
	nums, err := atois(parts[1:])
	if err != nil {
		return CellAreaKey{}, fmt.Errorf("invalid area key %q: %w", s, err)
	}
	return CellAreaKey{Radio: radio, MCC: nums[0], MNC: nums[1], LAC: nums[2]}, nil
}

// CellKey identifies a single cell.
type CellKey struct {
	Radio Radio `json:"radio,omitempty"`
	MCC   int   `json:"mcc,omitempty"`
	MNC   int   `json:"mnc,omitempty"`
	LAC   int   `json:"lac,omitempty"`
	CID   int64 `json:"cid,omitempty"`
}

// Area returns the location area the cell belongs to.
func (k CellKey) Area() CellAreaKey {
	return CellAreaKey{Radio: k.Radio, MCC: k.MCC, MNC: k.MNC, LAC: k.LAC}
}

// String encodes the key as radio:mcc:mnc:lac:cid.
func (k CellKey) String() string {
	return fmt.Sprintf("%s:%d:%d:%d:%d", k.Radio, k.MCC, k.MNC, k.LAC, k.CID)
}

// Valid checks all identity ranges, including the per-radio cell id width.
func (k CellKey) Valid() bool {
	if !k.Area().Valid() {
		return false
	}
	maxCID := int64(MaxCID)
	switch k.Radio {
	case RadioLTE:
		maxCID = MaxCIDLTE
	case RadioGSM, RadioCDMA:
		maxCID = MaxCID16
	}
	return k.CID >= MinCID && k.CID <= maxCID
}

// ParseCellKey decodes the String form.
func ParseCellKey(s string) (CellKey, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return CellKey{}, fmt.Errorf("invalid cell key %q", s)
	}
	area, err := ParseCellAreaKey(s[:idx])
	if err != nil {
		return CellKey{}, err
	}
	cid, err := strconv.ParseInt(s[idx+1:], 10, 64)
	if err != nil {
		return CellKey{}, fmt.Errorf("invalid cell key %q: %w", s, err)
	}
	return CellKey{Radio: area.Radio, MCC: area.MCC, MNC: area.MNC, LAC: area.LAC, CID: cid}, nil
}

func atois(parts []string) ([]int, error) {
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// cellSignalInRange reports whether dBm is plausible for the radio.
func cellSignalInRange(r Radio, dbm int) bool {
	lo, ok := minCellSignal[r]
	return ok && dbm >= lo && dbm <= maxCellSignal[r]
}

func cellASUInRange(r Radio, asu int) bool {
	lo, ok := minCellASU[r]
	return ok && asu >= lo && asu <= maxCellASU[r]
}

func pscInRange(r Radio, psc int) bool {
	hi := MaxPSC
	if r == RadioLTE {
		hi = MaxPSCLTE
	}
	return psc >= MinPSC && psc <= hi
}
