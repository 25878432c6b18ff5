// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"encoding/hex"
	"math/bits"
	"strings"
)

// TestMAC is the documentation multicast address (RFC 7042) some clients
// submit as a placeholder.
const TestMAC = "01005e901000"

// NormalizeMAC strips ":", "-" and "." separators and lowercases the result.
// The output is not validated.
func NormalizeMAC(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, ":-.") {
		s = strings.NewReplacer(":", "", "-", "", ".", "").Replace(s)
	}
	return strings.ToLower(s)
}

// ValidMAC reports whether s is 12 lowercase hex characters and not one of
// the all-zero, broadcast or documentation addresses. Locally administered
// addresses are valid and stored.
func ValidMAC(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	switch s {
	case "000000000000", "ffffffffffff", TestMAC:
		return false
	}
	return true
}

// UsableMAC reports whether a valid MAC should take part in position
// queries. Locally administered addresses are often randomized per scan
// and carry no location signal.
func UsableMAC(s string) bool {
	if !ValidMAC(s) {
		return false
	}
	b, err := hex.DecodeString(s[:2])
	if err != nil {
		return false
	}
	return b[0]&0x02 == 0
}

// MACShard is the shard id of a MAC: its first hex digit.
func MACShard(mac string) string {
	if mac == "" {
		return ""
	}
	return mac[:1]
}

// SimilarMACs reports whether two MACs differ by at most maxDiff, summing
// per byte the smaller of the bit (hamming) distance and the arithmetic
// distance. Vendors often assign neighbouring addresses to the radios of
// one device.
func SimilarMACs(a, b string, maxDiff int) bool {
	ab, errA := hex.DecodeString(a)
	bb, errB := hex.DecodeString(b)
	if errA != nil || errB != nil || len(ab) != len(bb) {
		return false
	}
	diff := 0
	for i := range ab {
		hamming := bits.OnesCount8(ab[i] ^ bb[i])
		arith := int(ab[i]) - int(bb[i])
		if arith < 0 {
			arith = -arith
		}
		diff += min(hamming, arith)
		if diff > maxDiff {
			return false
		}
	}
	return true
}
