// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import "time"

// MaxAPIKeyLength bounds accepted API key strings.
const MaxAPIKeyLength = 40

// APIKey holds the per-key policy read by the locate and submit paths. Keys
// are administered out of band.
type APIKey struct {
	Key    string `json:"key"`
	MaxReq int    `json:"maxreq"` // daily limit, 0 is unlimited

	AllowFallback bool `json:"allow_fallback"`
	AllowLocate   bool `json:"allow_locate"`
	AllowRegion   bool `json:"allow_region"`

	FallbackName            string `json:"fallback_name,omitempty"`
	FallbackURL             string `json:"fallback_url,omitempty"`
	FallbackRateLimit       int    `json:"fallback_ratelimit,omitempty"`
	FallbackRateLimitExpire int    `json:"fallback_ratelimit_interval,omitempty"` // seconds
	FallbackCacheExpire     int    `json:"fallback_cache_expire,omitempty"`       // seconds

	StoreSampleLocate int `json:"store_sample_locate"` // percent
	StoreSampleSubmit int `json:"store_sample_submit"` // percent
}

// CanFallback reports whether the key is fully configured for the external
// fallback provider.
func (k *APIKey) CanFallback() bool {
	return k.AllowFallback &&
		k.FallbackName != "" &&
		k.FallbackURL != "" &&
		k.FallbackRateLimit > 0 &&
		k.FallbackRateLimitExpire > 0
}

// FallbackWindow is the fallback rate limit window.
func (k *APIKey) FallbackWindow() time.Duration {
	return time.Duration(k.FallbackRateLimitExpire) * time.Second
}

// FallbackCacheTTL is how long fallback answers are cached; zero disables
// the cache.
func (k *APIKey) FallbackCacheTTL() time.Duration {
	if k.FallbackCacheExpire <= 0 {
		return 0
	}
	return time.Duration(k.FallbackCacheExpire) * time.Second
}

// ValidAPIKeyString reports whether s is shaped like an API key: letters,
// digits and dashes only.
func ValidAPIKeyString(s string) bool {
	if s == "" || len(s) > MaxAPIKeyLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-':
		default:
			return false
		}
	}
	return true
}
