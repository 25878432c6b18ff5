// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"net/http"

	"github.com/tomtom215/triangulum/internal/locate"
)

// CountryResponse is the body of a region answer.
type CountryResponse struct {
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	Fallback    string `json:"fallback,omitempty"`
}

// Country answers GET and POST /v1/country. The key is optional; a known
// key is still counted against its daily limit.
func (h *Handler) Country(w http.ResponseWriter, r *http.Request) {
	key, _ := h.apiKey(r, locate.APITypeRegion, keyOptional)

	var req locate.GeolocateRequest
	if r.Method == http.MethodPost {
		if err := decodeBody(r, &req, true); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
	}

	res, err := h.region.Search(r.Context(), h.query(r, &req, key))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !res.Found() || res.RegionCode == "" {
		writeError(w, r, h.logger, ErrLocationNotFound)
		return
	}
	respondJSON(w, http.StatusOK, CountryResponse{
		CountryCode: res.RegionCode,
		CountryName: res.RegionName,
		Fallback:    res.Fallback,
	})
}
