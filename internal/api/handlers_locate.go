// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"net/http"

	"github.com/tomtom215/triangulum/internal/locate"
	"github.com/tomtom215/triangulum/internal/models"
)

// Geolocate answers POST /v1/geolocate.
func (h *Handler) Geolocate(w http.ResponseWriter, r *http.Request) {
	key, err := h.apiKey(r, locate.APITypeLocate, keyRequired)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req locate.GeolocateRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.position.Search(r.Context(), h.query(r, &req, key))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !res.Found() {
		writeError(w, r, h.logger, ErrLocationNotFound)
		return
	}
	respondJSON(w, http.StatusOK, locate.GeolocateResponse{
		Location: locate.LatLng{Lat: res.Lat, Lng: res.Lon},
		Accuracy: res.Accuracy,
		Fallback: res.Fallback,
	})
}

// Search answers the legacy POST /v1/search. A miss is a 200 with status
// "not_found".
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	key, err := h.apiKey(r, locate.APITypeLocate, keyRequired)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req SearchRequest
	if err := decodeBody(r, &req, true); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.position.Search(r.Context(), h.query(r, req.GeolocateRequest(), key))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if !res.Found() {
		respondJSON(w, http.StatusOK, SearchResponse{Status: "not_found"})
		return
	}
	respondJSON(w, http.StatusOK, SearchResponse{
		Status:   "ok",
		Lat:      &res.Lat,
		Lon:      &res.Lon,
		Accuracy: &res.Accuracy,
		Fallback: res.Fallback,
	})
}

// query builds the locate query for req. considerIp=false keeps the client
// address out of the query.
func (h *Handler) query(r *http.Request, req *locate.GeolocateRequest, key *models.APIKey) *locate.Query {
	q := req.Query()
	q.APIKey = key
	q.Now = h.now().UTC()
	if req.ConsiderIP == nil || *req.ConsiderIP {
		q.IP = clientIP(r)
	}
	return q
}
