// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/models"
)

const (
	// NicknameHeader names the submitter for score accounting.
	NicknameHeader = "X-Nickname"

	// maxReportsPerBatch splits large submissions into several queue items.
	maxReportsPerBatch = 100

	apiTypeSubmit = "submit"
)

// Submit answers the legacy POST /v1/submit with 204. No key is needed.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	key, _ := h.apiKey(r, apiTypeSubmit, keyOptional)

	var req SubmitRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Items == nil {
		writeError(w, r, h.logger, ErrParse)
		return
	}
	if err := h.enqueue(r, key, req.Reports()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GeoSubmit answers POST /v1/geosubmit and /v2/geosubmit with 200 {}.
func (h *Handler) GeoSubmit(w http.ResponseWriter, r *http.Request) {
	key, err := h.apiKey(r, apiTypeSubmit, keyRequired)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req GeoSubmitRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Items == nil {
		writeError(w, r, h.logger, ErrParse)
		return
	}
	if err := h.enqueue(r, key, req.Reports()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, struct{}{})
}

// enqueue places the reports on the incoming queue in chunks. Any enqueue
// failure is reported as ErrServiceUnavailable; chunks written before the
// failure stay queued.
func (h *Handler) enqueue(r *http.Request, key *models.APIKey, reports []models.Report) error {
	var keyName string
	if key != nil {
		keyName = key.Key
	}
	nickname := strings.TrimSpace(r.Header.Get(NicknameHeader))

	for start := 0; start < len(reports); start += maxReportsPerBatch {
		end := min(start+maxReportsPerBatch, len(reports))
		raw, err := json.Marshal(models.ReportBatch{
			APIKey:   keyName,
			Nickname: nickname,
			Reports:  reports[start:end],
		})
		if err != nil {
			return fmt.Errorf("encode report batch: %w", err)
		}
		if err := h.submitter.Submit(r.Context(), raw); err != nil {
			l := logging.WithRequest(r.Context(), h.logger)
			l.Error().Err(err).Int("reports", end-start).Msg("Failed to enqueue reports")
			return errors.Join(ErrServiceUnavailable, err)
		}
	}
	return nil
}
