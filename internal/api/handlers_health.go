// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"context"
	"net/http"
	"time"
)

// heartbeatTimeout bounds each dependency probe.
const heartbeatTimeout = 2 * time.Second

// HeartbeatResponse is the body of both heartbeat endpoints. Checks is
// only filled by the full heartbeat.
type HeartbeatResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LBHeartbeat answers GET /__lbheartbeat__. It never touches a dependency
// and only says the process is serving.
func (h *Handler) LBHeartbeat(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, HeartbeatResponse{Status: "OK"})
}

// Heartbeat answers GET /__heartbeat__ by probing every configured
// dependency. Any failing probe turns the answer into a 503.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	resp := HeartbeatResponse{Status: "OK"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), heartbeatTimeout)
		err := c.Check(ctx)
		cancel()
		if err != nil {
			h.logger.Warn().Err(err).Str("check", c.Name).Msg("Heartbeat check failed")
			resp.Checks[c.Name] = "error"
			resp.Status = "ERROR"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "OK"
	}
	respondJSON(w, status, resp)
}
