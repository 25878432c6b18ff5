// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/locate"
	"github.com/tomtom215/triangulum/internal/logging"
)

// Sentinel errors mapped onto the public error bodies by writeError.
var (
	ErrParse              = errors.New("parse error")
	ErrInvalidAPIKey      = errors.New("missing or invalid api key")
	ErrDailyLimitExceeded = locate.ErrDailyLimitExceeded
	ErrLocationNotFound   = errors.New("location not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimited        = errors.New("rate limit exceeded")
)

// ErrorDetail is one entry of the errors list.
type ErrorDetail struct {
	Domain  string `json:"domain"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrorPayload is the value of the top level error field.
type ErrorPayload struct {
	Code    int           `json:"code"`
	Errors  []ErrorDetail `json:"errors"`
	Message string        `json:"message"`
}

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error ErrorPayload `json:"error"`
}

type errorClass struct {
	status  int
	domain  string
	reason  string
	message string
}

var (
	classParse           = errorClass{http.StatusBadRequest, "global", "parseError", "Parse Error"}
	classKeyInvalid      = errorClass{http.StatusBadRequest, "usageLimits", "keyInvalid", "Missing or invalid API key."}
	classDailyLimit      = errorClass{http.StatusForbidden, "usageLimits", "dailyLimitExceeded", "You have exceeded your daily limit."}
	classNotFound        = errorClass{http.StatusNotFound, "geolocation", "notFound", "Not found"}
	classRateLimited     = errorClass{http.StatusTooManyRequests, "usageLimits", "rateLimitExceeded", "Too Many Requests"}
	classUnavailable     = errorClass{http.StatusServiceUnavailable, "global", "serviceUnavailable", "Service Unavailable"}
	classInternal        = errorClass{http.StatusInternalServerError, "global", "internalError", "Internal Error"}
	classBodyTooLarge    = errorClass{http.StatusRequestEntityTooLarge, "global", "parseError", "Request Entity Too Large"}
	errorClassBySentinel = []struct {
		err   error
		class errorClass
	}{
		{ErrParse, classParse},
		{ErrInvalidAPIKey, classKeyInvalid},
		{ErrDailyLimitExceeded, classDailyLimit},
		{ErrLocationNotFound, classNotFound},
		{ErrRateLimited, classRateLimited},
		{ErrServiceUnavailable, classUnavailable},
	}
)

func classify(err error) errorClass {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return classBodyTooLarge
	}
	for _, c := range errorClassBySentinel {
		if errors.Is(err, c.err) {
			return c.class
		}
	}
	return classInternal
}

func (c errorClass) response() ErrorResponse {
	return ErrorResponse{Error: ErrorPayload{
		Code:    c.status,
		Errors:  []ErrorDetail{{Domain: c.domain, Reason: c.reason, Message: c.message}},
		Message: c.message,
	}}
}

// writeError maps err onto its status and structured body. Unclassified
// errors become a generic 500 and are logged with the request id.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	c := classify(err)
	if c.status >= http.StatusInternalServerError {
		l := logging.WithRequest(r.Context(), logger)
		l.Error().Err(err).Str("path", r.URL.Path).Int("status", c.status).Msg("Request failed")
	}
	respondJSON(w, c.status, c.response())
}

// respondJSON writes v with the given status.
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"errors":[{"domain":"global","reason":"internalError","message":"Internal Error"}],"message":"Internal Error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
