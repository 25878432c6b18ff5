// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/locate"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// Searcher answers normalized locate queries. *locate.Searcher implements
// it.
type Searcher interface {
	Search(ctx context.Context, q *locate.Query) (models.Result, error)
}

// Submitter accepts an encoded report batch for ingestion.
// *ingest.Pipeline implements it.
type Submitter interface {
	Submit(ctx context.Context, batch []byte) error
}

// HealthCheck is one dependency probed by the heartbeat endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators of Handler. Position, Region and Submitter
// are required.
type Deps struct {
	Keys      *KeyCache
	Position  Searcher
	Region    Searcher
	Submitter Submitter
	Checks    []HealthCheck
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

// Handler serves the public HTTP API.
type Handler struct {
	keys      *KeyCache
	position  Searcher
	region    Searcher
	submitter Submitter
	checks    []HealthCheck
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHandler creates the API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		keys:      d.Keys,
		position:  d.Position,
		region:    d.Region,
		submitter: d.Submitter,
		checks:    d.Checks,
		metrics:   d.Metrics,
		logger:    logging.WithComponent(d.Logger, "api"),
		now:       time.Now,
	}
}

// keyPolicy says how an endpoint treats the key query parameter.
type keyPolicy int

const (
	keyOptional keyPolicy = iota
	keyRequired
)

// apiKey resolves the key query parameter. A key that is unknown or not
// allowed for apiType yields ErrInvalidAPIKey when the policy requires a
// key and a nil key otherwise.
func (h *Handler) apiKey(r *http.Request, apiType string, policy keyPolicy) (*models.APIKey, error) {
	var k *models.APIKey
	if h.keys != nil {
		k = h.keys.Lookup(r.Context(), r.URL.Query().Get("key"))
	}
	if k != nil && !keyAllowed(k, apiType) {
		k = nil
	}
	if k == nil && policy == keyRequired {
		return nil, ErrInvalidAPIKey
	}
	return k, nil
}

func keyAllowed(k *models.APIKey, apiType string) bool {
	switch apiType {
	case locate.APITypeLocate:
		return k.AllowLocate
	case locate.APITypeRegion:
		return k.AllowRegion
	}
	return true
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeBody(r *http.Request, v interface{}, allowEmpty bool) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return errors.Join(ErrParse, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if allowEmpty {
			return nil
		}
		return ErrParse
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Join(ErrParse, err)
	}
	return nil
}

// clientIP returns the caller address. RealIP runs earlier in the chain,
// so RemoteAddr already reflects trusted forwarding headers.
func clientIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(strings.TrimSpace(host))
}
