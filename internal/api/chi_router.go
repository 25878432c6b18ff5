// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/middleware"
)

// Router wires the handler into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	server        *config.ServerConfig
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	metricsPath   string
}

// NewRouter creates a router. gatherer backs /metrics and defaults to the
// global Prometheus registry.
func NewRouter(h *Handler, cm *ChiMiddleware, server *config.ServerConfig, m *metrics.Metrics, gatherer prometheus.Gatherer) *Router {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if server == nil {
		server = &config.ServerConfig{}
	}
	return &Router{handler: h, chiMiddleware: cm, server: server, metrics: m, gatherer: gatherer, metricsPath: "/metrics"}
}

// WithMetricsConfig moves or disables the Prometheus scrape endpoint.
func (rt *Router) WithMetricsConfig(cfg config.MetricsConfig) *Router {
	rt.metricsPath = ""
	if cfg.Enabled {
		rt.metricsPath = cfg.Path
		if rt.metricsPath == "" {
			rt.metricsPath = "/metrics"
		}
	}
	return rt
}

// SetupChi builds the route tree.
//
// Global middleware, outermost first: request id, real client IP, panic
// recovery, CORS, request metrics. The public API group adds per-IP
// throttling and gzip decompression with a body cap.
func (rt *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := rt.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics(rt.metrics))

	r.Get("/__heartbeat__", h.Heartbeat)
	r.Get("/__lbheartbeat__", h.LBHeartbeat)
	if rt.metricsPath != "" {
		r.Handle(rt.metricsPath, promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))
	}

	invalidBody := func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, h.logger, ErrParse)
	}
	r.Group(func(r chi.Router) {
		r.Use(rt.chiMiddleware.RateLimit())
		r.Use(middleware.Decompress(rt.server.MaxBodyBytes, invalidBody))

		r.Post("/v1/geolocate", h.Geolocate)
		r.Post("/v1/search", h.Search)
		r.Get("/v1/country", h.Country)
		r.Post("/v1/country", h.Country)

		r.Post("/v1/submit", h.Submit)
		r.Post("/v1/geosubmit", h.GeoSubmit)
		r.Post("/v2/geosubmit", h.GeoSubmit)
	})

	return r
}
