// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/kvstore"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

const (
	fallbackUserAgent = "triangulum"
	// maxFallbackBody bounds how much of an upstream answer is read.
	maxFallbackBody = 64 << 10
)

// ErrFallbackStatus is returned for upstream answers other than 200 and 404.
var ErrFallbackStatus = errors.New("unexpected fallback status")

// HTTPDoer sends fallback requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FallbackConfig controls outbound fallback calls.
type FallbackConfig struct {
	Timeout                 time.Duration
	BreakerMaxRequests      uint32
	BreakerInterval         time.Duration
	BreakerTimeout          time.Duration
	BreakerFailureThreshold uint32
}

// FallbackConfigFrom extracts the fallback settings from the locate config.
func FallbackConfigFrom(cfg *config.LocateConfig) FallbackConfig {
	return FallbackConfig{
		Timeout:                 cfg.FallbackTimeout,
		BreakerMaxRequests:      cfg.BreakerMaxRequests,
		BreakerInterval:         cfg.BreakerInterval,
		BreakerTimeout:          cfg.BreakerTimeout,
		BreakerFailureThreshold: cfg.BreakerFailureThreshold,
	}
}

// fallbackAnswer is what the upstream said, in the form kept in the cache.
type fallbackAnswer struct {
	Found    bool    `json:"found"`
	Lat      float64 `json:"lat,omitempty"`
	Lon      float64 `json:"lon,omitempty"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Fallback string  `json:"fallback,omitempty"`
}

// FallbackProvider asks the external service configured on the API key.
// Each fallback name gets its own circuit breaker.
type FallbackProvider struct {
	client  HTTPDoer
	limiter *kvstore.RateLimiter
	cache   *kvstore.Cache
	cfg     FallbackConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[fallbackAnswer]
}

// NewFallbackProvider creates the fallback provider. A nil client uses
// http.DefaultClient; request deadlines come from the context.
func NewFallbackProvider(client HTTPDoer, store *kvstore.Store, failOpen bool, cfg FallbackConfig, m *metrics.Metrics, logger zerolog.Logger) *FallbackProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &FallbackProvider{
		client:   client,
		limiter:  kvstore.NewRateLimiter(store, failOpen),
		cache:    kvstore.NewCache(store, "fallback"),
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[fallbackAnswer]),
	}
}

// Name implements Provider.
func (p *FallbackProvider) Name() string { return "fallback" }

// ShouldSearch implements Provider.
func (p *FallbackProvider) ShouldSearch(q *Query, best Outcome) bool {
	if q.APIKey == nil || !q.APIKey.CanFallback() || best.Found() {
		return false
	}
	return len(q.Cells) > 0 || len(q.Wifis) >= MinMACsInQuery
}

// Search implements Provider. It never retries.
func (p *FallbackProvider) Search(ctx context.Context, q *Query) Outcome {
	key := q.APIKey
	name := key.FallbackName
	req := outboundRequest(q)

	fp, err := fingerprint(req)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to fingerprint fallback query")
		return Outcome{}
	}

	ttl := key.FallbackCacheTTL()
	if ttl > 0 {
		if raw, ok := p.cache.Get(ctx, fp); ok {
			var ans fallbackAnswer
			if err := json.Unmarshal(raw, &ans); err == nil {
				p.metrics.FallbackCache.WithLabelValues(name, "hit").Inc()
				return p.outcome(q, ans)
			}
			p.metrics.FallbackCache.WithLabelValues(name, "failure").Inc()
		} else {
			p.metrics.FallbackCache.WithLabelValues(name, "miss").Inc()
		}
	} else {
		p.metrics.FallbackCache.WithLabelValues(name, "bypassed").Inc()
	}

	if !p.limiter.Allow(ctx, "ratelimit:fallback:"+key.Key, key.FallbackRateLimit, key.FallbackWindow()) {
		p.metrics.FallbackRateLimited.WithLabelValues(name).Inc()
		return Outcome{}
	}

	ans, err := p.execute(name, func() (fallbackAnswer, error) {
		return p.call(ctx, key.FallbackURL, req)
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("fallback", name).Msg("Fallback request failed")
		return Outcome{}
	}

	if ttl > 0 {
		if raw, err := json.Marshal(ans); err == nil {
			p.cache.Put(ctx, fp, raw, ttl)
		}
	}
	return p.outcome(q, ans)
}

func (p *FallbackProvider) outcome(q *Query, ans fallbackAnswer) Outcome {
	if !ans.Found {
		return Outcome{}
	}
	return positionOutcome(q, PrecedenceFallback, models.Result{
		Lat:      ans.Lat,
		Lon:      ans.Lon,
		Accuracy: ans.Accuracy,
		Fallback: ans.Fallback,
		Source:   models.DataSourceFallback,
	})
}

// call performs one outbound request. A 404 is a valid negative answer.
func (p *FallbackProvider) call(ctx context.Context, url string, body *GeolocateRequest) (fallbackAnswer, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return fallbackAnswer{}, fmt.Errorf("encode fallback request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fallbackAnswer{}, fmt.Errorf("build fallback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", fallbackUserAgent)

	start := time.Now()
	resp, err := p.client.Do(req)
	p.metrics.FallbackDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return fallbackAnswer{}, fmt.Errorf("fallback request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxFallbackBody))
		return fallbackAnswer{}, nil
	default:
		return fallbackAnswer{}, fmt.Errorf("%w: %d", ErrFallbackStatus, resp.StatusCode)
	}

	var out GeolocateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFallbackBody)).Decode(&out); err != nil {
		return fallbackAnswer{}, fmt.Errorf("decode fallback response: %w", err)
	}
	if !validAnswer(out) {
		return fallbackAnswer{}, fmt.Errorf("invalid fallback position %f,%f accuracy %f", out.Location.Lat, out.Location.Lng, out.Accuracy)
	}
	return fallbackAnswer{
		Found:    true,
		Lat:      out.Location.Lat,
		Lon:      out.Location.Lng,
		Accuracy: math.Round(out.Accuracy),
		Fallback: out.Fallback,
	}, nil
}

func validAnswer(r GeolocateResponse) bool {
	return r.Accuracy > 0 &&
		r.Location.Lat >= -90 && r.Location.Lat <= 90 &&
		r.Location.Lng >= -180 && r.Location.Lng <= 180
}

// execute runs fn through the breaker for name and records the outcome.
func (p *FallbackProvider) execute(name string, fn func() (fallbackAnswer, error)) (fallbackAnswer, error) {
	cb := p.breaker(name)
	ans, err := cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.metrics.CircuitBreakerRequests.WithLabelValues(breakerName(name), "rejected").Inc()
		p.metrics.FallbackRequests.WithLabelValues(name, "rejected").Inc()
	case err != nil:
		p.metrics.CircuitBreakerRequests.WithLabelValues(breakerName(name), "failure").Inc()
		p.metrics.CircuitBreakerConsecFailure.WithLabelValues(breakerName(name)).Set(float64(cb.Counts().ConsecutiveFailures))
		p.metrics.FallbackRequests.WithLabelValues(name, "failure").Inc()
	default:
		p.metrics.CircuitBreakerRequests.WithLabelValues(breakerName(name), "success").Inc()
		p.metrics.CircuitBreakerConsecFailure.WithLabelValues(breakerName(name)).Set(0)
		status := "hit"
		if !ans.Found {
			status = "not_found"
		}
		p.metrics.FallbackRequests.WithLabelValues(name, status).Inc()
	}
	return ans, err
}

func (p *FallbackProvider) breaker(name string) *gobreaker.CircuitBreaker[fallbackAnswer] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cb, ok := p.breakers[name]; ok {
		return cb
	}

	threshold := p.cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	cb := gobreaker.NewCircuitBreaker[fallbackAnswer](gobreaker.Settings{
		Name:        breakerName(name),
		MaxRequests: p.cfg.BreakerMaxRequests,
		Interval:    p.cfg.BreakerInterval,
		Timeout:     p.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state changed")
			p.metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), int(to))
		},
	})
	p.metrics.CircuitBreakerState.WithLabelValues(breakerName(name)).Set(0)
	p.breakers[name] = cb
	return cb
}

func breakerName(fallback string) string {
	return "fallback-" + fallback
}

// fingerprint hashes the canonical outbound query into a cache key.
func fingerprint(req *GeolocateRequest) (string, error) {
	raw, err := json.Marshal(canonicalOutbound(req))
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
