// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package testinfra

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/triangulum/internal/locate"
)

// FallbackCapture is one geolocate request received by the mock.
type FallbackCapture struct {
	UserAgent string
	Request   locate.GeolocateRequest
}

// MockFallbackServer stands in for an external geolocate service. It
// records every request and answers with Response, or 404 when Response is
// nil. Status overrides the answer status when non-zero.
type MockFallbackServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	captures []FallbackCapture
	response *locate.GeolocateResponse
	status   int
}

// NewMockFallbackServer starts a mock that is closed when the test ends.
func NewMockFallbackServer(t *testing.T) *MockFallbackServer {
	t.Helper()

	m := &MockFallbackServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockFallbackServer) serve(w http.ResponseWriter, r *http.Request) {
	var req locate.GeolocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.captures = append(m.captures, FallbackCapture{UserAgent: r.UserAgent(), Request: req})
	resp, status := m.response, m.status
	m.mu.Unlock()

	switch {
	case status != 0 && status != http.StatusOK:
		w.WriteHeader(status)
	case resp == nil:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not found"}}`))
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// URL returns the geolocate endpoint of the mock.
func (m *MockFallbackServer) URL() string {
	return m.Server.URL + "/v1/geolocate"
}

// Respond makes the mock answer with the given position.
func (m *MockFallbackServer) Respond(lat, lng, accuracy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = &locate.GeolocateResponse{
		Location: locate.LatLng{Lat: lat, Lng: lng},
		Accuracy: accuracy,
	}
	m.status = 0
}

// Fail makes the mock answer every request with status.
func (m *MockFallbackServer) Fail(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Captures returns a copy of the requests received so far.
func (m *MockFallbackServer) Captures() []FallbackCapture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FallbackCapture, len(m.captures))
	copy(out, m.captures)
	return out
}

// WaitForCaptures waits until at least n requests arrived.
func (m *MockFallbackServer) WaitForCaptures(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(m.Captures()) >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
