// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package testinfra

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/triangulum/internal/locate"
)

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body)) //nolint:noctx
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestMockFallbackServer(t *testing.T) {
	t.Parallel()

	fb := NewMockFallbackServer(t)
	body := `{"wifiAccessPoints":[{"macAddress":"3c:22:fb:11:22:33"},{"macAddress":"a0:b1:c2:d3:e4:f5"}]}`

	if resp := post(t, fb.URL(), body); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before Respond, got %d", resp.StatusCode)
	}

	fb.Respond(52.52, 13.405, 1500)
	resp := post(t, fb.URL(), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got locate.GeolocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Location.Lat != 52.52 || got.Location.Lng != 13.405 || got.Accuracy != 1500 {
		t.Errorf("unexpected answer %+v", got)
	}

	fb.Fail(http.StatusServiceUnavailable)
	if resp := post(t, fb.URL(), body); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after Fail, got %d", resp.StatusCode)
	}

	if !fb.WaitForCaptures(3, time.Second) {
		t.Fatalf("expected 3 captures, got %d", len(fb.Captures()))
	}
	first := fb.Captures()[0]
	if len(first.Request.WifiAccessPoints) != 2 || first.Request.WifiAccessPoints[1].MACAddress != "a0:b1:c2:d3:e4:f5" {
		t.Errorf("unexpected captured request %+v", first.Request)
	}
}

func TestMockFallbackServerRejectsGarbage(t *testing.T) {
	t.Parallel()

	fb := NewMockFallbackServer(t)
	if resp := post(t, fb.URL(), "{"); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
	if n := len(fb.Captures()); n != 0 {
		t.Errorf("expected nothing captured, got %d", n)
	}
}
