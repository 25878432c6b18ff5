// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"

	"github.com/tomtom215/triangulum/internal/models"
)

// GeoIPProvider answers position queries from the client IP address.
type GeoIPProvider struct {
	geoip GeoIPSource
}

// NewGeoIPProvider creates the GeoIP position provider. geo may be nil.
func NewGeoIPProvider(geo GeoIPSource) *GeoIPProvider {
	return &GeoIPProvider{geoip: geo}
}

// Name implements Provider.
func (p *GeoIPProvider) Name() string { return "geoip" }

// ShouldSearch implements Provider.
func (p *GeoIPProvider) ShouldSearch(q *Query, best Outcome) bool {
	return p.geoip != nil && q.Fallbacks.IPF && q.IP != nil && !best.Found()
}

// Search implements Provider.
func (p *GeoIPProvider) Search(_ context.Context, q *Query) Outcome {
	rec, ok := p.geoip.Lookup(q.IP)
	if !ok {
		return Outcome{}
	}
	return positionOutcome(q, PrecedenceGeoIP, models.Result{
		Lat:        rec.Lat,
		Lon:        rec.Lon,
		Accuracy:   rec.Accuracy,
		RegionCode: rec.RegionCode,
		RegionName: rec.RegionName,
		Fallback:   models.FallbackIPF,
		Source:     models.DataSourceGeoIP,
	})
}

// GeoIPRegionProvider answers region queries from the client IP address.
type GeoIPRegionProvider struct {
	geoip   GeoIPSource
	regions RegionSource
}

// NewGeoIPRegionProvider creates the GeoIP region provider. geo may be nil.
func NewGeoIPRegionProvider(geo GeoIPSource, regions RegionSource) *GeoIPRegionProvider {
	return &GeoIPRegionProvider{geoip: geo, regions: regions}
}

// Name implements Provider.
func (p *GeoIPRegionProvider) Name() string { return "geoip_region" }

// ShouldSearch implements Provider.
func (p *GeoIPRegionProvider) ShouldSearch(q *Query, best Outcome) bool {
	return p.geoip != nil && q.Fallbacks.IPF && q.IP != nil && !best.Found()
}

// Search implements Provider.
func (p *GeoIPRegionProvider) Search(_ context.Context, q *Query) Outcome {
	code, name, ok := p.geoip.Country(q.IP)
	if !ok {
		return Outcome{}
	}
	return regionOutcome(p.regions, code, name, PrecedenceGeoIP, models.DataSourceGeoIP, models.FallbackIPF)
}
