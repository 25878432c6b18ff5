// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/models"
)

// CellProvider answers from exact cell matches.
type CellProvider struct {
	source StationSource
	logger zerolog.Logger
}

// NewCellProvider creates the cell position provider.
func NewCellProvider(src StationSource, logger zerolog.Logger) *CellProvider {
	return &CellProvider{source: src, logger: logger}
}

// Name implements Provider.
func (p *CellProvider) Name() string { return "cell" }

// ShouldSearch implements Provider.
func (p *CellProvider) ShouldSearch(q *Query, best Outcome) bool {
	if best.Hit && best.Precedence >= PrecedenceCell {
		return false
	}
	return len(q.Cells) > 0
}

// Search averages the matched cells of the best represented location area.
func (p *CellProvider) Search(ctx context.Context, q *Query) Outcome {
	stations, err := p.source.CellStations(ctx, q.cellKeys(), q.Now)
	if err != nil {
		p.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Cell lookup failed")
		return Outcome{}
	}

	groups := make(map[models.CellAreaKey][]models.Station)
	for _, st := range stations {
		if st.HasPosition() {
			groups[st.Area()] = append(groups[st.Area()], st)
		}
	}
	group := largestCellGroup(groups)
	if len(group) == 0 {
		return Outcome{}
	}

	var sumLat, sumLon, sumRadius float64
	for _, st := range group {
		sumLat += st.Lat
		sumLon += st.Lon
		sumRadius += float64(st.Radius)
	}
	n := float64(len(group))
	return positionOutcome(q, PrecedenceCell, models.Result{
		Lat:      sumLat / n,
		Lon:      sumLon / n,
		Accuracy: math.Max(math.Round(sumRadius/n), CellMinAccuracy),
		Source:   models.DataSourceInternal,
	})
}

// largestCellGroup returns the area group with the most cells, preferring
// the smaller average radius and then the lower area key on ties.
func largestCellGroup(groups map[models.CellAreaKey][]models.Station) []models.Station {
	keys := make([]models.CellAreaKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var best []models.Station
	bestAvg := math.Inf(1)
	for _, k := range keys {
		g := groups[k]
		avg := avgRadius(g)
		if len(g) > len(best) || (len(g) == len(best) && avg < bestAvg) {
			best, bestAvg = g, avg
		}
	}
	return best
}

func avgRadius(stations []models.Station) float64 {
	var sum float64
	for _, st := range stations {
		sum += float64(st.Radius)
	}
	return sum / float64(len(stations))
}

// CellAreaProvider answers from location area aggregates when no cell is
// known.
type CellAreaProvider struct {
	source StationSource
	logger zerolog.Logger
}

// NewCellAreaProvider creates the cell area provider.
func NewCellAreaProvider(src StationSource, logger zerolog.Logger) *CellAreaProvider {
	return &CellAreaProvider{source: src, logger: logger}
}

// Name implements Provider.
func (p *CellAreaProvider) Name() string { return "cellarea" }

// ShouldSearch implements Provider.
func (p *CellAreaProvider) ShouldSearch(q *Query, best Outcome) bool {
	return q.Fallbacks.LACF && len(q.Areas) > 0 && !best.Found()
}

// Search returns the smallest known area among the queried ones.
func (p *CellAreaProvider) Search(ctx context.Context, q *Query) Outcome {
	areas, err := p.source.Areas(ctx, q.Areas)
	if err != nil {
		p.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Area lookup failed")
		return Outcome{}
	}
	var best *models.Area
	for i := range areas {
		a := &areas[i]
		if a.NumCells == 0 {
			continue
		}
		if best == nil || a.Radius < best.Radius {
			best = a
		}
	}
	if best == nil {
		return Outcome{}
	}
	return positionOutcome(q, PrecedenceCellArea, models.Result{
		Lat:        best.Lat,
		Lon:        best.Lon,
		Accuracy:   math.Max(float64(best.Radius), LACMinAccuracy),
		RegionCode: best.Region,
		Fallback:   models.FallbackLACF,
		Source:     models.DataSourceInternal,
	})
}

// CellRegionProvider answers region queries from the mobile country codes
// of the queried cells.
type CellRegionProvider struct {
	source  StationSource
	regions RegionSource
	geoip   GeoIPSource
	logger  zerolog.Logger
}

// NewCellRegionProvider creates the cell region provider. geo may be nil.
func NewCellRegionProvider(src StationSource, regions RegionSource, geo GeoIPSource, logger zerolog.Logger) *CellRegionProvider {
	return &CellRegionProvider{source: src, regions: regions, geoip: geo, logger: logger}
}

// Name implements Provider.
func (p *CellRegionProvider) Name() string { return "cell_region" }

// ShouldSearch implements Provider.
func (p *CellRegionProvider) ShouldSearch(q *Query, best Outcome) bool {
	return len(q.Areas) > 0 && !best.Found()
}

// Search resolves the region. A single candidate wins outright. Several
// candidates are narrowed by the client's GeoIP country and then by the
// score of the matched cells in each region.
func (p *CellRegionProvider) Search(ctx context.Context, q *Query) Outcome {
	candidates := make(map[string]struct{})
	var ordered []string
	for _, a := range q.Areas {
		for _, code := range p.regions.CodesForMCC(a.MCC) {
			if _, ok := candidates[code]; !ok {
				candidates[code] = struct{}{}
				ordered = append(ordered, code)
			}
		}
	}

	var code string
	switch {
	case len(ordered) == 0:
		return Outcome{}
	case len(ordered) == 1:
		code = ordered[0]
	default:
		code = p.disambiguate(ctx, q, candidates)
	}
	if code == "" {
		return Outcome{}
	}
	return regionOutcome(p.regions, code, "", PrecedenceCell, models.DataSourceInternal, "")
}

func (p *CellRegionProvider) disambiguate(ctx context.Context, q *Query, candidates map[string]struct{}) string {
	if p.geoip != nil && q.IP != nil {
		if code, _, ok := p.geoip.Country(q.IP); ok {
			if _, match := candidates[code]; match {
				return code
			}
		}
	}
	if len(q.Cells) == 0 {
		return ""
	}

	stations, err := p.source.CellStations(ctx, q.cellKeys(), q.Now)
	if err != nil {
		p.logger.Warn().Err(err).Str("provider", p.Name()).Msg("Cell lookup failed")
		return ""
	}
	scores := make(map[string]float64)
	for i := range stations {
		st := &stations[i]
		region := st.Region
		if region == "" {
			region, _ = p.regions.ForCell(st.Lat, st.Lon, st.MCC)
		}
		if _, ok := candidates[region]; ok {
			scores[region] += st.Score(q.Now)
		}
	}

	best, bestScore := "", 0.0
	for code, score := range scores {
		if score > bestScore || (score == bestScore && code < best) {
			best, bestScore = code, score
		}
	}
	return best
}

func regionOutcome(regions RegionSource, code, name string, p Precedence, source models.DataSource, fallback string) Outcome {
	res := models.Result{
		Kind:       models.ResultRegion,
		RegionCode: code,
		RegionName: name,
		Accuracy:   DefaultRegionAccuracy,
		Source:     source,
		Fallback:   fallback,
		Score:      p.score(),
	}
	if r, ok := regions.ForCode(code); ok {
		res.RegionName = r.Name
		if r.Radius > 0 {
			res.Accuracy = r.Radius
		}
	}
	if res.RegionName == "" {
		res.RegionName = code
	}
	return Outcome{Result: res, Precedence: p, Hit: true}
}
