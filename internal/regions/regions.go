// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package regions reverse geocodes positions into ISO 3166 alpha-2 region
// codes and maps mobile country codes onto regions.
//
// Region shapes are read from a GeoJSON FeatureCollection whose features carry
// "alpha2", "name" and "radius" (meters) properties. A coarse world set is
// embedded; deployments can point the regions.path setting at a more precise
// file with the same layout.
package regions

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	geojson "github.com/paulmach/go.geojson"

	"github.com/tomtom215/triangulum/internal/geocalc"
)

// DefaultMargin is the buffer in decimal degrees used for "is the position
// plausibly in this region" checks. One degree is roughly 100 km.
const DefaultMargin = 0.5

//go:embed data/regions.geojson
var embeddedRegions []byte

// ErrNoRegions is returned when a GeoJSON source contains no usable features.
var ErrNoRegions = errors.New("regions: no region features found")

// Region is the metadata for one region code.
type Region struct {
	Code   string
	Name   string
	Radius float64 // meters, encloses the largest subunit
}

type polygon struct {
	rings [][][]float64 // rings[0] is the exterior, the rest are holes
	box   geocalc.Box
}

type shape struct {
	region   Region
	polygons []polygon
}

// Geocoder answers region membership questions. It is immutable after
// construction and safe for concurrent use.
type Geocoder struct {
	shapes map[string]*shape
	codes  []string
}

// Default returns a Geocoder over the embedded coarse region set.
func Default() (*Geocoder, error) {
	return Parse(embeddedRegions)
}

// Load returns a Geocoder for the GeoJSON file at path, or the embedded set
// when path is empty.
func Load(path string) (*Geocoder, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read regions file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Geocoder from a GeoJSON FeatureCollection.
func Parse(data []byte) (*Geocoder, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse regions geojson: %w", err)
	}

	g := &Geocoder{shapes: make(map[string]*shape)}
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		code, err := f.PropertyString("alpha2")
		if err != nil || len(code) != 2 {
			continue
		}
		code = strings.ToUpper(code)
		name, _ := f.PropertyString("name")

		var polys [][][][]float64
		switch {
		case f.Geometry.IsPolygon():
			polys = [][][][]float64{f.Geometry.Polygon}
		case f.Geometry.IsMultiPolygon():
			polys = f.Geometry.MultiPolygon
		default:
			continue
		}

		s := g.shapes[code]
		if s == nil {
			s = &shape{region: Region{Code: code, Name: name}}
			g.shapes[code] = s
		}
		for _, rings := range polys {
			if len(rings) == 0 || len(rings[0]) < 4 {
				continue
			}
			s.polygons = append(s.polygons, polygon{rings: rings, box: ringBox(rings[0])})
		}

		if radius, err := f.PropertyFloat64("radius"); err == nil && radius > 0 {
			s.region.Radius = radius
		}
	}

	for code, s := range g.shapes {
		if len(s.polygons) == 0 {
			delete(g.shapes, code)
			continue
		}
		if s.region.Radius == 0 {
			s.region.Radius = estimateRadius(s.polygons)
		}
		g.codes = append(g.codes, code)
	}
	if len(g.codes) == 0 {
		return nil, ErrNoRegions
	}
	sort.Strings(g.codes)
	return g, nil
}

// Codes returns the sorted list of known region codes.
func (g *Geocoder) Codes() []string {
	out := make([]string, len(g.codes))
	copy(out, g.codes)
	return out
}

// Valid reports whether code is a known region.
func (g *Geocoder) Valid(code string) bool {
	_, ok := g.shapes[code]
	return ok
}

// ForCode returns the metadata for code.
func (g *Geocoder) ForCode(code string) (Region, bool) {
	s, ok := g.shapes[code]
	if !ok {
		return Region{}, false
	}
	return s.region, true
}

// Radius returns the region radius in meters.
func (g *Geocoder) Radius(code string) (float64, bool) {
	s, ok := g.shapes[code]
	if !ok {
		return 0, false
	}
	return s.region.Radius, true
}

// Contains reports whether (lat, lon) lies in the region. With a positive
// margin a point also matches when it falls inside a polygon's bounding box
// grown by margin degrees on every side.
func (g *Geocoder) Contains(lat, lon float64, code string, margin float64) bool {
	s, ok := g.shapes[code]
	if !ok {
		return false
	}
	return s.contains(lat, lon, margin)
}

// Region returns the region containing (lat, lon).
//
// Precise polygon matches win over margin matches. When several polygons
// contain the point, the region whose border is farthest away wins; when
// only margin matches exist, the one with the nearest border wins.
func (g *Geocoder) Region(lat, lon float64) (string, bool) {
	var precise, buffered []string
	for _, code := range g.codes {
		s := g.shapes[code]
		if s.contains(lat, lon, 0) {
			precise = append(precise, code)
		} else if s.contains(lat, lon, DefaultMargin) {
			buffered = append(buffered, code)
		}
	}

	switch {
	case len(precise) == 1:
		return precise[0], true
	case len(precise) > 1:
		return g.pickByBorder(lat, lon, precise, true), true
	case len(buffered) == 1:
		return buffered[0], true
	case len(buffered) > 1:
		return g.pickByBorder(lat, lon, buffered, false), true
	}
	return "", false
}

// Any reports whether (lat, lon) is inside any region, margin included.
func (g *Geocoder) Any(lat, lon float64) bool {
	for _, s := range g.shapes {
		if s.contains(lat, lon, DefaultMargin) {
			return true
		}
	}
	return false
}

// ForMCC returns the known regions for a mobile country code.
func (g *Geocoder) ForMCC(mcc int) []Region {
	var out []Region
	for _, code := range mccRegions[mcc] {
		if s, ok := g.shapes[code]; ok {
			out = append(out, s.region)
		}
	}
	return out
}

// CodesForMCC is ForMCC without the metadata.
func (g *Geocoder) CodesForMCC(mcc int) []string {
	var out []string
	for _, code := range mccRegions[mcc] {
		if _, ok := g.shapes[code]; ok {
			out = append(out, code)
		}
	}
	return out
}

// InMCC reports whether (lat, lon) falls inside one of the regions of mcc.
func (g *Geocoder) InMCC(lat, lon float64, mcc int) bool {
	for _, code := range g.CodesForMCC(mcc) {
		if g.Contains(lat, lon, code, DefaultMargin) {
			return true
		}
	}
	return false
}

// ForCell resolves the region of a cell at (lat, lon) with country code mcc.
// A single MCC region match wins outright; several fall back to the plain
// position lookup.
func (g *Geocoder) ForCell(lat, lon float64, mcc int) (string, bool) {
	var matches []string
	for _, code := range g.CodesForMCC(mcc) {
		if g.Contains(lat, lon, code, DefaultMargin) {
			matches = append(matches, code)
		}
	}
	switch len(matches) {
	case 0:
		return "", false
	case 1:
		return matches[0], true
	}
	return g.Region(lat, lon)
}

func (g *Geocoder) pickByBorder(lat, lon float64, codes []string, farthest bool) string {
	best := codes[0]
	bestDist := g.shapes[best].borderDistance(lat, lon)
	for _, code := range codes[1:] {
		d := g.shapes[code].borderDistance(lat, lon)
		if (farthest && d > bestDist) || (!farthest && d < bestDist) {
			best, bestDist = code, d
		}
	}
	return best
}

func (s *shape) contains(lat, lon, margin float64) bool {
	for i := range s.polygons {
		p := &s.polygons[i]
		if margin > 0 {
			grown := geocalc.Box{
				MinLat: p.box.MinLat - margin, MaxLat: p.box.MaxLat + margin,
				MinLon: p.box.MinLon - margin, MaxLon: p.box.MaxLon + margin,
			}
			if grown.Contains(geocalc.Point{Lat: lat, Lon: lon}) {
				return true
			}
			continue
		}
		if p.contains(lat, lon) {
			return true
		}
	}
	return false
}

// borderDistance is the distance in meters to the nearest border vertex.
func (s *shape) borderDistance(lat, lon float64) float64 {
	minDist := math.Inf(1)
	for _, p := range s.polygons {
		for _, ring := range p.rings {
			for _, c := range ring {
				if d := geocalc.Distance(lat, lon, c[1], c[0]); d < minDist {
					minDist = d
				}
			}
		}
	}
	return minDist
}

func (p *polygon) contains(lat, lon float64) bool {
	if !p.box.Contains(geocalc.Point{Lat: lat, Lon: lon}) {
		return false
	}
	if !ringContains(p.rings[0], lat, lon) {
		return false
	}
	for _, hole := range p.rings[1:] {
		if ringContains(hole, lat, lon) {
			return false
		}
	}
	return true
}

// ringContains is an even-odd ray cast. Coordinates are GeoJSON [lon, lat].
func ringContains(ring [][]float64, lat, lon float64) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func ringBox(ring [][]float64) geocalc.Box {
	box := geocalc.Box{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLon: math.Inf(1), MaxLon: math.Inf(-1),
	}
	for _, c := range ring {
		box = box.Extend(geocalc.Point{Lat: c[1], Lon: c[0]})
	}
	return box
}

// estimateRadius covers the largest polygon's bounding box from its center,
// rounded to whole kilometers.
func estimateRadius(polys []polygon) float64 {
	var radius float64
	for _, p := range polys {
		ctr := geocalc.Point{
			Lat: (p.box.MinLat + p.box.MaxLat) / 2,
			Lon: (p.box.MinLon + p.box.MaxLon) / 2,
		}
		if r := geocalc.BBoxRadius(ctr, p.box); r > radius {
			radius = r
		}
	}
	return math.Round(radius/1000) * 1000
}
