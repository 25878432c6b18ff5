// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package geocalc implements the spherical geometry used by both the locate
// and ingest paths.
//
// Distances are great-circle distances on a sphere with the mean Earth
// radius, computed with the haversine formula. The spherical model is off by
// up to 0.55% against the ellipsoid, well below GPS error. All results are in
// meters.
package geocalc

import (
	"errors"
	"math"
	"math/rand/v2"
)

const (
	// EarthRadiusMeters is the mean Earth radius.
	EarthRadiusMeters = 6371000.0

	// MaxLat and MaxLon bound positions accepted into the database. The
	// latitude limit is the Web Mercator cut-off.
	MaxLat = 85.051
	MaxLon = 180.0

	// DegreeDecimalPlaces is the rounding precision for returned coordinates.
	DegreeDecimalPlaces = 7
)

// ErrEmptyInput is returned by aggregate operations given no points.
var ErrEmptyInput = errors.New("geocalc: empty input")

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Box is an axis-aligned latitude/longitude bounding box.
type Box struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Corners returns the four corners of the box.
func (b Box) Corners() [4]Point {
	return [4]Point{
		{b.MinLat, b.MinLon},
		{b.MinLat, b.MaxLon},
		{b.MaxLat, b.MinLon},
		{b.MaxLat, b.MaxLon},
	}
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Extend grows the box to include p.
func (b Box) Extend(p Point) Box {
	return Box{
		MinLat: math.Min(b.MinLat, p.Lat),
		MaxLat: math.Max(b.MaxLat, p.Lat),
		MinLon: math.Min(b.MinLon, p.Lon),
		MaxLon: math.Max(b.MaxLon, p.Lon),
	}
}

// Union returns the smallest box containing both boxes.
func (b Box) Union(o Box) Box {
	return Box{
		MinLat: math.Min(b.MinLat, o.MinLat),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
		MinLon: math.Min(b.MinLon, o.MinLon),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
	}
}

// Diagonal is the great-circle distance between the opposite corners.
func (b Box) Diagonal() float64 {
	return Distance(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Distance returns the great-circle distance in meters between two points.
// Antipodal inputs are safe: the haversine term is clamped to [0, 1].
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	rlat1 := radians(lat1)
	rlat2 := radians(lat2)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(rlat1)*math.Cos(rlat2)*sinLon*sinLon
	a = math.Min(1, math.Max(0, a))

	return EarthRadiusMeters * 2 * math.Asin(math.Sqrt(a))
}

// Centroid returns the arithmetic mean of points.
func Centroid(points []Point) (Point, error) {
	if len(points) == 0 {
		return Point{}, ErrEmptyInput
	}
	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}
	n := float64(len(points))
	return Point{Lat: sumLat / n, Lon: sumLon / n}, nil
}

// WeightedCentroid returns the weighted mean of points. Weights must be
// positive; a zero total weight falls back to the plain centroid.
func WeightedCentroid(points []Point, weights []float64) (Point, error) {
	if len(points) == 0 {
		return Point{}, ErrEmptyInput
	}
	if len(weights) != len(points) {
		return Point{}, errors.New("geocalc: points and weights differ in length")
	}
	var sumLat, sumLon, sumW float64
	for i, p := range points {
		sumLat += p.Lat * weights[i]
		sumLon += p.Lon * weights[i]
		sumW += weights[i]
	}
	if sumW <= 0 {
		return Centroid(points)
	}
	return Point{Lat: sumLat / sumW, Lon: sumLon / sumW}, nil
}

// MaxDistance returns the largest distance from ctr to any of points.
func MaxDistance(ctr Point, points []Point) float64 {
	var maxDist float64
	for _, p := range points {
		if d := Distance(ctr.Lat, ctr.Lon, p.Lat, p.Lon); d > maxDist {
			maxDist = d
		}
	}
	return maxDist
}

// AggregateBox returns the component-wise extremes of points. Points with
// a NaN latitude or longitude are ignored.
func AggregateBox(points []Point) (Box, error) {
	box := Box{
		MinLat: math.Inf(1), MaxLat: math.Inf(-1),
		MinLon: math.Inf(1), MaxLon: math.Inf(-1),
	}
	found := false
	for _, p := range points {
		if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
			continue
		}
		box = box.Extend(p)
		found = true
	}
	if !found {
		return Box{}, ErrEmptyInput
	}
	return box, nil
}

// BBoxRadius returns the largest distance in meters from ctr to a corner of box.
func BBoxRadius(ctr Point, box Box) float64 {
	corners := box.Corners()
	return MaxDistance(ctr, corners[:])
}

// CircleRadius is BBoxRadius rounded to whole meters, the form stored on
// station and area rows.
func CircleRadius(ctr Point, box Box) int {
	return int(math.Round(BBoxRadius(ctr, box)))
}

// AddMetersToLatitude shifts lat north by meters (south when negative),
// clamped to the Mercator bounds.
func AddMetersToLatitude(lat, meters float64) float64 {
	return ClampLatitude(lat + degrees(meters/EarthRadiusMeters))
}

// AddMetersToLongitude shifts lon east by meters at latitude lat, clamped to
// ±180.
func AddMetersToLongitude(lat, lon, meters float64) float64 {
	return ClampLongitude(lon + degrees(meters/EarthRadiusMeters/math.Cos(radians(lat))))
}

// ClampLatitude limits lat to ±MaxLat.
func ClampLatitude(lat float64) float64 {
	return math.Max(-MaxLat, math.Min(MaxLat, lat))
}

// ClampLongitude limits lon to ±MaxLon.
func ClampLongitude(lon float64) float64 {
	return math.Max(-MaxLon, math.Min(MaxLon, lon))
}

// InBounds reports whether the point is finite and inside the Mercator bounds.
func InBounds(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return math.Abs(lat) <= MaxLat && math.Abs(lon) <= MaxLon
}

// RoundDegrees rounds v to DegreeDecimalPlaces.
func RoundDegrees(v float64) float64 {
	const scale = 1e7
	return math.Round(v*scale) / scale
}

// RandomPointsAround places n points on a jittered ring around (lat, lon).
// The ring radius is ringMeters; each point is displaced by up to a quarter
// of the ring radius and a small angular jitter. The output is fully
// determined by seed.
func RandomPointsAround(lat, lon float64, n int, ringMeters float64, seed uint64) []Point {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	points := make([]Point, n)
	step := 2 * math.Pi / float64(n)
	for i := range points {
		angle := float64(i)*step + (rng.Float64()-0.5)*step/2
		dist := ringMeters * (0.75 + rng.Float64()*0.5)
		north := dist * math.Sin(angle)
		east := dist * math.Cos(angle)
		plat := AddMetersToLatitude(lat, north)
		points[i] = Point{Lat: plat, Lon: AddMetersToLongitude(lat, lon, east)}
	}
	return points
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
