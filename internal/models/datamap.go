// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package models

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataMapScale converts degrees into grid units of a thousandth degree.
const DataMapScale = 1000

// DataMapShards are the four geographic datamap partitions.
var DataMapShards = []string{"ne", "nw", "se", "sw"}

// DataMapGrid is one datamap cell in thousandths of a degree.
type DataMapGrid struct {
	Lat int32
	Lon int32
}

// ScaleGrid rounds a position onto the datamap grid.
func ScaleGrid(lat, lon float64) DataMapGrid {
	return DataMapGrid{
		Lat: int32(math.Round(lat * DataMapScale)),
		Lon: int32(math.Round(lon * DataMapScale)),
	}
}

// Degrees converts the grid cell back into decimal degrees.
func (g DataMapGrid) Degrees() (float64, float64) {
	return float64(g.Lat) / DataMapScale, float64(g.Lon) / DataMapScale
}

// Shard returns the partition for the grid cell, split on the sign of the
// scaled latitude and longitude.
func (g DataMapGrid) Shard() string {
	ns, ew := "n", "e"
	if g.Lat < 0 {
		ns = "s"
	}
	if g.Lon < 0 {
		ew = "w"
	}
	return ns + ew
}

// Encode packs the cell into eight bytes, two big-endian int32 values.
func (g DataMapGrid) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[:4], uint32(g.Lat))
	binary.BigEndian.PutUint32(buf[4:], uint32(g.Lon))
	return buf
}

// DecodeGrid is the inverse of Encode.
func DecodeGrid(b []byte) (DataMapGrid, error) {
	if len(b) != 8 {
		return DataMapGrid{}, fmt.Errorf("datamap grid must be 8 bytes, got %d", len(b))
	}
	return DataMapGrid{
		Lat: int32(binary.BigEndian.Uint32(b[:4])),
		Lon: int32(binary.BigEndian.Uint32(b[4:])),
	}, nil
}
