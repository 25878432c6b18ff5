// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/triangulum/internal/models"
)

// Topics.
const (
	TopicStationMoved   = "station.moved"
	TopicStationBlocked = "station.blocked"

	// SubjectWildcard matches every station topic on the JetStream stream.
	SubjectWildcard = "station.>"
)

// ErrInvalidEvent is returned for events missing required fields.
var ErrInvalidEvent = errors.New("invalid station event")

// StationMoved describes a station that was deleted and blocklisted after
// its observations spread beyond the move threshold.
type StationMoved struct {
	EventID    string             `json:"event_id"`
	Type       models.StationType `json:"type"`
	Shard      string             `json:"shard"`
	Key        string             `json:"key"`
	Lat        float64            `json:"lat"`
	Lon        float64            `json:"lon"`
	SpreadM    float64            `json:"spread_m"` // bounding box diagonal that tripped the move
	BlockCount int                `json:"block_count"`
	Permanent  bool               `json:"permanent"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// NewStationMoved builds an event for a moved station and its updated block
// entry.
func NewStationMoved(shard string, st *models.Station, block *models.BlockEntry, spread float64, now time.Time) *StationMoved {
	return &StationMoved{
		EventID:    uuid.New().String(),
		Type:       st.Type,
		Shard:      shard,
		Key:        st.Key(),
		Lat:        st.Lat,
		Lon:        st.Lon,
		SpreadM:    spread,
		BlockCount: block.Count,
		Permanent:  block.Permanent(),
		OccurredAt: now.UTC(),
	}
}

// Topic returns the topic the event is published on.
func (e *StationMoved) Topic() string {
	if e.Permanent {
		return TopicStationBlocked
	}
	return TopicStationMoved
}

// Validate checks required fields.
func (e *StationMoved) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: event_id is required", ErrInvalidEvent)
	case e.Key == "":
		return fmt.Errorf("%w: key is required", ErrInvalidEvent)
	case e.Shard == "":
		return fmt.Errorf("%w: shard is required", ErrInvalidEvent)
	}
	return nil
}

// Marshal encodes the event as JSON.
func (e *StationMoved) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalStationMoved decodes and validates an event payload.
func UnmarshalStationMoved(data []byte) (*StationMoved, error) {
	var e StationMoved
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode station event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
