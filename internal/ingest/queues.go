// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/kvstore"
	"github.com/tomtom215/triangulum/internal/models"
)

// Queue names.
const (
	QueueIncoming = "incoming"
	QueueCellArea = "update_cellarea"
)

// StationQueueName is the update queue of a station shard.
func StationQueueName(shard string) string {
	return "update_" + shard
}

// DataMapQueueName is the update queue of a datamap shard.
func DataMapQueueName(shard string) string {
	return "update_datamap_" + shard
}

// Queues holds every queue of the pipeline.
type Queues struct {
	Incoming *kvstore.Queue
	Stations map[string]*kvstore.Queue // keyed by station shard
	DataMap  map[string]*kvstore.Queue // keyed by datamap shard
	CellArea *kvstore.Queue
}

// NewQueues opens the pipeline queues with the configured batch sizes.
func NewQueues(store *kvstore.Store, cfg *config.IngestConfig) *Queues {
	q := &Queues{
		Incoming: store.Queue(QueueIncoming, cfg.IncomingBatch),
		Stations: make(map[string]*kvstore.Queue, 36),
		DataMap:  make(map[string]*kvstore.Queue, len(models.DataMapShards)),
		CellArea: store.Queue(QueueCellArea, cfg.AreaBatch),
	}
	for _, shard := range models.StationShards() {
		batch := cfg.WifiBatch
		if t, _ := models.ShardType(shard); t == models.StationCell {
			batch = cfg.CellBatch
		} else if t == models.StationBlue {
			batch = cfg.BlueBatch
		}
		q.Stations[shard] = store.Queue(StationQueueName(shard), batch)
	}
	for _, shard := range models.DataMapShards {
		q.DataMap[shard] = store.Queue(DataMapQueueName(shard), cfg.DatamapBatch)
	}
	return q
}

// Names lists every queue name, incoming first.
func (q *Queues) Names() []string {
	names := []string{q.Incoming.Name()}
	for _, shard := range models.StationShards() {
		names = append(names, q.Stations[shard].Name())
	}
	for _, shard := range models.DataMapShards {
		names = append(names, q.DataMap[shard].Name())
	}
	return append(names, q.CellArea.Name())
}
