// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package services adapts components that are not suture services on their
own.

HTTPServerService turns the ListenAndServe/Shutdown pair of *http.Server
into Serve(ctx). Shutdown gets a fresh context bounded by the configured
timeout since the supervisor context is already canceled.

MaintenanceService runs periodic store housekeeping:

	svc := services.NewMaintenanceService(logger,
	    services.GCTask("kvstore-gc", cfg.KVStore.GCInterval, store),
	    services.CheckpointTask("database-checkpoint", time.Hour, db),
	    services.MaintenanceTask{Name: "apikey-cache", Interval: time.Minute, Run: keys.Sweep},
	)
	tree.AddStorageService(svc)

A failing or panicking task is logged and retried on its next tick; it
never restarts the service.

Serve return values follow suture: ctx.Err() on requested shutdown, any
other error asks the supervisor for a restart.
*/
package services
