// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package supervisor runs every long-lived service under suture v4.

	RootSupervisor ("triangulum")
	├── StorageSupervisor ("storage-layer")
	│   └── MaintenanceService (badger value log GC, DuckDB checkpoint)
	├── IngestSupervisor ("ingest-layer")
	│   ├── ingest-worker-incoming
	│   ├── ingest-worker-update_cell_gsm ... update_blue_f
	│   ├── ingest-worker-update_datamap_ne ... update_datamap_sw
	│   ├── ingest-worker-update_cellarea
	│   └── datamap-cleaner
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Supervisor events are
logged through sutureslog on a slog.Logger backed by zerolog.

Shutdown: cancel the context passed to Serve. Each service gets
TreeConfig.ShutdownTimeout to return; queue workers use that window to
drain what is left on their queue. Anything still running is listed by
UnstoppedServiceReport.

Service wrappers for components that do not implement suture.Service
themselves live in the services subpackage.
*/
package supervisor
