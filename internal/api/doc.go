// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package api serves the public HTTP interface.

Endpoints:

	POST /v1/geolocate          position query, key required
	POST /v1/search             legacy position query, key required
	GET  /v1/country            region query from the client address
	POST /v1/country            region query, key optional
	POST /v1/submit             legacy report submission, 204
	POST /v1/geosubmit          report submission, key required, 200 {}
	POST /v2/geosubmit          report submission, key required, 200 {}
	GET  /__heartbeat__         dependency probe
	GET  /__lbheartbeat__       liveness
	GET  /metrics               Prometheus

Authentication is the key query parameter. Key policies are cached in
process by KeyCache. A key that exists but is not allowed for the API is
treated like an unknown key.

Errors share one body shape:

	{"error": {"code": 400, "errors": [{"domain": "global",
	  "reason": "parseError", "message": "Parse Error"}],
	  "message": "Parse Error"}}

writeError maps the package sentinels (ErrParse, ErrInvalidAPIKey,
ErrDailyLimitExceeded, ErrLocationNotFound, ErrServiceUnavailable) onto
status, domain and reason. Anything else is a 500.

Submissions are split into batches of at most 100 reports and placed on
the incoming ingest queue; the answer does not wait for processing.
*/
package api
