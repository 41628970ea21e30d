// Package api defines wire-format types and converters shared by the HTTP
// control API and the CLI. It translates supervisor snapshots and store log
// entries into transport-friendly DTOs so dashboards and scripts can render
// them without coupling to internal types.
//
// # Key Types
//
// StatusResponse: reconciled scheduler liveness, schedule, and diary date.
//
// LogEntry/LogsResponse: scheduler log history, newest first.
//
// StartResponse/StopResponse/ScheduleResponse: acknowledgements for control
// actions.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Timestamps use
// RFC3339 with milliseconds. The schedule block reflects the configuration on
// disk, which a running scheduler only adopts after a restart.
package api
