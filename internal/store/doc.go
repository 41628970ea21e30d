// Package store is the small persisted record shared by the scheduler process
// and the control surfaces: one scheduler_status row, an append-only
// scheduler_log, and the diary's active date.
//
// Writers are rare (start, stop, cycle boundaries), so SQLite in WAL mode with
// a short busy-retry loop is enough for two processes to share the file.
package store
