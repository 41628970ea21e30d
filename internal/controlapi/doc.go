// Package controlapi serves the HTTP control surface: reconciled status, log
// history, start/stop of the scheduler process, and schedule edits. It runs
// in its own `diarist serve` process and talks to the scheduler only through
// the supervisor and the shared store.
package controlapi
