// Package scheduler runs the pipeline cycle on a fixed daily cadence.
//
// A Scheduler moves through Idle, Running, then alternates between Executing
// and Sleeping until its context is cancelled, ending in Terminated. The
// interval is 24h divided by runs_per_day; zero runs a single cycle and
// returns. Cancellation interrupts a sleep immediately but never an
// executing cycle.
package scheduler
