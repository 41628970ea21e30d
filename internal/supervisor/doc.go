// Package supervisor starts, stops, and inspects the scheduler process from
// a separate control process.
//
// The scheduler runs as a detached `diarist scheduler` process. Its liveness
// is established only through the OS process table; the persisted status row
// is a cache that every Status call reconciles against what is actually
// running. A freshly spawned process is not declared dead until the startup
// grace period has passed, and a stop escalates from SIGTERM to SIGKILL
// after the termination timeout.
//
// Start requests from several control processes are serialised with a file
// lock so two concurrent starts spawn one scheduler.
package supervisor
