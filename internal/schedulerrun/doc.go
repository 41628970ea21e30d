// Package schedulerrun is the body of the detached `diarist scheduler`
// process: it takes the single-instance lock, wires the pipeline stages, and
// drives the interval scheduler until it is signalled or its single cycle
// finishes.
package schedulerrun
