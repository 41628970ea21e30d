// Package main hosts the diarist CLI entrypoint and command graph.
//
// Operator commands (start, stop, status, logs) drive the supervisor in
// internal/supervisor, which spawns and signals the scheduler process. The
// hidden scheduler command is that process: it runs the pipeline loop until
// it is signalled. serve exposes the same operations over HTTP.
//
// Heavy lifting lives in the internal packages; commands here resolve
// configuration, format output, and translate errors into operator hints.
package main
