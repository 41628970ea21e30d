// Package services defines shared utilities consumed by pipeline stages and
// the supervision bridge.
//
// Key responsibilities:
//   - Context helpers that stamp cycle IDs, stage names, actors, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (transient vs permanent vs configuration) without string
//     matching.
package services
