// Package config loads, normalizes, and validates diarist configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and canonicalizes transcription variant names
// so the scheduler, its stages, and the control surfaces agree on one view of
// the settings.
//
// Configuration is read once per process. Editing runs_per_day through
// SetRunsPerDay never affects a scheduler that is already running; callers
// surface the restart requirement to the operator.
package config
