// Package diary tracks the active diary date and its per-day partition file.
//
// The active date is persisted as YYMMDD. CheckRollover runs at the start of
// every scheduler cycle: when the wall-clock day has moved on it advances the
// date straight to today and opens that day's partition with a header and a
// system note. Days with no cycle are skipped, never back-filled.
package diary
