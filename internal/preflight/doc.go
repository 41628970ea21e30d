// Package preflight provides readiness checks for the directories and
// transcription provider diarist depends on.
//
// These checks run in two contexts:
//   - The scheduler logs every failed check once at startup so a missing
//     directory or credential shows up before the first cycle.
//   - The CLI "diarist status" command renders them in a readiness section;
//     --probe adds the network check against the hosted provider.
//
// A failed check never stops the scheduler. Stages that need the missing
// resource fail their cycle instead.
package preflight
