// Package logs reads diarist's rotating process log files.
//
// Last returns the trailing lines of scheduler.log for `diarist logs
// --process`; Follow keeps reading as the scheduler appends. A file that
// shrinks below the reader's offset was rotated by lumberjack, so reading
// restarts at the beginning of the new file.
package logs
