// Package ffprobe reads recording length and size from ffprobe's JSON output
// for the audio files the transcription stage consumes.
//
// Duration is the shortcut the chunk planner uses to decide how many
// segments a recording needs.
package ffprobe
