// Package transcribe turns downloaded audio into text.
//
// A Backend is chosen once from transcription.variant: the local whisper CLI
// or one of two hosted OpenAI-compatible models. Each variant declares the
// longest input it accepts. Selector probes every file and, when a recording
// exceeds that bound and chunking is enabled, cuts it into segments with
// ffmpeg, transcribes them concurrently, and joins the text in temporal
// order.
//
// Provider failures are classified as TransientProviderError (retried with
// backoff) or PermanentInputError (reported immediately). Stage wraps the
// selector as the built-in transcribe pipeline stage.
package transcribe
