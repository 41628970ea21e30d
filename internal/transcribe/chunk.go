package transcribe

import (
	"time"
)

// Segment is one contiguous slice of a recording.
type Segment struct {
	Index  int
	Offset time.Duration
	Length time.Duration
}

// SegmentLength is the chunk size for a backend bound: max_chunk_seconds,
// never longer than the bound itself.
func SegmentLength(maxChunkSeconds int, bound time.Duration) time.Duration {
	length := time.Duration(maxChunkSeconds) * time.Second
	if length <= 0 || (bound > 0 && length > bound) {
		return bound
	}
	return length
}

// PlanSegments covers duration with ceil(duration/length) segments in
// temporal order. The final segment carries the remainder.
func PlanSegments(duration, length time.Duration) []Segment {
	if duration <= 0 || length <= 0 {
		return nil
	}
	count := int((duration + length - 1) / length)
	segments := make([]Segment, 0, count)
	for i := range count {
		offset := time.Duration(i) * length
		segLen := length
		if remaining := duration - offset; remaining < segLen {
			segLen = remaining
		}
		segments = append(segments, Segment{Index: i, Offset: offset, Length: segLen})
	}
	return segments
}
