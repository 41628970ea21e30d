package transcribe

import (
	"testing"
	"time"
)

func TestPlanSegmentsCoversDuration(t *testing.T) {
	tests := []struct {
		name      string
		duration  time.Duration
		length    time.Duration
		wantCount int
		wantLast  time.Duration
	}{
		{"exact multiple", 3 * 25 * time.Minute, 25 * time.Minute, 3, 25 * time.Minute},
		{"one second over", 25*time.Minute + time.Second, 24 * time.Minute, 2, time.Minute + time.Second},
		{"shorter than one", 10 * time.Minute, 24 * time.Minute, 1, 10 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := PlanSegments(tt.duration, tt.length)
			if len(segments) != tt.wantCount {
				t.Fatalf("expected %d segments, got %d", tt.wantCount, len(segments))
			}
			var total time.Duration
			for i, seg := range segments {
				if seg.Index != i {
					t.Fatalf("segment %d has index %d", i, seg.Index)
				}
				if seg.Offset != total {
					t.Fatalf("segment %d starts at %s, want %s", i, seg.Offset, total)
				}
				total += seg.Length
			}
			if total != tt.duration {
				t.Fatalf("segments cover %s, want %s", total, tt.duration)
			}
			if last := segments[len(segments)-1].Length; last != tt.wantLast {
				t.Fatalf("last segment %s, want %s", last, tt.wantLast)
			}
		})
	}
	if PlanSegments(0, time.Minute) != nil {
		t.Fatal("expected no segments for zero duration")
	}
}

func TestSegmentLengthClampsToBound(t *testing.T) {
	if got := SegmentLength(1440, 25*time.Minute); got != 24*time.Minute {
		t.Fatalf("expected configured 24m, got %s", got)
	}
	if got := SegmentLength(3600, 25*time.Minute); got != 25*time.Minute {
		t.Fatalf("expected clamp to 25m, got %s", got)
	}
	if got := SegmentLength(0, 4*time.Hour); got != 4*time.Hour {
		t.Fatalf("expected bound when unset, got %s", got)
	}
}
