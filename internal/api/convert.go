package api

import (
	"time"

	"diarist/internal/scheduler"
	"diarist/internal/store"
	"diarist/internal/supervisor"
)

// FromSnapshot converts a reconciled supervisor snapshot.
func FromSnapshot(snap supervisor.Snapshot) SchedulerStatus {
	return SchedulerStatus{
		Running:     snap.IsRunning,
		PID:         snap.PIDValue(),
		PIDs:        snap.PIDs,
		LastStarted: formatTime(snap.LastStarted),
		LastStopped: formatTime(snap.LastStopped),
		LastCycleAt: formatTime(snap.LastCycleAt),
		NextCycleAt: formatTime(snap.NextCycleAt),
	}
}

// FromRunsPerDay describes the cadence for runsPerDay.
func FromRunsPerDay(runsPerDay int) Schedule {
	mode := "interval"
	if runsPerDay == 0 {
		mode = "run-once"
	}
	return Schedule{
		RunsPerDay:      runsPerDay,
		IntervalSeconds: int64(scheduler.Interval(runsPerDay) / time.Second),
		Mode:            mode,
	}
}

// FromLogEntries converts store rows, keeping their order.
func FromLogEntries(entries []store.LogEntry) []LogEntry {
	out := make([]LogEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntry{
			ID:        e.ID,
			Timestamp: formatTime(&e.Timestamp),
			Actor:     e.Actor,
			Action:    string(e.Action),
			Stage:     e.Stage,
			CycleID:   e.CycleID,
			Success:   e.Success,
			Message:   e.Message,
		})
	}
	return out
}

// FromStartAck converts a start acknowledgement.
func FromStartAck(ack supervisor.StartAck) StartResponse {
	return StartResponse{PID: ack.PID, StartedAt: formatTime(&ack.StartedAt), Completed: ack.Completed}
}

// FromStopAck converts a stop acknowledgement.
func FromStopAck(ack supervisor.StopAck) StopResponse {
	return StopResponse{PIDs: ack.PIDs, Outcome: string(ack.Outcome), StoppedAt: formatTime(&ack.StoppedAt)}
}

// ParseTime reads a timestamp written by this package.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
