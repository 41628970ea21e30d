package store

import "time"

// Action labels a scheduler log entry.
type Action string

const (
	ActionStart         Action = "start"
	ActionStop          Action = "stop"
	ActionStageResult   Action = "stage-result"
	ActionCycle         Action = "cycle"
	ActionConfigChanged Action = "config-changed"
)

// Status mirrors the singleton scheduler_status row.
type Status struct {
	IsRunning   bool       `json:"is_running"`
	LastStarted *time.Time `json:"last_started,omitempty"`
	LastStopped *time.Time `json:"last_stopped,omitempty"`
	PID         *int       `json:"pid,omitempty"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
	NextCycleAt *time.Time `json:"next_cycle_at,omitempty"`
}

// LogEntry is one append-only scheduler_log row.
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Stage     string    `json:"stage,omitempty"`
	CycleID   string    `json:"cycle_id,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
}

// PIDValue returns the recorded pid or zero.
func (s Status) PIDValue() int {
	if s.PID == nil {
		return 0
	}
	return *s.PID
}

// TimePtr is a small helper for building Status values.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// IntPtr is a small helper for building Status values.
func IntPtr(v int) *int {
	return &v
}
