package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// SchedulerStatus is the reconciled liveness of the scheduler process.
type SchedulerStatus struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid,omitempty"`
	PIDs        []int  `json:"pids,omitempty"`
	LastStarted string `json:"lastStarted,omitempty"`
	LastStopped string `json:"lastStopped,omitempty"`
	LastCycleAt string `json:"lastCycleAt,omitempty"`
	NextCycleAt string `json:"nextCycleAt,omitempty"`
}

// Schedule describes the configured cadence.
type Schedule struct {
	RunsPerDay      int    `json:"runsPerDay"`
	IntervalSeconds int64  `json:"intervalSeconds"`
	Mode            string `json:"mode"`
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	Scheduler SchedulerStatus `json:"scheduler"`
	Schedule  Schedule        `json:"schedule"`
	DiaryDate string          `json:"diaryDate,omitempty"`
}

// LogEntry is one scheduler log row.
type LogEntry struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Stage     string `json:"stage,omitempty"`
	CycleID   string `json:"cycleId,omitempty"`
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
}

// LogsResponse is returned by GET /api/logs.
type LogsResponse struct {
	Entries []LogEntry `json:"entries"`
}

// StartResponse acknowledges POST /api/scheduler/start.
type StartResponse struct {
	PID       int    `json:"pid"`
	StartedAt string `json:"startedAt"`
	Completed bool   `json:"completed"`
}

// StopResponse acknowledges POST /api/scheduler/stop.
type StopResponse struct {
	PIDs      []int  `json:"pids"`
	Outcome   string `json:"outcome"`
	StoppedAt string `json:"stoppedAt"`
}

// ScheduleRequest is the body of PUT /api/schedule.
type ScheduleRequest struct {
	RunsPerDay *int `json:"runsPerDay"`
}

// ScheduleResponse acknowledges a schedule change.
type ScheduleResponse struct {
	Schedule        Schedule `json:"schedule"`
	RestartRequired bool     `json:"restartRequired"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
	PID   int    `json:"pid,omitempty"`
}
