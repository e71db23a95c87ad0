package persistence

import (
	"time"
)

// Run represents a single recorded task execution.
type Run struct {
	StartedAt time.Time     `json:"started_at"`
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Task      string        `json:"task"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded reports whether the run's tool exited zero.
func (r *Run) Succeeded() bool {
	return r.ExitCode == 0
}

// TaskStat aggregates run history for one task name.
type TaskStat struct {
	Task        string        `json:"task"`
	Runs        int64         `json:"runs"`
	Failures    int64         `json:"failures"`
	AvgDuration time.Duration `json:"avg_duration"`
}
