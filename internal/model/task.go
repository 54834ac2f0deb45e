package model

import (
	"fmt"
	"time"
)

// ProcessHandle is the opaque handle of a running worker process
type ProcessHandle interface {
	RunID() string
	Terminate()
}

// TaskParams are the resolved execution parameters of a task
type TaskParams struct {
	URL            string
	Local          string // output directory
	Name           string // output file name without extension
	Headers        map[string]string
	Type           VideoType
	Proxy          string
	DeleteSegments bool
}

// Task is the in-memory unit of work, correlated 1:1 with a DownloadItem by ID
type Task struct {
	ID         int64
	Params     TaskParams
	Status     DownloadStatus
	Process    ProcessHandle // set only while Downloading
	EnqueuedAt time.Time
	StartedAt  time.Time
}

// TaskState is a read-only snapshot of a live task
type TaskState struct {
	ID     int64          `json:"id"`
	Status DownloadStatus `json:"status"`
	RunID  string         `json:"runId,omitempty"`
}

// OutcomeKind tags how a worker process ended
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeKilled  OutcomeKind = "killed"
)

// Outcome is reported once per worker process when it exits
type Outcome struct {
	RunID    string
	Kind     OutcomeKind
	ExitCode int
	Err      error
	Output   string // tail of the worker's diagnostic output
	Warning  string // cleanup problem on success, never fatal
}

// Detail returns a human readable failure description
func (o Outcome) Detail() string {
	if o.Err == nil {
		return ""
	}
	if o.Output != "" {
		return fmt.Sprintf("%v: %s", o.Err, o.Output)
	}
	return o.Err.Error()
}

// Progress is a live progress sample from a worker
type Progress struct {
	RunID   string
	Percent float64 // 0 to 100
	Speed   string  // human readable speed (e.g., "1.2MB/s")
}
