package model

import "fmt"

// DownloadStatus represents the lifecycle state of a download item
type DownloadStatus string

const (
	// StatusPending means the record exists but was never queued
	StatusPending DownloadStatus = "pending"

	// StatusWaiting means the item is queued and waits for a free slot
	StatusWaiting DownloadStatus = "waiting"

	// StatusDownloading means a worker process is running for the item
	StatusDownloading DownloadStatus = "downloading"

	// StatusSuccess means the worker finished successfully
	StatusSuccess DownloadStatus = "success"

	// StatusFailed means the worker exited with an error
	StatusFailed DownloadStatus = "failed"

	// StatusStopped means the user stopped the item
	StatusStopped DownloadStatus = "stopped"
)

// transitions lists every allowed edge of the state machine.
var transitions = map[DownloadStatus][]DownloadStatus{
	StatusPending:     {StatusWaiting},
	StatusFailed:      {StatusWaiting},
	StatusStopped:     {StatusWaiting},
	StatusWaiting:     {StatusDownloading, StatusStopped},
	StatusDownloading: {StatusSuccess, StatusFailed, StatusStopped},
}

// String returns the string representation of DownloadStatus
func (s DownloadStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known states
func (s DownloadStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusWaiting, StatusDownloading, StatusSuccess, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// IsActive returns true while the item is queued or running
func (s DownloadStatus) IsActive() bool {
	return s == StatusWaiting || s == StatusDownloading
}

// IsFinished returns true for terminal states (success, failed, stopped)
func (s DownloadStatus) IsFinished() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusStopped
}

// CanTransition reports whether the state machine has an edge from s to next
func (s DownloadStatus) CanTransition(next DownloadStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition validates the move of item id from one state to another.
func Transition(id int64, from, to DownloadStatus) error {
	if !from.CanTransition(to) {
		return &TransitionError{ID: id, From: from, To: to}
	}
	return nil
}

// TransitionError describes a rejected status change.
type TransitionError struct {
	ID   int64
	From DownloadStatus
	To   DownloadStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("item %d: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
