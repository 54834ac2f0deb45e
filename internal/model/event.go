package model

// Event names pushed to the notification sink
const (
	EventItemAdded = "download-item-notifier"
	EventWaiting   = "download-waiting"
	EventStart     = "download-start"
	EventProgress  = "download-progress"
	EventSuccess   = "download-success"
	EventFailed    = "download-failed"
	EventStop      = "download-stop"
)

// StatusEvent is the payload of every status change notification
type StatusEvent struct {
	ID      int64          `json:"id"`
	Name    string         `json:"name,omitempty"`
	Status  DownloadStatus `json:"status"`
	Outcome OutcomeKind    `json:"outcome,omitempty"`
	Error   string         `json:"error,omitempty"`
	Warning string         `json:"warning,omitempty"`
}

// ProgressEvent is the payload of download-progress
type ProgressEvent struct {
	ID      int64   `json:"id"`
	Percent float64 `json:"percent"`
	Speed   string  `json:"speed,omitempty"`
}

// EventForStatus maps a target status to its notification name
func EventForStatus(status DownloadStatus) string {
	switch status {
	case StatusWaiting:
		return EventWaiting
	case StatusDownloading:
		return EventStart
	case StatusSuccess:
		return EventSuccess
	case StatusFailed:
		return EventFailed
	case StatusStopped:
		return EventStop
	}
	return ""
}
