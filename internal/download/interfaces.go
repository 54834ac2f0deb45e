package download

import (
	"context"

	"github.com/ytget/stream-downloader/internal/model"
)

// Store is the part of the record store the dispatcher needs
type Store interface {
	FindByID(ctx context.Context, id int64) (*model.DownloadItem, error)
	FindByStatus(ctx context.Context, statuses ...model.DownloadStatus) ([]*model.DownloadItem, error)
	UpdateStatus(ctx context.Context, id int64, status model.DownloadStatus) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// ProcessRunner starts worker processes.
// Callbacks must never be invoked synchronously from Start.
type ProcessRunner interface {
	Start(task *model.Task, onProgress func(model.Progress), onExit func(model.Outcome)) (model.ProcessHandle, error)
}

// Settings are the user preferences read when a task is enqueued
type Settings interface {
	GetDownloadDirectory() string
	GetDeleteSegments() bool
	GetProxy() string
}

// Notifier receives fire-and-forget events
type Notifier interface {
	Emit(name string, payload any)
}
