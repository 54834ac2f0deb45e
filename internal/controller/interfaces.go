package controller

import (
	"context"

	"github.com/ytget/stream-downloader/internal/model"
)

// ItemStore persists download items
type ItemStore interface {
	Create(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error)
	BulkCreate(ctx context.Context, items []*model.DownloadItem) ([]*model.DownloadItem, error)
	Update(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error)
	FindByID(ctx context.Context, id int64) (*model.DownloadItem, error)
	FindPage(ctx context.Context, p model.Pagination) (*model.ItemPage, error)
}

// Queue is the dispatcher as seen by callers
type Queue interface {
	Enqueue(ctx context.Context, id int64) error
	Stop(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) (bool, error)
	SetMaxParallel(ctx context.Context, n int) error
	Tasks(ctx context.Context) ([]model.TaskState, error)
}

// Settings are the user preferences the controller reads and writes
type Settings interface {
	GetDownloadDirectory() string
	SetMaxParallelDownloads(count int) int
}

// PlaylistParser turns a playlist URL into unsaved items
type PlaylistParser interface {
	Parse(ctx context.Context, url string) ([]*model.DownloadItem, error)
}

// Notifier receives fire-and-forget events
type Notifier interface {
	Emit(name string, payload any)
}
