package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/afero"

	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/platform"
)

// ItemView is a listed item plus whether its output file is on disk
type ItemView struct {
	*model.DownloadItem
	Exist *bool `json:"exist,omitempty"`
}

// ItemList is one page of listed items
type ItemList struct {
	Total int64       `json:"total"`
	List  []*ItemView `json:"list"`
}

// Controller implements the operations offered to the presentation layer
type Controller struct {
	store     ItemStore
	queue     Queue
	settings  Settings
	playlists PlaylistParser
	notifier  Notifier
	fs        afero.Fs
	log       *slog.Logger
}

func New(log *slog.Logger, store ItemStore, queue Queue, settings Settings, playlists PlaylistParser, notifier Notifier, fs afero.Fs) *Controller {
	return &Controller{
		store:     store,
		queue:     queue,
		settings:  settings,
		playlists: playlists,
		notifier:  notifier,
		fs:        fs,
		log:       log.With(slog.String("service", "controller")),
	}
}

// AddItem persists an item without queueing it
func (c *Controller) AddItem(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	if err := prepare(item); err != nil {
		return nil, err
	}

	created, err := c.store.Create(ctx, item)
	if err != nil {
		return nil, storeError("create item", err)
	}

	c.log.Info("item added", slog.Int64("id", created.ID), slog.String("name", created.Name))
	c.notifier.Emit(model.EventItemAdded, created)
	return created, nil
}

// AddItems persists several items at once; nothing is saved if one is invalid
func (c *Controller) AddItems(ctx context.Context, items []*model.DownloadItem) ([]*model.DownloadItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", model.ErrInvalidInput)
	}
	for i, item := range items {
		if err := prepare(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	created, err := c.store.BulkCreate(ctx, items)
	if err != nil {
		return nil, storeError("create items", err)
	}

	c.log.Info("items added", slog.Int("count", len(created)))
	c.notifier.Emit(model.EventItemAdded, created)
	return created, nil
}

// EditItem changes name, url, headers and type. Status is left alone.
func (c *Controller) EditItem(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	if item == nil || item.ID <= 0 {
		return nil, fmt.Errorf("%w: item id is required", model.ErrInvalidInput)
	}
	if err := prepare(item); err != nil {
		return nil, err
	}

	updated, err := c.store.Update(ctx, item)
	if err != nil {
		return nil, storeError("update item", err)
	}
	return updated, nil
}

// DownloadNow persists the item and queues it right away
func (c *Controller) DownloadNow(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	created, err := c.AddItem(ctx, item)
	if err != nil {
		return nil, err
	}

	if err := c.queue.Enqueue(ctx, created.ID); err != nil {
		return nil, fmt.Errorf("cannot queue item %d: %w", created.ID, err)
	}

	current, err := c.store.FindByID(ctx, created.ID)
	if err != nil {
		return nil, storeError("find item", err)
	}
	return current, nil
}

// ListItems returns one page of items. Finished rows carry whether the
// output file is still present in the download directory.
func (c *Controller) ListItems(ctx context.Context, p model.Pagination) (*ItemList, error) {
	page, err := c.store.FindPage(ctx, p)
	if err != nil {
		return nil, storeError("find items", err)
	}

	local := c.settings.GetDownloadDirectory()
	out := &ItemList{Total: page.Total, List: make([]*ItemView, 0, len(page.List))}
	for _, item := range page.List {
		view := &ItemView{DownloadItem: item}
		if item.Status == model.StatusSuccess {
			exist := platform.FileExists(c.fs, platform.OutputPath(local, item.Name))
			view.Exist = &exist
		}
		out.List = append(out.List, view)
	}
	return out, nil
}

// StartDownload queues a stored item
func (c *Controller) StartDownload(ctx context.Context, id int64) error {
	return c.queue.Enqueue(ctx, id)
}

// StopDownload cancels a queued or running item
func (c *Controller) StopDownload(ctx context.Context, id int64) error {
	return c.queue.Stop(ctx, id)
}

// DeleteItem removes an item that is not queued or running
func (c *Controller) DeleteItem(ctx context.Context, id int64) (bool, error) {
	return c.queue.Delete(ctx, id)
}

// ImportPlaylist stores every video of a playlist and optionally queues them
func (c *Controller) ImportPlaylist(ctx context.Context, url string, enqueue bool) ([]*model.DownloadItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: playlist url is required", model.ErrInvalidInput)
	}

	items, err := c.playlists.Parse(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("cannot read playlist: %w", err)
	}

	created, err := c.AddItems(ctx, items)
	if err != nil {
		return nil, err
	}

	if enqueue {
		for _, item := range created {
			if err := c.queue.Enqueue(ctx, item.ID); err != nil {
				return created, fmt.Errorf("cannot queue item %d: %w", item.ID, err)
			}
		}
	}

	c.log.Info("playlist imported", slog.String("url", url), slog.Int("count", len(created)), slog.Bool("enqueued", enqueue))
	return created, nil
}

// SetMaxRunner stores the concurrency cap and applies it. It returns the
// value actually used after clamping.
func (c *Controller) SetMaxRunner(ctx context.Context, n int) (int, error) {
	n = c.settings.SetMaxParallelDownloads(n)
	if err := c.queue.SetMaxParallel(ctx, n); err != nil {
		return 0, err
	}
	return n, nil
}

// Tasks returns the live tasks
func (c *Controller) Tasks(ctx context.Context) ([]model.TaskState, error) {
	return c.queue.Tasks(ctx)
}

func prepare(item *model.DownloadItem) error {
	if item == nil {
		return fmt.Errorf("%w: item is required", model.ErrInvalidInput)
	}
	item.Normalize()
	return item.Validate()
}

func storeError(op string, err error) error {
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrStoreFailure) {
		return err
	}
	return model.StoreError(op, err)
}
