package controller

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ytget/stream-downloader/internal/model"
)

// IPC command names
const (
	CmdAddItem        = "add-download-item"
	CmdAddItems       = "add-download-items"
	CmdEditItem       = "edit-download-item"
	CmdDownloadNow    = "download-now"
	CmdGetItems       = "get-download-items"
	CmdStartDownload  = "start-download"
	CmdStopDownload   = "stop-download"
	CmdDeleteItem     = "delete-download-item"
	CmdImportPlaylist = "import-playlist"
	CmdSetMaxRunner   = "set-max-runner"
	CmdGetTasks       = "get-tasks"
)

// HandlerFunc serves one IPC command
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// ImportRequest are the parameters of import-playlist
type ImportRequest struct {
	URL     string `json:"url"`
	Enqueue bool   `json:"enqueue"`
}

// Handlers returns the command table
func (c *Controller) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		CmdAddItem: func(ctx context.Context, params json.RawMessage) (any, error) {
			item, err := decode[model.DownloadItem](params)
			if err != nil {
				return nil, err
			}
			return c.AddItem(ctx, &item)
		},
		CmdAddItems: func(ctx context.Context, params json.RawMessage) (any, error) {
			items, err := decode[[]*model.DownloadItem](params)
			if err != nil {
				return nil, err
			}
			return c.AddItems(ctx, items)
		},
		CmdEditItem: func(ctx context.Context, params json.RawMessage) (any, error) {
			item, err := decode[model.DownloadItem](params)
			if err != nil {
				return nil, err
			}
			return c.EditItem(ctx, &item)
		},
		CmdDownloadNow: func(ctx context.Context, params json.RawMessage) (any, error) {
			item, err := decode[model.DownloadItem](params)
			if err != nil {
				return nil, err
			}
			return c.DownloadNow(ctx, &item)
		},
		CmdGetItems: func(ctx context.Context, params json.RawMessage) (any, error) {
			var p model.Pagination
			if len(params) > 0 {
				var err error
				if p, err = decode[model.Pagination](params); err != nil {
					return nil, err
				}
			}
			return c.ListItems(ctx, p)
		},
		CmdStartDownload: func(ctx context.Context, params json.RawMessage) (any, error) {
			id, err := decode[int64](params)
			if err != nil {
				return nil, err
			}
			return nil, c.StartDownload(ctx, id)
		},
		CmdStopDownload: func(ctx context.Context, params json.RawMessage) (any, error) {
			id, err := decode[int64](params)
			if err != nil {
				return nil, err
			}
			return nil, c.StopDownload(ctx, id)
		},
		CmdDeleteItem: func(ctx context.Context, params json.RawMessage) (any, error) {
			id, err := decode[int64](params)
			if err != nil {
				return nil, err
			}
			return c.DeleteItem(ctx, id)
		},
		CmdImportPlaylist: func(ctx context.Context, params json.RawMessage) (any, error) {
			req, err := decode[ImportRequest](params)
			if err != nil {
				return nil, err
			}
			return c.ImportPlaylist(ctx, req.URL, req.Enqueue)
		},
		CmdSetMaxRunner: func(ctx context.Context, params json.RawMessage) (any, error) {
			n, err := decode[int](params)
			if err != nil {
				return nil, err
			}
			return c.SetMaxRunner(ctx, n)
		},
		CmdGetTasks: func(ctx context.Context, _ json.RawMessage) (any, error) {
			return c.Tasks(ctx)
		},
	}
}

func decode[T any](params json.RawMessage) (T, error) {
	var v T
	if len(params) == 0 {
		return v, fmt.Errorf("%w: missing parameters", model.ErrInvalidInput)
	}
	if err := json.Unmarshal(params, &v); err != nil {
		return v, fmt.Errorf("%w: %w", model.ErrInvalidInput, err)
	}
	return v, nil
}
