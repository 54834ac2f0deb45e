package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ytget/stream-downloader/internal/model"
)

const (
	createTableQuery = `
    CREATE TABLE IF NOT EXISTS download_items (
        id BIGSERIAL PRIMARY KEY,
        name TEXT NOT NULL,
        url TEXT NOT NULL,
        headers TEXT NOT NULL DEFAULT '{}',
        type TEXT NOT NULL,
        status TEXT NOT NULL,
        created_at TIMESTAMPTZ NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );`
	createIndexQuery = `CREATE INDEX IF NOT EXISTS download_items_status_idx ON download_items (status);`

	selectColumns = "id, name, url, headers, type, status, created_at, updated_at"
	insertQuery   = "INSERT INTO download_items (name, url, headers, type, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id"
)

// Postgres keeps one row per download item
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres opens the database and makes sure the schema exists
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	p, err := NewPostgresWithDB(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithDB wraps an already opened connection pool
func NewPostgresWithDB(db *sql.DB) (*Postgres, error) {
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create download_items table: %w", err)
	}
	if _, err := db.Exec(createIndexQuery); err != nil {
		return nil, fmt.Errorf("failed to create status index: %w", err)
	}
	return &Postgres{db: db, now: time.Now}, nil
}

func (r *Postgres) Close() error {
	return r.db.Close()
}

func (r *Postgres) Create(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	row := clone(item)
	if err := r.insert(ctx, r.db, row); err != nil {
		return nil, err
	}
	return row, nil
}

// BulkCreate inserts all items in one transaction; either all rows get ids or none.
func (r *Postgres) BulkCreate(ctx context.Context, items []*model.DownloadItem) (out []*model.DownloadItem, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	out = make([]*model.DownloadItem, 0, len(items))
	for _, item := range items {
		row := clone(item)
		if err = r.insert(ctx, tx, row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return out, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *Postgres) insert(ctx context.Context, q queryRower, row *model.DownloadItem) error {
	headers, err := encodeHeaders(row.Headers)
	if err != nil {
		return err
	}

	now := r.now()
	row.Status = model.StatusPending
	row.CreatedAt = now
	row.UpdatedAt = now

	err = q.QueryRowContext(ctx, insertQuery,
		row.Name, row.URL, headers, row.Type, row.Status, now, now,
	).Scan(&row.ID)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Update overwrites the editable fields; status is owned by UpdateStatus.
func (r *Postgres) Update(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	headers, err := encodeHeaders(item.Headers)
	if err != nil {
		return nil, err
	}

	row := clone(item)
	row.UpdatedAt = r.now()

	err = r.db.QueryRowContext(ctx,
		"UPDATE download_items SET name = $1, url = $2, headers = $3, type = $4, updated_at = $5 WHERE id = $6 RETURNING status, created_at",
		row.Name, row.URL, headers, row.Type, row.UpdatedAt, row.ID,
	).Scan(&row.Status, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update: %w", err)
	}
	return row, nil
}

func (r *Postgres) FindByID(ctx context.Context, id int64) (*model.DownloadItem, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM download_items WHERE id = $1", id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (r *Postgres) FindPage(ctx context.Context, p model.Pagination) (*model.ItemPage, error) {
	p = p.Normalize()

	where := ""
	args := []any{}
	switch p.Filter {
	case model.FilterDone:
		where, args = " WHERE status = $1", append(args, model.StatusSuccess)
	case model.FilterList:
		where, args = " WHERE status <> $1", append(args, model.StatusSuccess)
	}

	page := &model.ItemPage{List: []*model.DownloadItem{}}
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM download_items"+where, args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM download_items%s ORDER BY id DESC LIMIT $%d OFFSET $%d", selectColumns, where, n+1, n+2)
	rows, err := r.db.QueryContext(ctx, query, append(args, p.PageSize, p.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		page.List = append(page.List, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// FindByStatus returns matching rows ordered by id ascending
func (r *Postgres) FindByStatus(ctx context.Context, statuses ...model.DownloadStatus) ([]*model.DownloadItem, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM download_items WHERE status = ANY($1) ORDER BY id",
		pq.Array(names),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*model.DownloadItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *Postgres) UpdateStatus(ctx context.Context, id int64, status model.DownloadStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE download_items SET status = $1, updated_at = $2 WHERE id = $3",
		status, r.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *Postgres) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM download_items WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete: %w", err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*model.DownloadItem, error) {
	var (
		item    model.DownloadItem
		headers string
	)
	if err := s.Scan(&item.ID, &item.Name, &item.URL, &headers, &item.Type, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if headers != "" {
		if err := json.Unmarshal([]byte(headers), &item.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode headers of item %d: %w", item.ID, err)
		}
	}
	return &item, nil
}

func encodeHeaders(h map[string]string) (string, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode headers: %w", err)
	}
	return string(b), nil
}
