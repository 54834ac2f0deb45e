package store

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ytget/stream-downloader/internal/model"
)

// Memory is a process-local record store used when no database is configured
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]*model.DownloadItem
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[int64]*model.DownloadItem),
		now:   time.Now,
	}
}

func (m *Memory) Create(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.create(item), nil
}

func (m *Memory) BulkCreate(ctx context.Context, items []*model.DownloadItem) ([]*model.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.DownloadItem, 0, len(items))
	for _, item := range items {
		out = append(out, m.create(item))
	}
	return out, nil
}

func (m *Memory) create(item *model.DownloadItem) *model.DownloadItem {
	m.nextID++
	now := m.now()

	row := clone(item)
	row.ID = m.nextID
	row.Status = model.StatusPending
	row.CreatedAt = now
	row.UpdatedAt = now
	m.items[row.ID] = row

	return clone(row)
}

// Update overwrites the editable fields; status is owned by UpdateStatus.
func (m *Memory) Update(ctx context.Context, item *model.DownloadItem) (*model.DownloadItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.items[item.ID]
	if !ok {
		return nil, model.ErrNotFound
	}

	row.Name = item.Name
	row.URL = item.URL
	row.Headers = maps.Clone(item.Headers)
	row.Type = item.Type
	row.UpdatedAt = m.now()

	return clone(row), nil
}

func (m *Memory) FindByID(ctx context.Context, id int64) (*model.DownloadItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.items[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return clone(row), nil
}

func (m *Memory) FindPage(ctx context.Context, p model.Pagination) (*model.ItemPage, error) {
	p = p.Normalize()

	m.mu.RLock()
	matched := make([]*model.DownloadItem, 0, len(m.items))
	for _, row := range m.items {
		if p.Matches(row.Status) {
			matched = append(matched, clone(row))
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page := &model.ItemPage{Total: int64(len(matched)), List: []*model.DownloadItem{}}
	if off := p.Offset(); off >= 0 && off < len(matched) {
		end := min(off+p.PageSize, len(matched))
		page.List = matched[off:end]
	}
	return page, nil
}

// FindByStatus returns matching rows ordered by id ascending
func (m *Memory) FindByStatus(ctx context.Context, statuses ...model.DownloadStatus) ([]*model.DownloadItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.DownloadItem
	for _, row := range m.items {
		for _, s := range statuses {
			if row.Status == s {
				out = append(out, clone(row))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateStatus(ctx context.Context, id int64, status model.DownloadStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.items[id]
	if !ok {
		return model.ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Delete(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return false, nil
	}
	delete(m.items, id)
	return true, nil
}

func clone(item *model.DownloadItem) *model.DownloadItem {
	c := *item
	c.Headers = maps.Clone(item.Headers)
	return &c
}
