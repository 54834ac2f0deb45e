package model

import (
	"math"
	"strings"
	"time"
)

// VideoType selects the worker backend for an item
type VideoType string

const (
	// VideoTypeM3U8 is an HLS playlist fetched by the external segment downloader
	VideoTypeM3U8 VideoType = "m3u8"

	// VideoTypeYTDLP is any page yt-dlp can extract
	VideoTypeYTDLP VideoType = "ytdlp"
)

// Output container written by every worker backend
const OutputExtension = ".mp4"

// Pagination filters
const (
	FilterAll  = ""
	FilterList = "list"
	FilterDone = "done"

	DefaultPageSize = 50
	MaxPageSize     = 500

	// MaxPage keeps Offset within int for any page size
	MaxPage = math.MaxInt / MaxPageSize
)

// DownloadItem is the persisted record of a single download
type DownloadItem struct {
	ID        int64             `json:"id"`
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Type      VideoType         `json:"type"`
	Status    DownloadStatus    `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Validate checks the fields a caller must provide
func (i *DownloadItem) Validate() error {
	if i == nil || strings.TrimSpace(i.URL) == "" || strings.TrimSpace(i.Name) == "" {
		return ErrInvalidInput
	}
	switch i.Type {
	case "", VideoTypeM3U8, VideoTypeYTDLP:
	default:
		return ErrInvalidInput
	}
	return nil
}

// Normalize fills defaults for a freshly created record
func (i *DownloadItem) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.URL = strings.TrimSpace(i.URL)
	if i.Type == "" {
		i.Type = VideoTypeM3U8
	}
	i.Status = StatusPending
}

// Pagination is the page query for listing items
type Pagination struct {
	Current  int    `json:"current"`
	PageSize int    `json:"pageSize"`
	Filter   string `json:"filter,omitempty"`
}

// Normalize clamps page number and size to sane values
func (p Pagination) Normalize() Pagination {
	if p.Current < 1 {
		p.Current = 1
	}
	if p.Current > MaxPage {
		p.Current = MaxPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the number of rows to skip
func (p Pagination) Offset() int {
	return (p.Current - 1) * p.PageSize
}

// Matches reports whether an item with the given status passes the filter
func (p Pagination) Matches(status DownloadStatus) bool {
	switch p.Filter {
	case FilterDone:
		return status == StatusSuccess
	case FilterList:
		return status != StatusSuccess
	}
	return true
}

// ItemPage is one page of items plus the total number of matching rows
type ItemPage struct {
	Total int64           `json:"total"`
	List  []*DownloadItem `json:"list"`
}
