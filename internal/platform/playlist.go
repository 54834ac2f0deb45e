package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/stream-downloader/internal/model"
)

// Timeout constants
const (
	DefaultParseTimeout = 60 * time.Second
)

// URL parameters and separators
const (
	PlaylistParam  = "list="
	ParamSeparator = "&"
)

// URL templates
const (
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Characters that cannot appear in an output file name
const (
	invalidNameChars = `/\:*?"<>|`
	nameReplacement  = "_"
	MaxNameLength    = 120
)

// PlaylistEntry is a single video listed in a playlist
type PlaylistEntry struct {
	VideoID string
	Title   string
}

// PlaylistParser turns a YouTube playlist URL into download items
type PlaylistParser struct {
	timeout time.Duration
	fetch   func(ctx context.Context, playlistID string) ([]PlaylistEntry, error)
}

// NewPlaylistParser creates a parser backed by the ytdlp library
func NewPlaylistParser() *PlaylistParser {
	return &PlaylistParser{
		timeout: DefaultParseTimeout,
		fetch:   fetchPlaylistItems,
	}
}

// SetTimeout sets the timeout for parsing operations
func (p *PlaylistParser) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// Parse lists the playlist and returns one ytdlp item per video, not yet persisted
func (p *PlaylistParser) Parse(ctx context.Context, url string) ([]*model.DownloadItem, error) {
	if !isValidPlaylistURL(url) {
		return nil, fmt.Errorf("%w: invalid playlist URL: %s", model.ErrInvalidInput, url)
	}

	playlistID := extractPlaylistID(url)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: could not extract playlist ID from URL: %s", model.ErrInvalidInput, url)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	entries, err := p.fetch(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	items := make([]*model.DownloadItem, 0, len(entries))
	for _, e := range entries {
		if e.VideoID == "" {
			continue
		}
		name := SanitizeFileName(e.Title)
		if name == "" {
			name = e.VideoID
		}
		items = append(items, &model.DownloadItem{
			Name: name,
			URL:  fmt.Sprintf(YouTubeVideoURLTemplate, e.VideoID),
			Type: model.VideoTypeYTDLP,
		})
	}

	return items, nil
}

// SanitizeFileName makes a title usable as an output file stem
func SanitizeFileName(title string) string {
	name := strings.Map(func(r rune) rune {
		if r < 0x20 {
			return -1
		}
		return r
	}, title)
	for _, c := range invalidNameChars {
		name = strings.ReplaceAll(name, string(c), nameReplacement)
	}
	name = strings.TrimSpace(name)
	if runes := []rune(name); len(runes) > MaxNameLength {
		name = strings.TrimSpace(string(runes[:MaxNameLength]))
	}
	return name
}

func fetchPlaylistItems(ctx context.Context, playlistID string) ([]PlaylistEntry, error) {
	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}

	entries := make([]PlaylistEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, PlaylistEntry{VideoID: it.VideoID, Title: it.Title})
	}
	return entries, nil
}

// isValidPlaylistURL checks if the URL carries a playlist parameter
func isValidPlaylistURL(url string) bool {
	return strings.Contains(url, PlaylistParam)
}

// extractPlaylistID extracts the playlist ID from various URL formats
func extractPlaylistID(url string) string {
	parts := strings.SplitN(url, PlaylistParam, 2)
	if len(parts) < 2 {
		return ""
	}
	playlistPart := parts[1]
	if i := strings.Index(playlistPart, ParamSeparator); i >= 0 {
		playlistPart = playlistPart[:i]
	}
	return playlistPart
}
