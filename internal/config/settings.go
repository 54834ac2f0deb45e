package config

import (
	"fyne.io/fyne/v2"

	"github.com/ytget/stream-downloader/internal/platform"
)

// Settings keys for Fyne preferences
const (
	KeyLocal          = "local"
	KeyDeleteSegments = "deleteSegments"
	KeyMaxRunner      = "maxRunner"
	KeyPromptTone     = "promptTone"
	KeyProxy          = "proxy"
	KeyUseProxy       = "useProxy"
)

// Default values
const (
	DefaultMaxRunner      = 2
	MinMaxRunner          = 1
	MaxMaxRunner          = 10
	DefaultDeleteSegments = true
	DefaultPromptTone     = true
	DefaultUseProxy       = false
	FallbackDownloadDir   = "/tmp/downloads"
)

// Settings manages user preferences read by the download engine
type Settings struct {
	app fyne.App
}

// NewSettings creates a new settings manager
func NewSettings(app fyne.App) *Settings {
	return &Settings{app: app}
}

// GetDownloadDirectory returns the configured download directory
func (s *Settings) GetDownloadDirectory() string {
	dir := s.app.Preferences().String(KeyLocal)
	if dir == "" {
		defaultDir, err := platform.GetHomeDownloadsDir()
		if err != nil {
			defaultDir = FallbackDownloadDir
		}
		s.SetDownloadDirectory(defaultDir)
		return defaultDir
	}
	return dir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.app.Preferences().SetString(KeyLocal, dir)
}

// GetDeleteSegments returns whether segment files are removed after a successful mux
func (s *Settings) GetDeleteSegments() bool {
	return s.app.Preferences().BoolWithFallback(KeyDeleteSegments, DefaultDeleteSegments)
}

// SetDeleteSegments sets the segment cleanup preference
func (s *Settings) SetDeleteSegments(del bool) {
	s.app.Preferences().SetBool(KeyDeleteSegments, del)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	value := s.app.Preferences().Int(KeyMaxRunner)
	if value <= 0 {
		s.SetMaxParallelDownloads(DefaultMaxRunner)
		return DefaultMaxRunner
	}
	return value
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) int {
	count = ClampMaxRunner(count)
	s.app.Preferences().SetInt(KeyMaxRunner, count)
	return count
}

// GetPromptTone returns whether a desktop notification is shown when a download ends
func (s *Settings) GetPromptTone() bool {
	return s.app.Preferences().BoolWithFallback(KeyPromptTone, DefaultPromptTone)
}

// SetPromptTone sets the desktop notification preference
func (s *Settings) SetPromptTone(on bool) {
	s.app.Preferences().SetBool(KeyPromptTone, on)
}

// GetProxy returns the proxy handed to workers, empty when the proxy is disabled
func (s *Settings) GetProxy() string {
	if !s.app.Preferences().BoolWithFallback(KeyUseProxy, DefaultUseProxy) {
		return ""
	}
	return s.app.Preferences().String(KeyProxy)
}

// SetProxy stores the proxy address and whether it is used
func (s *Settings) SetProxy(proxy string, use bool) {
	s.app.Preferences().SetString(KeyProxy, proxy)
	s.app.Preferences().SetBool(KeyUseProxy, use)
}

// ClampMaxRunner bounds a concurrency cap to the supported range
func ClampMaxRunner(count int) int {
	if count < MinMaxRunner {
		return MinMaxRunner
	}
	if count > MaxMaxRunner {
		return MaxMaxRunner
	}
	return count
}
