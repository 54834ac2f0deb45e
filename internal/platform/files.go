package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"

	"github.com/ytget/stream-downloader/internal/model"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Naming of worker artifacts inside the download directory
const (
	SegmentDirSuffix   = ".segments"
	DownloadsDirName   = "Downloads"
	AndroidDownloadDir = "/sdcard/Download"
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(fs afero.Fs, dirPath string) error {
	exists, err := afero.DirExists(fs, dirPath)
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if exists {
		return nil
	}
	return fs.MkdirAll(dirPath, DefaultDirPermissions)
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	if runtime.GOOS == "android" || os.Getenv("ANDROID_DATA") != "" {
		return AndroidDownloadDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, DownloadsDirName), nil
}

// OutputPath returns where a finished item is expected on disk
func OutputPath(local, name string) string {
	return filepath.Join(local, name+model.OutputExtension)
}

// SegmentDir returns the scratch directory the worker keeps segments in
func SegmentDir(local, name string) string {
	return filepath.Join(local, name+SegmentDirSuffix)
}

// FileExists reports whether a regular file exists at path
func FileExists(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// RemoveSegments deletes the segment directory of a finished download.
// A missing directory is not an error.
func RemoveSegments(fs afero.Fs, dir string) error {
	if err := fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove segments %s: %w", dir, err)
	}
	return nil
}
