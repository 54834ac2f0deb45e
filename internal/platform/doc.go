package platform

// Package platform contains OS/platform integration and external tooling glue:
// filesystem helpers for worker artifacts and playlist listing via the ytdlp library.
