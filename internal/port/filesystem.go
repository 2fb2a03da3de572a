package port

import (
	"io"
	"time"
)

// FileSystem defines the interface for cache file operations on one root
type FileSystem interface {
	// RootDir returns the cache root directory
	RootDir() string

	// CachePath returns the local path for a cache key
	CachePath(key string) string

	// WriteFile atomically writes content for key
	// Returns: cache path, bytes written, error
	WriteFile(key string, reader io.Reader) (string, int64, error)

	// ReadFile returns the content stored at cachePath
	ReadFile(cachePath string) ([]byte, error)

	// DeleteFile removes a cached file
	DeleteFile(cachePath string) error

	// GetCacheSize returns total size of cached files
	GetCacheSize() (int64, error)

	// Keys returns the keys of all cached files
	Keys() ([]string, error)

	// CleanOldTempFiles removes temp files older than the specified duration
	// Returns the number of files deleted
	CleanOldTempFiles(olderThan time.Duration) (int, error)
}
