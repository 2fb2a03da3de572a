package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/picture-cache/internal/port"
)

const tempSuffix = ".downloading"

// Manager handles cache file operations under one root directory
type Manager struct {
	rootDir    string
	bufferSize int
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager
func NewManager(rootDir string) (*Manager, error) {
	return NewManagerWithBufferSize(rootDir, 64*1024)
}

// NewManagerWithBufferSize creates a new filesystem manager with custom buffer size
func NewManagerWithBufferSize(rootDir string, bufferSize int) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache root dir: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 64 * 1024
	}

	return &Manager{
		rootDir:    rootDir,
		bufferSize: bufferSize,
	}, nil
}

// RootDir returns the cache root directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// CachePath returns the local path for a key. Keys are sharded by their
// first two characters to keep directories small and to keep cache files
// apart from anything else stored in the root.
func (m *Manager) CachePath(key string) string {
	return filepath.Join(m.rootDir, shard(key), key)
}

func shard(key string) string {
	if len(key) > 2 {
		return key[:2]
	}
	return key
}

// WriteFile writes content through a temp file and renames it into place
func (m *Manager) WriteFile(key string, reader io.Reader) (string, int64, error) {
	cachePath := m.CachePath(key)

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create parent dir: %w", err)
	}

	tempPath := cachePath + tempSuffix
	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	buf := make([]byte, m.bufferSize)
	written, err := io.CopyBuffer(f, reader, buf)
	if err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, cachePath); err != nil {
		os.Remove(tempPath)
		return "", 0, fmt.Errorf("failed to rename temp file: %w", err)
	}

	return cachePath, written, nil
}

// ReadFile returns the content of a cached file
func (m *Manager) ReadFile(cachePath string) ([]byte, error) {
	return os.ReadFile(cachePath)
}

// DeleteFile removes a cached file
func (m *Manager) DeleteFile(cachePath string) error {
	if err := os.Remove(cachePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetCacheSize returns total size of cached files, temp files excluded
func (m *Manager) GetCacheSize() (int64, error) {
	var size int64
	err := m.walkCached(func(_ string, info os.FileInfo) {
		size += info.Size()
	})
	return size, err
}

// Keys returns the keys of all cached files under the root
func (m *Manager) Keys() ([]string, error) {
	var keys []string
	err := m.walkCached(func(key string, _ os.FileInfo) {
		keys = append(keys, key)
	})
	return keys, err
}

// walkCached calls fn for every file laid out by CachePath. Other files in
// the root, such as an index database, are skipped.
func (m *Manager) walkCached(fn func(key string, info os.FileInfo)) error {
	return filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, tempSuffix) {
			return nil
		}
		key := info.Name()
		if path == m.CachePath(key) {
			fn(key, info)
		}
		return nil
	})
}

// CleanOldTempFiles removes temp files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, tempSuffix) && info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}
