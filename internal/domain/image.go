package domain

import "time"

// CachedImage is an entry in the disk cache index.
type CachedImage struct {
	Key            string
	SourceURL      string
	ContentType    string
	Size           int64
	CachePath      string
	Root           string
	Tier           TierKind
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// Image is a loaded image payload.
type Image struct {
	SourceURL   string
	ContentType string
	Data        []byte
}

// Size returns the payload length in bytes.
func (i *Image) Size() int64 {
	return int64(len(i.Data))
}

// CacheStats contains disk cache statistics
type CacheStats struct {
	Entries          int64  `json:"entries"`
	TotalBytes       int64  `json:"total_bytes"`
	DiskBytes        int64  `json:"disk_bytes"`
	LimitBytes       int64  `json:"limit_bytes"`
	Tier             string `json:"tier"`
	RootPath         string `json:"root_path"`
	Enabled          bool   `json:"enabled"`
	Evictions        int64  `json:"evictions"`
	MemoryHits       uint64 `json:"memory_hits"`
	MemoryMisses     uint64 `json:"memory_misses"`
	MemoryBytes      int64  `json:"memory_bytes"`
	PendingDownloads int    `json:"pending_downloads"`
}
