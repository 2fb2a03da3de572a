package port

import (
	"github.com/vertextoedge/picture-cache/internal/domain"
)

// ImageRepository indexes disk cache entries. Entries are keyed by cache
// root and key, so the same image cached on two tiers has two rows.
type ImageRepository interface {
	// Upsert inserts or replaces an entry
	Upsert(img *domain.CachedImage) error

	// Get returns the entry for key on root, or nil if absent
	Get(root, key string) (*domain.CachedImage, error)

	// Touch updates the last access time of an entry
	Touch(root, key string) error

	// Delete removes an entry
	Delete(root, key string) error

	// TotalSize returns the summed size of entries on a root
	TotalSize(root string) (int64, error)

	// Count returns the number of entries on a root
	Count(root string) (int64, error)

	// EvictionCandidates returns the least recently accessed entries on a root
	EvictionCandidates(root string, limit int) ([]*domain.CachedImage, error)

	// DeleteByRoot removes all entries on a root
	DeleteByRoot(root string) (int64, error)
}

// Store is the persistent index
type Store interface {
	ImageRepository

	// Ping checks database connectivity
	Ping() error

	// Close closes the database
	Close() error
}
