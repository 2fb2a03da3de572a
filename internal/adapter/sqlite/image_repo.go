package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/vertextoedge/picture-cache/internal/domain"
)

// Timestamps are stored as unix nanoseconds so LRU ordering is exact.
const imageColumns = `key, source_url, content_type, size, cache_path, root, tier, created_at, last_accessed_at`

// Upsert inserts or replaces a disk cache entry
func (s *Store) Upsert(img *domain.CachedImage) error {
	now := time.Now()
	if img.CreatedAt.IsZero() {
		img.CreatedAt = now
	}
	if img.LastAccessedAt.IsZero() {
		img.LastAccessedAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO images (`+imageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(root, key) DO UPDATE SET
			source_url = excluded.source_url,
			content_type = excluded.content_type,
			size = excluded.size,
			cache_path = excluded.cache_path,
			tier = excluded.tier,
			last_accessed_at = excluded.last_accessed_at`,
		img.Key, img.SourceURL, img.ContentType, img.Size, img.CachePath,
		filepath.Clean(img.Root), img.Tier.String(), img.CreatedAt.UnixNano(), img.LastAccessedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert image %s: %w", img.Key, err)
	}
	return nil
}

// Get returns the entry for key on root, or nil if absent
func (s *Store) Get(root, key string) (*domain.CachedImage, error) {
	row := s.db.QueryRow(`SELECT `+imageColumns+` FROM images WHERE root = ? AND key = ?`, filepath.Clean(root), key)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image %s: %w", key, err)
	}
	return img, nil
}

// Touch updates the last access time of an entry
func (s *Store) Touch(root, key string) error {
	_, err := s.db.Exec(`UPDATE images SET last_accessed_at = ? WHERE root = ? AND key = ?`,
		time.Now().UnixNano(), filepath.Clean(root), key)
	return err
}

// Delete removes an entry
func (s *Store) Delete(root, key string) error {
	_, err := s.db.Exec(`DELETE FROM images WHERE root = ? AND key = ?`, filepath.Clean(root), key)
	return err
}

// TotalSize returns the summed size of entries on a root
func (s *Store) TotalSize(root string) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(`SELECT SUM(size) FROM images WHERE root = ?`, filepath.Clean(root)).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Int64, nil
}

// Count returns the number of entries on a root
func (s *Store) Count(root string) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM images WHERE root = ?`, filepath.Clean(root)).Scan(&n)
	return n, err
}

// EvictionCandidates returns the least recently accessed entries on a root
func (s *Store) EvictionCandidates(root string, limit int) ([]*domain.CachedImage, error) {
	rows, err := s.db.Query(`SELECT `+imageColumns+` FROM images
		WHERE root = ?
		ORDER BY last_accessed_at ASC, created_at ASC
		LIMIT ?`, filepath.Clean(root), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query eviction candidates: %w", err)
	}
	defer rows.Close()

	var images []*domain.CachedImage
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteByRoot removes all entries on a root
func (s *Store) DeleteByRoot(root string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM images WHERE root = ?`, filepath.Clean(root))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*domain.CachedImage, error) {
	var (
		img                domain.CachedImage
		tier               string
		created, lastTouch int64
	)
	if err := row.Scan(&img.Key, &img.SourceURL, &img.ContentType, &img.Size, &img.CachePath,
		&img.Root, &tier, &created, &lastTouch); err != nil {
		return nil, err
	}
	if tier == domain.TierExternal.String() {
		img.Tier = domain.TierExternal
	}
	img.CreatedAt = time.Unix(0, created)
	img.LastAccessedAt = time.Unix(0, lastTouch)
	return &img, nil
}
