package sqlite

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertextoedge/picture-cache/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_UpsertGet(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Ping())

	got, err := store.Get("/cache", "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	img := &domain.CachedImage{
		Key:         "k1",
		SourceURL:   "https://example.com/a.png",
		ContentType: "image/png",
		Size:        100,
		CachePath:   "/cache/k1/k1",
		Root:        "/cache/",
		Tier:        domain.TierExternal,
	}
	require.NoError(t, store.Upsert(img))

	got, err = store.Get("/cache", "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "https://example.com/a.png", got.SourceURL)
	assert.Equal(t, domain.TierExternal, got.Tier)
	assert.Equal(t, "/cache", got.Root)
	assert.Equal(t, img.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())

	img.Size = 150
	require.NoError(t, store.Upsert(img))
	total, err := store.TotalSize("/cache")
	require.NoError(t, err)
	assert.Equal(t, int64(150), total)

	n, err := store.Count("/cache")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.Delete("/cache", "k1"))
	got, err = store.Get("/cache", "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_EvictionCandidatesOrderedByAccess(t *testing.T) {
	store := openTestStore(t)
	base := time.Now().Add(-time.Hour)

	for i, key := range []string{"a", "b", "c"} {
		require.NoError(t, store.Upsert(&domain.CachedImage{
			Key:            key,
			SourceURL:      "u-" + key,
			Size:           10,
			CachePath:      "/root/" + key,
			Root:           "/root",
			LastAccessedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Upsert(&domain.CachedImage{
		Key: "other", SourceURL: "u", Size: 10, CachePath: "/elsewhere/other", Root: "/elsewhere",
		LastAccessedAt: base.Add(-time.Hour),
	}))

	require.NoError(t, store.Touch("/root", "a"))

	candidates, err := store.EvictionCandidates("/root", 2)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "b", candidates[0].Key)
	assert.Equal(t, "c", candidates[1].Key)

	deleted, err := store.DeleteByRoot("/root")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	total, err := store.TotalSize("/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestStore_SameKeyOnTwoRoots(t *testing.T) {
	store := openTestStore(t)

	for _, root := range []string{"/ext", "/int"} {
		require.NoError(t, store.Upsert(&domain.CachedImage{
			Key: "k1", SourceURL: "u", Size: 10, CachePath: root + "/k1/k1", Root: root,
		}))
	}

	for _, root := range []string{"/ext", "/int"} {
		got, err := store.Get(root, "k1")
		require.NoError(t, err)
		require.NotNil(t, got, root)
		assert.Equal(t, root+"/k1/k1", got.CachePath)
	}

	require.NoError(t, store.Delete("/int", "k1"))
	got, err := store.Get("/ext", "k1")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStore_DropsVersionOneSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE images (key TEXT PRIMARY KEY, source_url TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO images (key, source_url) VALUES ('old', 'u')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := Open(path)
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count("/any")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Upsert(&domain.CachedImage{Key: "k", SourceURL: "u", CachePath: "/r/k", Root: "/r"}))
	got, err := store.Get("/r", "k")
	require.NoError(t, err)
	assert.NotNil(t, got)
}
