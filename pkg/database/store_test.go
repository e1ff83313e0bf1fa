package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "socialcache/pkg/errors"
	"socialcache/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "db", "cache.db"), logger.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestQueueAndCommit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.QueueImage(Image{Network: "onedrive", AccountID: 1, Identifier: "a", ImageType: ImageTypeThumbnail, RemoteURL: "https://x/a", FilePath: "/c/a.jpg"})
	store.QueueImage(Image{Network: "onedrive", AccountID: 1, Identifier: "b", ImageType: ImageTypeThumbnail, RemoteURL: "https://x/b", FilePath: "/c/b.jpg"})
	assert.Equal(t, 2, store.Pending())

	images, err := store.ListImages(ctx, "onedrive")
	require.NoError(t, err)
	assert.Empty(t, images, "queued records are not visible before commit")

	require.NoError(t, store.Commit(ctx))
	assert.Equal(t, 0, store.Pending())

	images, err = store.ListImages(ctx, "onedrive")
	require.NoError(t, err)
	assert.Len(t, images, 2)

	img, err := store.Lookup(ctx, "onedrive", "a", ImageTypeThumbnail)
	require.NoError(t, err)
	assert.Equal(t, "/c/a.jpg", img.FilePath)
	assert.False(t, img.CachedAt.IsZero())
}

func TestCommitUpserts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	store.QueueImage(Image{Network: "facebook", Identifier: "p1", ImageType: ImageTypeFull, RemoteURL: "https://x/old", FilePath: "/c/old.jpg"})
	require.NoError(t, store.Commit(ctx))

	store.QueueImage(Image{Network: "facebook", Identifier: "p1", ImageType: ImageTypeFull, RemoteURL: "https://x/new", FilePath: "/c/new.jpg"})
	store.QueueImage(Image{Network: "facebook", Identifier: "p1", ImageType: ImageTypeFull, RemoteURL: "https://x/newest", FilePath: "/c/newest.jpg"})
	require.NoError(t, store.Commit(ctx))

	images, err := store.ListImages(ctx, "")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "/c/newest.jpg", images[0].FilePath)
	assert.Equal(t, "https://x/newest", images[0].RemoteURL)
}

func TestCommitEmptyIsNoop(t *testing.T) {
	store := openTestStore(t)
	assert.NoError(t, store.Commit(context.Background()))
}

func TestCommitFailureKeepsRecords(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), logger.NewNopLogger())
	require.NoError(t, err)

	store.QueueImage(Image{Network: "dropbox", Identifier: "x", ImageType: ImageTypeFull, RemoteURL: "u", FilePath: "p"})
	require.NoError(t, store.Close())

	err = store.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeStore))
	assert.Equal(t, 1, store.Pending())
}

func TestLookupNotFound(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Lookup(context.Background(), "dropbox", "missing", ImageTypeFull)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListImagesNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store.QueueImage(Image{Network: "dropbox", Identifier: "old", ImageType: ImageTypeFull, RemoteURL: "u1", FilePath: "p1", CachedAt: base})
	store.QueueImage(Image{Network: "dropbox", Identifier: "new", ImageType: ImageTypeFull, RemoteURL: "u2", FilePath: "p2", CachedAt: base.Add(time.Hour)})
	store.QueueImage(Image{Network: "facebook", Identifier: "other", ImageType: ImageTypeFull, RemoteURL: "u3", FilePath: "p3"})
	require.NoError(t, store.Commit(ctx))

	images, err := store.ListImages(ctx, "dropbox")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "new", images[0].Identifier)
	assert.Equal(t, "old", images[1].Identifier)
}

func TestDedupe(t *testing.T) {
	rows := dedupe([]Image{
		{Network: "n", Identifier: "a", ImageType: "full", FilePath: "1"},
		{Network: "n", Identifier: "b", ImageType: "full", FilePath: "2"},
		{Network: "n", Identifier: "a", ImageType: "full", FilePath: "3"},
		{Network: "n", Identifier: "a", ImageType: "thumbnail", FilePath: "4"},
	})
	require.Len(t, rows, 3)
	assert.Equal(t, "3", rows[0].FilePath)
	assert.Equal(t, "2", rows[1].FilePath)
	assert.Equal(t, "4", rows[2].FilePath)
}
