package providers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/database"
	errs "socialcache/pkg/errors"
	"socialcache/pkg/logger"
)

type memoryStore struct {
	mu      sync.Mutex
	queued  []database.Image
	commits int
	err     error
}

func (s *memoryStore) QueueImage(img database.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued = append(s.queued, img)
}

func (s *memoryStore) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return s.err
}

func TestFacebookPaths(t *testing.T) {
	fb := NewFacebook(cachepath.Resolver{Root: "/cache"}, &memoryStore{}, logger.NewNopLogger())
	md := downloader.Metadata{KeyIdentifier: "photo"}

	a := fb.ResolvePath("https://fb.example/a.jpg", md, "image/png")
	b := fb.ResolvePath("https://fb.example/b.jpg", md, "image/png")
	assert.NotEqual(t, a, b)
	assert.Equal(t, ".png", filepath.Ext(a))
	assert.True(t, strings.HasPrefix(a, filepath.Join("/cache", "Images", "facebook")))
	assert.Empty(t, fb.ResolvePath("https://fb.example/a.jpg", downloader.Metadata{}, ""))
}

func TestOneDrivePaths(t *testing.T) {
	od := NewOneDrive(cachepath.Resolver{Root: "/cache"}, &memoryStore{}, logger.NewNopLogger())

	thumb := od.ResolvePath("u", downloader.Metadata{KeyIdentifier: "img1", KeyType: "thumbnail"}, "image/png")
	full := od.ResolvePath("u", downloader.Metadata{KeyIdentifier: "img1", KeyType: "full"}, "")
	assert.Equal(t, "img1thumbnail.jpg", filepath.Base(thumb))
	assert.Equal(t, "img1full.jpg", filepath.Base(full))
	assert.Empty(t, od.ResolvePath("u", downloader.Metadata{KeyIdentifier: "img1"}, ""))
}

func TestDropboxPaths(t *testing.T) {
	dp := NewDropbox(cachepath.Resolver{Root: "/cache"}, &memoryStore{}, logger.NewNopLogger())
	md := downloader.Metadata{KeyIdentifier: "file"}

	assert.Equal(t, "file.png", filepath.Base(dp.ResolvePath("u", md, "image/png")))
	assert.Equal(t, "file.jpg", filepath.Base(dp.ResolvePath("u", md, "image/gif")))
	assert.Empty(t, dp.ResolvePath("u", downloader.Metadata{}, ""))
}

func TestRecordCompletion(t *testing.T) {
	store := &memoryStore{}
	od := NewOneDrive(cachepath.Resolver{Root: "/cache"}, store, logger.NewNopLogger())
	od.RecordCompletion("https://od/t", downloader.Metadata{KeyIdentifier: "a", KeyType: "thumbnail", KeyAccountID: "7"}, "/cache/a.jpg")
	od.RecordCompletion("https://od/f", downloader.Metadata{KeyIdentifier: "a", KeyType: "full"}, "/cache/af.jpg")

	require.Len(t, store.queued, 1, "OneDrive records thumbnails only")
	assert.Equal(t, database.Image{
		Network:    "onedrive",
		AccountID:  7,
		Identifier: "a",
		ImageType:  "thumbnail",
		RemoteURL:  "https://od/t",
		FilePath:   "/cache/a.jpg",
	}, store.queued[0])

	dp := NewDropbox(cachepath.Resolver{Root: "/cache"}, store, logger.NewNopLogger())
	dp.RecordCompletion("https://db/f", downloader.Metadata{KeyIdentifier: "b"}, "/cache/b.jpg")
	require.Len(t, store.queued, 2)
	assert.Equal(t, database.ImageTypeFull, store.queued[1].ImageType)

	log := logger.NewTestLogger()
	fb := NewFacebook(cachepath.Resolver{Root: "/cache"}, store, log)
	fb.RecordCompletion("https://fb/x", downloader.Metadata{}, "/cache/x.jpg")
	assert.Len(t, store.queued, 2)
	assert.True(t, log.HasMessage("Completion without identifier not recorded"))
}

func TestFlushCommits(t *testing.T) {
	store := &memoryStore{err: errors.New("locked")}
	fb := NewFacebook(cachepath.Resolver{Root: "/cache"}, store, nil)
	assert.Error(t, fb.Flush())
	assert.Equal(t, 1, store.commits)
}

func TestOneDriveBuildRequest(t *testing.T) {
	od := NewOneDrive(cachepath.Resolver{Root: "/cache"}, &memoryStore{}, nil)
	req, err := od.BuildRequest(context.Background(), "https://od.example/thumb", downloader.Metadata{KeyAccessToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "image/*", req.Header.Get("Accept"))
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
}

func TestNew(t *testing.T) {
	for _, network := range []cachepath.SocialNetwork{cachepath.Facebook, cachepath.OneDrive, cachepath.Dropbox} {
		p, err := New(network, cachepath.Resolver{Root: "/cache"}, &memoryStore{}, nil)
		require.NoError(t, err)
		assert.NotNil(t, p)
	}
	_, err := New(cachepath.VK, cachepath.Resolver{Root: "/cache"}, &memoryStore{}, nil)
	assert.Error(t, err)
}

func TestMetadataHelpers(t *testing.T) {
	assert.Equal(t, 3, AccountID(downloader.Metadata{KeyAccountID: 3}))
	assert.Equal(t, 4, AccountID(downloader.Metadata{KeyAccountID: float64(4)}))
	assert.Equal(t, 0, AccountID(downloader.Metadata{KeyAccountID: "x"}))
	assert.Equal(t, "42", Identifier(downloader.Metadata{KeyIdentifier: 42}))
	assert.Equal(t, database.ImageTypeFull, ImageType(downloader.Metadata{}))
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(logger.NewNopLogger())

	var got []string
	first := d.AddListener(func(url, path string, md downloader.Metadata) { got = append(got, "first:"+path) })
	second := d.AddListener(func(url, path string, md downloader.Metadata) { got = append(got, "second:"+path) })
	assert.NotEqual(t, first, second)

	d.Dispatch("u", "/p1", downloader.Metadata{KeyListener: first})
	d.Dispatch("u", "/p2", downloader.Metadata{KeyListener: second})

	d.RemoveListener(first)
	d.Dispatch("u", "/p3", downloader.Metadata{KeyListener: first})
	d.Dispatch("u", "/p4", downloader.Metadata{})

	assert.Equal(t, []string{"first:/p1", "second:/p2"}, got)
}

type recordingEnqueuer struct {
	calls []downloader.Metadata
	urls  []string
}

func (r *recordingEnqueuer) Enqueue(url string, md downloader.Metadata) error {
	if url == "" {
		return errs.New(errs.ErrorTypePrecondition, "url is empty")
	}
	r.urls = append(r.urls, url)
	r.calls = append(r.calls, md)
	return nil
}

func TestCacheImages(t *testing.T) {
	q := &recordingEnqueuer{}
	err := CacheImages(q, []UncachedImage{
		{URL: "https://a", Identifier: "a", ImageType: "thumbnail", AccountID: 2, Listeners: []uint64{1, 2}},
		{URL: "https://b", Identifier: "b", AccessToken: "tok"},
		{URL: "", Identifier: "broken"},
	})

	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypePrecondition))
	assert.Contains(t, err.Error(), "broken")

	require.Len(t, q.calls, 3)
	assert.Equal(t, []string{"https://a", "https://a", "https://b"}, q.urls)
	assert.Equal(t, uint64(1), q.calls[0][KeyListener])
	assert.Equal(t, uint64(2), q.calls[1][KeyListener])
	assert.Equal(t, "thumbnail", q.calls[0][KeyType])
	assert.NotContains(t, q.calls[2], KeyListener)
	assert.Equal(t, "tok", q.calls[2][KeyAccessToken])
}
