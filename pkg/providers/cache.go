package providers

import (
	"errors"
	"fmt"

	"socialcache/internal/downloader"
)

// Enqueuer accepts download requests
type Enqueuer interface {
	Enqueue(url string, md downloader.Metadata) error
}

// UncachedImage is an image some listeners want cached
type UncachedImage struct {
	URL         string
	Identifier  string
	ImageType   string
	AccountID   int
	AccessToken string
	Listeners   []uint64
}

// Metadata builds the request metadata for one listener of img
func (img UncachedImage) Metadata(listener uint64) downloader.Metadata {
	md := downloader.Metadata{
		KeyIdentifier: img.Identifier,
		KeyURL:        img.URL,
		KeyAccountID:  img.AccountID,
	}
	if img.ImageType != "" {
		md[KeyType] = img.ImageType
	}
	if img.AccessToken != "" {
		md[KeyAccessToken] = img.AccessToken
	}
	if listener != 0 {
		md[KeyListener] = listener
	}
	return md
}

// CacheImages enqueues one request per listener of every image, or a single
// listener-less request for images nobody is listening to. Duplicate URLs are
// merged by the engine.
func CacheImages(q Enqueuer, images []UncachedImage) error {
	var errs []error
	for _, img := range images {
		listeners := img.Listeners
		if len(listeners) == 0 {
			listeners = []uint64{0}
		}
		for _, listener := range listeners {
			if err := q.Enqueue(img.URL, img.Metadata(listener)); err != nil {
				errs = append(errs, fmt.Errorf("image %s: %w", img.Identifier, err))
			}
		}
	}
	return errors.Join(errs...)
}
