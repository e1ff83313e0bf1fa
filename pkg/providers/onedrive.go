package providers

import (
	"context"
	"net/http"

	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/database"
	"socialcache/pkg/logger"
)

// OneDrive stores one file per identifier and image type, always as JPEG.
// Only thumbnails are recorded in the store.
type OneDrive struct {
	base
}

// NewOneDrive creates the OneDrive provider
func NewOneDrive(resolver cachepath.Resolver, store Store, log logger.Logger) *OneDrive {
	return &OneDrive{base: newBase(cachepath.OneDrive, resolver, store, log)}
}

func (o *OneDrive) ResolvePath(url string, md downloader.Metadata, mimeType string) string {
	id := Identifier(md)
	typ := stringValue(md[KeyType])
	if id == "" || typ == "" {
		return ""
	}
	return o.resolver.ByIdentifier(cachepath.OneDrive, cachepath.Images, id+typ, "")
}

func (o *OneDrive) RecordCompletion(url string, md downloader.Metadata, localPath string) {
	if ImageType(md) != database.ImageTypeThumbnail {
		return
	}
	o.record(url, md, localPath)
}

// BuildRequest asks for image content explicitly
func (o *OneDrive) BuildRequest(ctx context.Context, url string, md downloader.Metadata) (*http.Request, error) {
	req, err := downloader.DefaultRequest(ctx, url, md)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")
	return req, nil
}
