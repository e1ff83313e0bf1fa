package providers

import (
	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/logger"
)

// Facebook names files after the remote URL, so a photo whose URL changes
// upstream is downloaded again under a new path.
type Facebook struct {
	base
}

// NewFacebook creates the Facebook provider
func NewFacebook(resolver cachepath.Resolver, store Store, log logger.Logger) *Facebook {
	return &Facebook{base: newBase(cachepath.Facebook, resolver, store, log)}
}

func (f *Facebook) ResolvePath(url string, md downloader.Metadata, mimeType string) string {
	return f.resolver.ByURL(cachepath.Facebook, cachepath.Images, Identifier(md), url, mimeType)
}

func (f *Facebook) RecordCompletion(url string, md downloader.Metadata, localPath string) {
	f.record(url, md, localPath)
}
