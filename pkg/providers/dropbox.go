package providers

import (
	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/logger"
)

// Dropbox stores files by identifier and image type, keeping PNGs as PNG
type Dropbox struct {
	base
}

// NewDropbox creates the Dropbox provider
func NewDropbox(resolver cachepath.Resolver, store Store, log logger.Logger) *Dropbox {
	return &Dropbox{base: newBase(cachepath.Dropbox, resolver, store, log)}
}

func (d *Dropbox) ResolvePath(url string, md downloader.Metadata, mimeType string) string {
	id := Identifier(md)
	if id == "" {
		return ""
	}
	return d.resolver.ByIdentifier(cachepath.Dropbox, cachepath.Images, id+stringValue(md[KeyType]), mimeType)
}

func (d *Dropbox) RecordCompletion(url string, md downloader.Metadata, localPath string) {
	d.record(url, md, localPath)
}
