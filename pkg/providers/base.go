// Package providers implements the per-network cache policies used by the
// download engine: where each network's images live on disk, which completions
// are recorded, and how requests are built.
package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"socialcache/internal/downloader"
	"socialcache/pkg/cachepath"
	"socialcache/pkg/database"
	"socialcache/pkg/logger"
)

// Metadata keys understood by every provider
const (
	KeyIdentifier  = "identifier"
	KeyType        = "type"
	KeyAccountID   = "accountId"
	KeyAccessToken = "accessToken"
	KeyListener    = "listener"
	KeyURL         = "url"
)

// DefaultFlushTimeout bounds one batch commit
const DefaultFlushTimeout = 30 * time.Second

// Store is the backing store a provider records completions into
type Store interface {
	QueueImage(img database.Image)
	Commit(ctx context.Context) error
}

// base holds what all providers share: the resolver and the store hooks
type base struct {
	network      cachepath.SocialNetwork
	resolver     cachepath.Resolver
	store        Store
	log          logger.Logger
	flushTimeout time.Duration
}

func newBase(network cachepath.SocialNetwork, resolver cachepath.Resolver, store Store, log logger.Logger) base {
	if log == nil {
		log = logger.GetLogger()
	}
	return base{
		network:      network,
		resolver:     resolver,
		store:        store,
		log:          log.WithField("provider", network.String()),
		flushTimeout: DefaultFlushTimeout,
	}
}

func (b *base) record(url string, md downloader.Metadata, localPath string) {
	id := Identifier(md)
	if id == "" {
		b.log.WarnWithFields("Completion without identifier not recorded", map[string]interface{}{
			"url": url,
		})
		return
	}
	b.store.QueueImage(database.Image{
		Network:    b.network.String(),
		AccountID:  AccountID(md),
		Identifier: id,
		ImageType:  ImageType(md),
		RemoteURL:  url,
		FilePath:   localPath,
	})
}

// Flush commits queued completions
func (b *base) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), b.flushTimeout)
	defer cancel()
	return b.store.Commit(ctx)
}

// Identifier returns the identifier carried by md
func Identifier(md downloader.Metadata) string {
	return stringValue(md[KeyIdentifier])
}

// ImageType returns the image type carried by md, defaulting to full
func ImageType(md downloader.Metadata) string {
	if t := stringValue(md[KeyType]); t != "" {
		return t
	}
	return database.ImageTypeFull
}

// AccountID returns the account carried by md, or 0
func AccountID(md downloader.Metadata) int {
	switch v := md[KeyAccountID].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		id, _ := strconv.Atoi(v)
		return id
	default:
		return 0
	}
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// New returns the provider for network
func New(network cachepath.SocialNetwork, resolver cachepath.Resolver, store Store, log logger.Logger) (downloader.Provider, error) {
	switch network {
	case cachepath.Facebook:
		return NewFacebook(resolver, store, log), nil
	case cachepath.OneDrive:
		return NewOneDrive(resolver, store, log), nil
	case cachepath.Dropbox:
		return NewDropbox(resolver, store, log), nil
	default:
		return nil, fmt.Errorf("no image provider for %s", network)
	}
}
