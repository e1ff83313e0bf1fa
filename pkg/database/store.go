// Package database persists cache completion records with gorm and SQLite.
package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "socialcache/pkg/errors"
	"socialcache/pkg/logger"
	"socialcache/pkg/retry"
)

// ErrNotFound is returned by Lookup when no record matches
var ErrNotFound = errors.New("image record not found")

// Store buffers completion records in memory and commits them in batches.
// Everything queued before a successful Commit is durable once it returns.
type Store struct {
	db      *gorm.DB
	log     logger.Logger
	retrier *retry.Retrier

	mu     sync.Mutex
	queued []Image
}

// Open opens (creating if needed) the SQLite database at path and migrates the schema
func Open(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	log = log.WithField("component", "database")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), &gorm.Config{
		Logger: NewGormLogger(log, DefaultSlowQueryThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.AutoMigrate(&Image{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.DebugWithFields("Database opened", map[string]interface{}{"path": path})

	return &Store{
		db:  db,
		log: log,
		retrier: retry.NewRetrier(&retry.Config{
			MaxAttempts: 3,
			Backoff:     retry.DefaultExponentialBackoff(),
			RetryIf:     retry.DefaultRetryIf,
			Logger:      log,
		}),
	}, nil
}

// QueueImage buffers a record for the next Commit
func (s *Store) QueueImage(img Image) {
	if img.CachedAt.IsZero() {
		img.CachedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.queued = append(s.queued, img)
	s.mu.Unlock()
}

// Pending returns the number of buffered records
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queued)
}

// Commit writes all buffered records in one transaction. On failure the
// records stay buffered and are retried by the next Commit.
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	batch := make([]Image, len(s.queued))
	copy(batch, s.queued)
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	rows := dedupe(batch)
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		attempt := make([]Image, len(rows))
		copy(attempt, rows)
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "network"},
					{Name: "identifier"},
					{Name: "image_type"},
				},
				DoUpdates: clause.AssignmentColumns([]string{
					"account_id",
					"remote_url",
					"file_path",
					"cached_at",
				}),
			}).Create(&attempt).Error
		})
	})
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStore, fmt.Sprintf("failed to commit %d image records", len(batch)), err)
	}

	// Records queued while the transaction ran stay for the next commit.
	s.mu.Lock()
	s.queued = s.queued[len(batch):]
	s.mu.Unlock()

	s.log.DebugWithFields("Committed image records", map[string]interface{}{
		"records": len(rows),
	})
	return nil
}

// Lookup returns the record for one cached image
func (s *Store) Lookup(ctx context.Context, network, identifier, imageType string) (*Image, error) {
	var img Image
	err := s.db.WithContext(ctx).
		Where("network = ? AND identifier = ? AND image_type = ?", network, identifier, imageType).
		First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up image: %w", err)
	}
	return &img, nil
}

// ListImages returns the committed records of a network, newest first.
// An empty network lists everything.
func (s *Store) ListImages(ctx context.Context, network string) ([]Image, error) {
	var images []Image
	query := s.db.WithContext(ctx).Order("cached_at DESC, id DESC")
	if network != "" {
		query = query.Where("network = ?", network)
	}
	if err := query.Find(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// Close closes the underlying connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}
	return sqlDB.Close()
}

// dedupe keeps the last record for each key, in first-seen order
func dedupe(batch []Image) []Image {
	type key struct{ network, identifier, imageType string }

	index := make(map[key]int, len(batch))
	rows := make([]Image, 0, len(batch))
	for _, img := range batch {
		k := key{img.Network, img.Identifier, img.ImageType}
		if i, ok := index[k]; ok {
			rows[i] = img
			continue
		}
		index[k] = len(rows)
		rows = append(rows, img)
	}
	return rows
}
