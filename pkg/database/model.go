package database

import "time"

// Image types recorded per cached file
const (
	ImageTypeThumbnail = "thumbnail"
	ImageTypeFull      = "full"
)

// Image records one cached file. A (network, identifier, image type) triple
// is stored at most once; re-caching replaces the previous record.
type Image struct {
	ID         uint      `gorm:"primaryKey"`
	Network    string    `gorm:"not null;uniqueIndex:idx_image_key,priority:1"`
	AccountID  int       `gorm:"index"`
	Identifier string    `gorm:"not null;uniqueIndex:idx_image_key,priority:2"`
	ImageType  string    `gorm:"not null;uniqueIndex:idx_image_key,priority:3"`
	RemoteURL  string    `gorm:"not null"`
	FilePath   string    `gorm:"not null"`
	CachedAt   time.Time `gorm:"index"`
}
