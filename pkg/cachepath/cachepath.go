// Package cachepath maps cache requests to deterministic, content-addressed file paths.
package cachepath

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"
	"strings"
)

// DataType is the top level namespace of a cached file
type DataType int

const (
	Images DataType = iota
	Contacts
	Notifications
	Posts
)

func (d DataType) String() string {
	switch d {
	case Images:
		return "Images"
	case Contacts:
		return "Contacts"
	case Notifications:
		return "Notifications"
	case Posts:
		return "Posts"
	default:
		return "Unknown"
	}
}

// SocialNetwork identifies the provider a file was fetched from
type SocialNetwork int

const (
	Facebook SocialNetwork = iota
	Twitter
	Google
	VK
	OneDrive
	Dropbox
)

func (n SocialNetwork) String() string {
	switch n {
	case Facebook:
		return "facebook"
	case Twitter:
		return "twitter"
	case Google:
		return "google"
	case VK:
		return "vk"
	case OneDrive:
		return "onedrive"
	case Dropbox:
		return "dropbox"
	default:
		return "unknown"
	}
}

// ParseSocialNetwork returns the network with the given name
func ParseSocialNetwork(name string) (SocialNetwork, bool) {
	for n := Facebook; n <= Dropbox; n++ {
		if strings.EqualFold(n.String(), name) {
			return n, true
		}
	}
	return 0, false
}

// Resolver builds cache paths below Root.
//
// Paths have the shape
//
//	<root>/<DataType>/[avatars/]<network>/<bucket>/<name>.<ext>
//
// where bucket is the first hex digit of md5(identifier).
type Resolver struct {
	Root string
}

// ByIdentifier returns the path for identifier, or "" when identifier is empty.
func (r Resolver) ByIdentifier(network SocialNetwork, dataType DataType, identifier, mimeType string) string {
	if identifier == "" {
		return ""
	}
	return r.build(network, dataType, bucket(identifier), identifier, mimeType)
}

// ByURL names the file after md5(remoteURL) so a changed upstream URL lands on a
// new path. The bucket still comes from the identifier. Returns "" when either
// input is empty.
func (r Resolver) ByURL(network SocialNetwork, dataType DataType, identifier, remoteURL, mimeType string) string {
	if identifier == "" || remoteURL == "" {
		return ""
	}
	return r.build(network, dataType, bucket(identifier), digest(remoteURL), mimeType)
}

func (r Resolver) build(network SocialNetwork, dataType DataType, bucket, name, mimeType string) string {
	parts := []string{r.Root, dataType.String()}
	if dataType == Contacts {
		parts = append(parts, "avatars")
	}
	parts = append(parts, network.String(), bucket, name+ExtensionFor(mimeType))
	return filepath.Join(parts...)
}

// ExtensionFor returns the cache file extension for a media type.
// Only PNG is kept as-is; everything else is stored as JPEG.
func ExtensionFor(mimeType string) string {
	if mimeType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

// MimeTypeFor returns the media type implied by a path's extension, or "" if unknown
func MimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".bmp":
		return "image/bmp"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	default:
		return ""
	}
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func bucket(identifier string) string {
	return digest(identifier)[:1]
}
