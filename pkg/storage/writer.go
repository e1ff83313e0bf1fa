package storage

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"socialcache/pkg/cachepath"
	errs "socialcache/pkg/errors"
	"socialcache/pkg/logger"
)

// excerptLength bounds how much of a textual body is logged
const excerptLength = 200

// Writer validates downloaded bytes and commits them to the cache
type Writer struct {
	log         logger.Logger
	jpegQuality int
}

// NewWriter creates a content writer
func NewWriter(log logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Writer{log: log, jpegQuality: 90}
}

// Sniff returns the detected media type of data without parameters
func Sniff(data []byte) string {
	detected := mimetype.Detect(data).String()
	mediaType, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return detected
	}
	return mediaType
}

// Write stores data at target and returns the final path. When the sniffed
// format does not match target's extension, the image is re-encoded so the
// file on disk always matches its name.
func (w *Writer) Write(data []byte, target string) (string, error) {
	if len(data) == 0 {
		return "", errs.New(errs.ErrorTypeEmptyBody, "response body is empty")
	}

	sniffed := Sniff(data)
	if !strings.HasPrefix(sniffed, "image/") {
		if strings.HasPrefix(sniffed, "text/") {
			w.log.DebugWithFields("Downloaded body looks like an error page", map[string]interface{}{
				"content_type": sniffed,
				"excerpt":      excerpt(data),
				"target":       target,
			})
		}
		return "", errs.New(errs.ErrorTypeNotAnImage, fmt.Sprintf("content type %s is not an image", sniffed))
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", errs.Wrap(errs.ErrorTypeWriteFailed, "failed to create cache directory", err)
	}

	if canonicalExt(extensionFor(sniffed)) == canonicalExt(filepath.Ext(target)) {
		if err := writeAtomic(target, func(out io.Writer) error {
			_, err := out.Write(data)
			return err
		}); err != nil {
			return "", errs.Wrap(errs.ErrorTypeWriteFailed, "failed to write image", err)
		}
		return target, nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeWriteFailed, fmt.Sprintf("failed to decode %s image", sniffed), err)
	}

	w.log.DebugWithFields("Transcoding image", map[string]interface{}{
		"from":   format,
		"target": target,
	})

	if err := writeAtomic(target, func(out io.Writer) error {
		return w.encode(out, img, cachepath.MimeTypeFor(target))
	}); err != nil {
		return "", errs.Wrap(errs.ErrorTypeWriteFailed, "failed to transcode image", err)
	}
	return target, nil
}

func (w *Writer) encode(out io.Writer, img image.Image, mimeType string) error {
	switch mimeType {
	case "image/jpeg":
		return jpeg.Encode(out, img, &jpeg.Options{Quality: w.jpegQuality})
	case "image/png":
		return png.Encode(out, img)
	case "image/gif":
		return gif.Encode(out, img, nil)
	case "image/bmp":
		return bmp.Encode(out, img)
	case "image/tiff":
		return tiff.Encode(out, img, nil)
	default:
		return fmt.Errorf("no encoder for %q", mimeType)
	}
}

// writeAtomic writes through a temporary file in the target directory and
// renames it into place.
func writeAtomic(target string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempFile := tmp.Name()

	err = fill(tmp)
	closeErr := tmp.Close()

	if err != nil {
		os.Remove(tempFile)
		return err
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Chmod(tempFile, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tiff"
	case "image/x-icon", "image/vnd.microsoft.icon":
		return ".ico"
	default:
		return ""
	}
}

func canonicalExt(ext string) string {
	switch ext = strings.ToLower(ext); ext {
	case ".jpeg":
		return ".jpg"
	case ".tif":
		return ".tiff"
	default:
		return ext
	}
}

// excerpt cuts data to at most excerptLength bytes on a rune boundary
func excerpt(data []byte) string {
	if len(data) <= excerptLength {
		return string(data)
	}
	end := excerptLength
	for end > 0 && !utf8.RuneStart(data[end]) {
		end--
	}
	return string(data[:end])
}
