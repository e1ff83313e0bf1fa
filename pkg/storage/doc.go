// Package storage commits downloaded images to the cache directory.
//
// Writer.Write sniffs the bytes it is given, rejects empty and non-image
// bodies, and re-encodes the image when the served format differs from the
// format implied by the target path's extension. Files are written to a
// temporary name next to the target and renamed into place, so readers never
// observe a partially written image.
//
// Usage:
//
//	w := storage.NewWriter(log)
//	path, err := w.Write(body, "/cache/Images/onedrive/3/abc.jpg")
//	if err != nil {
//	    // errors.TypeOf(err) is empty_body, not_an_image or write_failed
//	}
package storage
