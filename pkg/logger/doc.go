// Package logger provides the structured logging interface used across socialcache.
//
// It wraps zerolog with a small field-oriented API:
//
//	log := logger.GetLogger().WithField("component", "downloader")
//	log.InfoWithFields("Image cached", map[string]interface{}{
//	    "url":  url,
//	    "path": path,
//	})
//
// Console output is human readable; setting LoggingConfig.File additionally
// appends JSON lines to that file. NewTestLogger captures messages for tests
// and NewNopLogger discards everything.
package logger
