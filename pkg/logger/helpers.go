package logger

import "time"

// LogFetch records the terminal state of one network operation
func LogFetch(l Logger, url, outcome string, payloads int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"url":      url,
		"outcome":  outcome,
		"payloads": payloads,
		"duration": duration,
	}

	if err != nil {
		l.WithError(err).WarnWithFields("Image download failed", fields)
		return
	}
	l.DebugWithFields("Image download completed", fields)
}

// LogFlush records a batch flush of completion records
func LogFlush(l Logger, records int, reason string, err error) {
	fields := map[string]interface{}{
		"records": records,
		"reason":  reason,
	}

	if err != nil {
		l.WithError(err).ErrorWithFields("Batch flush failed", fields)
		return
	}
	l.DebugWithFields("Batch flushed", fields)
}

// LogComponentStart logs when a component starts
func LogComponentStart(l Logger, component string, config map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", config)
}

// LogComponentStop logs when a component stops
func LogComponentStop(l Logger, component string, reason string) {
	l.InfoWithFields("Component stopped", map[string]interface{}{
		"component": component,
		"reason":    reason,
	})
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Debug(string) {}
func (nopLogger) Info(string) {}
func (nopLogger) Warn(string) {}
func (nopLogger) Error(string) {}
func (n nopLogger) WithField(string, interface{}) Logger { return n }
func (n nopLogger) WithFields(map[string]interface{}) Logger { return n }
func (n nopLogger) WithError(error) Logger { return n }
func (nopLogger) DebugWithFields(string, map[string]interface{}) {}
func (nopLogger) InfoWithFields(string, map[string]interface{}) {}
func (nopLogger) WarnWithFields(string, map[string]interface{}) {}
func (nopLogger) ErrorWithFields(string, map[string]interface{}) {}
