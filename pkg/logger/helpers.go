package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// ForInvocation returns a logger tagging every line with the invocation ID
func ForInvocation(base Logger, invocationID string) Logger {
	if base == nil {
		base = GetLogger()
	}
	return base.WithField("invocation_id", invocationID)
}

// LogRequest logs HTTP request information. url must already be redacted.
func LogRequest(l Logger, method, url string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogRunStatus logs one observation of a run's status
func LogRunStatus(l Logger, runID, status string, attempt int) {
	l.InfoWithFields("Run status", map[string]interface{}{
		"run_id":  runID,
		"status":  status,
		"attempt": attempt,
	})
}

// LogStageFailure logs a failed step of the scrape, naming the stage
func LogStageFailure(l Logger, stage string, err error) {
	l.WithError(err).ErrorWithFields("Stage failed", map[string]interface{}{
		"stage": stage,
	})
}

// LogMetrics logs performance metrics
func LogMetrics(l Logger, operation string, metrics map[string]interface{}) {
	fields := map[string]interface{}{
		"operation": operation,
		"type":      "metrics",
	}
	for k, v := range metrics {
		fields[k] = v
	}
	l.InfoWithFields("Performance metrics", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
