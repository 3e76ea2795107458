// internal/audit/slog_recorder.go
package audit

import (
	"context"
	"log/slog"
)

// SlogRecorder writes audit records to the structured application log. It is
// the default sink for local runs where no Kafka cluster is available.
type SlogRecorder struct {
	logger *slog.Logger
}

// NewSlogRecorder creates a log-backed audit recorder.
func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

// Record logs the audit entry at Info level.
func (r *SlogRecorder) Record(ctx context.Context, action, resource string, details map[string]string) error {
	attrs := make([]any, 0, 2+len(details))
	attrs = append(attrs, "action", action, "resource", resource)
	for k, v := range details {
		attrs = append(attrs, k, v)
	}
	r.logger.InfoContext(ctx, "audit record", attrs...)
	return nil
}

var _ Recorder = (*SlogRecorder)(nil)
