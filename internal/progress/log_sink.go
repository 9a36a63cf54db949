package progress

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs the event.
func (s *LogSink) Emit(_ context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("job_id", event.JobID),
		zap.String("stage", string(event.Stage)),
		zap.Time("ts", event.TS),
	}
	if event.URL != "" {
		fields = append(fields, zap.String("url", event.URL))
	}
	if event.Note != "" {
		fields = append(fields, zap.String("note", event.Note))
	}
	s.logger.Info("crawl progress", fields...)
	return nil
}
