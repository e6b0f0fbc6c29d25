package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/nodeinsights/enrichment-worker/internal/progress"
)

// LogSink emits structured logs for debugging progress streams. It is useful
// during development or audits where metrics alone are too coarse.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("invocation_id", evt.InvocationUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("webpage_id", evt.WebpageID),
			zap.String("provider", evt.Provider),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Int64("fields", evt.Fields),
			zap.Int64("nodes", evt.Nodes),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		}
		s.logger.Info("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
