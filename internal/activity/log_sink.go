package activity

import (
	"context"
	"log/slog"
)

// LogSink writes events to a structured logger.
func LogSink(logger *slog.Logger) Sink {
	return SinkFunc(func(ctx context.Context, e Event) {
		logger.InfoContext(ctx, "activity",
			"type", e.Type,
			"actor_id", e.ActorID,
			"subject_id", e.SubjectID,
			"resource", e.Resource,
		)
	})
}
