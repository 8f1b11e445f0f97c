package omnibar

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
// Useful when creation outcomes are not tracked, and for testing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// ContentCreated does nothing and returns nil
func (n *NoopEventSink) ContentCreated(ctx context.Context, post *Post) error {
	return nil
}

// ContentCreationFailed does nothing and returns nil
func (n *NoopEventSink) ContentCreationFailed(ctx context.Context, kind ContentKind, message string) error {
	return nil
}

// ContentCreationCanceled does nothing and returns nil
func (n *NoopEventSink) ContentCreationCanceled(ctx context.Context, kind ContentKind) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// ContentCreated logs the creation event
func (l *LoggingEventSink) ContentCreated(ctx context.Context, post *Post) error {
	l.logger.InfoContext(ctx, "Content created", "id", post.ID, "kind", post.Kind, "blocks", len(post.Blocks))
	return nil
}

// ContentCreationFailed logs the failure event
func (l *LoggingEventSink) ContentCreationFailed(ctx context.Context, kind ContentKind, message string) error {
	l.logger.WarnContext(ctx, "Content creation failed", "kind", kind, "message", message)
	return nil
}

// ContentCreationCanceled logs the cancel event
func (l *LoggingEventSink) ContentCreationCanceled(ctx context.Context, kind ContentKind) error {
	l.logger.InfoContext(ctx, "Content creation canceled", "kind", kind)
	return nil
}
