// Package notify delivers user-facing notifications. Dispatch is always
// best-effort: a failed delivery is logged and never fails the business
// operation that triggered it.
package notify

import (
	"context"
	"log/slog"
)

// Dispatcher sends a message to a recipient address.
type Dispatcher interface {
	Send(ctx context.Context, email, subject, body string) error
}

// LogDispatcher is the default channel when no topic is configured: it only
// writes the notification to the log.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, email, subject, body string) error {
	d.logger.Info("local notification", "email", email, "subject", subject, "body", body)
	return nil
}

// FireAndForget decorates a Dispatcher so that failures are swallowed after
// logging. Business operations send through this wrapper and can treat
// dispatch as infallible.
type FireAndForget struct {
	inner  Dispatcher
	logger *slog.Logger
}

func NewFireAndForget(inner Dispatcher, logger *slog.Logger) *FireAndForget {
	return &FireAndForget{inner: inner, logger: logger}
}

func (d *FireAndForget) Send(ctx context.Context, email, subject, body string) error {
	if err := d.inner.Send(ctx, email, subject, body); err != nil {
		d.logger.Error("notification dispatch failed", "error", err, "email", email, "subject", subject)
	}
	return nil
}
