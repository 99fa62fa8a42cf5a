// Package notify delivers one-time codes to payers out of band.
package notify

import (
	"context"
	"log/slog"
)

// Notifier is the send_code side of a notification channel.
type Notifier interface {
	SendCode(ctx context.Context, destination, code string) error
}

// LogNotifier writes codes to the log instead of delivering them. The code
// itself is only visible at debug level. For local runs without Kafka.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendCode(ctx context.Context, destination, code string) error {
	n.logger.InfoContext(ctx, "otp code dispatched", "destination", destination)
	n.logger.DebugContext(ctx, "otp code", "destination", destination, "code", code)
	return nil
}
