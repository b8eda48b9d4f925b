package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bookbazaar/bookbazaar/internal/domain"
)

// DeliveryHandler is the subscriber side of the notification topic. The demo
// delivery channel is the log; a real deployment would hand the message to
// an email provider here.
type DeliveryHandler struct {
	logger *slog.Logger
}

func NewDeliveryHandler(logger *slog.Logger) *DeliveryHandler {
	return &DeliveryHandler{logger: logger}
}

// Handle decodes one published notification and delivers it. The email
// attribute on the message must match the payload; a mismatch is logged for
// auditing but delivery still follows the payload.
func (h *DeliveryHandler) Handle(_ context.Context, payload []byte, attrs map[string]string) error {
	var msg domain.NotificationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("unmarshal notification: %w", err)
	}

	if addr := attrs[EmailAttribute]; addr != "" && addr != msg.Email {
		h.logger.Warn("notification attribute mismatch", "attribute_email", addr, "payload_email", msg.Email)
	}

	h.logger.Info("notification delivered",
		"email", msg.Email,
		"subject", msg.Subject,
		"body", msg.Body,
		"sent_at", msg.SentAt,
	)
	return nil
}
