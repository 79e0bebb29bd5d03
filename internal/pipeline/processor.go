package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-delivery/internal/api"
	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// NewProcessor adapts the delivery service to the streaming pipeline.
//
// Caller errors (bad payload, unknown recipient) ack the message: redelivery
// cannot fix them and the event is informational anyway. Infrastructure
// errors nack so Pub/Sub retries; a multicast that never got off the ground
// is safe to retry since no token received anything.
func NewProcessor(delivery api.Sender, logger *slog.Logger) messagepipeline.StreamProcessor[NotifyEvent] {
	return func(ctx context.Context, original messagepipeline.Message, event *NotifyEvent) error {
		procLogger := logger.With(
			"recipient_id", event.ReceiverID,
			"pubsub_msg_id", original.ID,
		)

		outcome, err := delivery.Send(ctx, event.ReceiverID, event.Title, event.Body, event.URL, event.Icon)
		if err != nil {
			if errors.Is(err, push.ErrInvalidPayload) ||
				errors.Is(err, push.ErrInvalidRecipient) ||
				errors.Is(err, push.ErrRecipientNotFound) {
				procLogger.Warn("Dropping undeliverable notify event", "err", err)
				return nil
			}
			procLogger.Error("Delivery failed; message will be retried", "err", err)
			return err
		}

		procLogger.Info("Notify event delivered",
			"sent", outcome.Sent,
			"failed", outcome.Failed,
			"pruned", len(outcome.Pruned),
		)
		return nil
	}
}
