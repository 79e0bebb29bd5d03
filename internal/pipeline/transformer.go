// Package pipeline contains the message processing components that feed
// Pub/Sub notify events into the delivery service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
)

// NotifyEvent is the wire shape published by in-deployment event producers
// (chat messages, likes). It mirrors the body of POST /notify.
type NotifyEvent struct {
	ReceiverID string `json:"receiverId"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url,omitempty"`
	Icon       string `json:"icon,omitempty"`
}

// NotifyEventTransformer safely unmarshals a raw message payload into a
// structured NotifyEvent. Malformed messages are skipped so the
// StreamingService can route them to the DLQ instead of retrying forever.
func NotifyEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*NotifyEvent, bool, error) {
	var event NotifyEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal notify event from message %s: %w", msg.ID, err)
	}
	return &event, false, nil
}
