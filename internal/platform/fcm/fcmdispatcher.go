// Package fcm implements the push gateway engine over Firebase Cloud
// Messaging's batch-native multicast API.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-push-delivery/internal/delivery"
	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Engine struct {
	client MessagingClient
	logger *slog.Logger
}

// NewEngine accepts the concrete client but stores it as the interface.
// Note: *messaging.Client automatically satisfies this interface.
func NewEngine(client MessagingClient, logger *slog.Logger) *Engine {
	return &Engine{
		client: client,
		logger: logger.With("component", "FCMEngine"),
	}
}

// Dispatch sends the payload to all tokens as one multicast round trip and
// maps the gateway's per-token report onto dispatch statuses. The error
// return is reserved for batch-level failure: when the call itself cannot be
// attempted there are no per-token results, and the caller must not prune.
func (e *Engine) Dispatch(ctx context.Context, payload push.Payload, tokens []string) ([]push.TokenResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	msg := delivery.FCMEnvelope(payload, tokens)

	br, err := e.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", push.ErrDispatchUnavailable, err)
	}

	results := make([]push.TokenResult, len(tokens))
	for idx, resp := range br.Responses {
		result := push.TokenResult{Token: tokens[idx]}

		switch {
		case resp.Success:
			result.Status = push.StatusSuccess
		case messaging.IsRegistrationTokenNotRegistered(resp.Error):
			// The installation is gone; this token can never receive again.
			result.Status = push.StatusPermanentFailure
			result.Reason = "unregistered"
		case messaging.IsInvalidArgument(resp.Error):
			result.Status = push.StatusPermanentFailure
			result.Reason = "invalid token"
		default:
			// Quota, unavailable, internal: recoverable from the token's
			// point of view.
			result.Status = push.StatusTransientFailure
			result.Reason = resp.Error.Error()
		}

		results[idx] = result
	}

	e.logger.Debug("Multicast dispatched",
		"tokens", len(tokens),
		"success", br.SuccessCount,
		"failure", br.FailureCount,
	)
	return results, nil
}
