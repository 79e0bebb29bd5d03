// Package apns implements the push gateway engine over the Apple Push
// Notification service.
package apns

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file.
	P8KeyContent string
}

type Engine struct {
	client APNSClient
	topic  string // the app bundle ID
	logger *slog.Logger
}

// NewEngine creates a configured APNs engine. It parses the P8 key
// immediately to fail fast on startup if credentials are bad.
func NewEngine(cfg Config, logger *slog.Logger) (*Engine, error) {
	authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	return &Engine{
		client: apns2.NewTokenClient(tokenSource).Production(),
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSEngine"),
	}, nil
}

// NewEngineWithClient injects a pre-built client. Used by tests.
func NewEngineWithClient(client APNSClient, bundleID string, logger *slog.Logger) *Engine {
	return &Engine{
		client: client,
		topic:  bundleID,
		logger: logger.With("component", "APNSEngine"),
	}
}

// Dispatch sends the payload to each token and reports per-token results.
//
// APNs HTTP/2 has no multicast endpoint; the batch is one logical dispatch
// issued as unary pushes over a shared connection. A transport error on one
// push is a transient result for that token, never a batch-level failure,
// since the remaining tokens still get their attempt.
func (e *Engine) Dispatch(ctx context.Context, p push.Payload, tokens []string) ([]push.TokenResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	builder := payload.NewPayload().
		AlertTitle(p.Title).
		AlertBody(p.Body).
		Sound("default")
	if p.Link != "" {
		builder.Custom("url", p.Link)
	}

	results := make([]push.TokenResult, 0, len(tokens))
	for _, deviceToken := range tokens {
		n := &apns2.Notification{
			DeviceToken: deviceToken,
			Topic:       e.topic,
			Payload:     builder,
			Priority:    apns2.PriorityHigh,
			// Immediate expiration: deliver now or drop, no retry window.
			Expiration: time.Unix(0, 0),
		}

		res, err := e.client.PushWithContext(ctx, n)
		if err != nil {
			results = append(results, push.TokenResult{
				Token:  deviceToken,
				Status: push.StatusTransientFailure,
				Reason: err.Error(),
			})
			continue
		}

		if res.Sent() {
			results = append(results, push.TokenResult{Token: deviceToken, Status: push.StatusSuccess})
			continue
		}

		switch res.Reason {
		case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
			results = append(results, push.TokenResult{
				Token:  deviceToken,
				Status: push.StatusPermanentFailure,
				Reason: res.Reason,
			})
		default:
			// TopicDisallowed, PayloadEmpty and friends mean our
			// configuration is wrong, not that the token is dead.
			e.logger.Warn("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
			results = append(results, push.TokenResult{
				Token:  deviceToken,
				Status: push.StatusTransientFailure,
				Reason: res.Reason,
			})
		}
	}

	return results, nil
}
