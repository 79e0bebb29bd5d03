// Package web implements the push gateway engine for browser subscriptions
// using the Web Push protocol with VAPID authentication.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
	"github.com/tinywideclouds/go-push-delivery/pushdelivery/config"
)

// The opaque device token for this backend is the marshalled subscription
// object handed out by the browser's push manager.
type subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type Engine struct {
	subscriber string
	privateKey string
	publicKey  string
	logger     *slog.Logger
	httpClient *http.Client
}

func NewEngine(cfg config.VapidConfig, logger *slog.Logger) *Engine {
	return &Engine{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		logger:     logger.With("component", "WebPushEngine"),
		httpClient: &http.Client{},
	}
}

// Dispatch sends the payload to each subscription token and reports
// per-token results. 404/410 from a push endpoint means the subscription is
// gone for good; 429 and 5xx are recoverable. A token that does not even
// parse as a subscription can never be delivered to and is reported dead so
// the registry cleans it up.
func (e *Engine) Dispatch(ctx context.Context, p push.Payload, tokens []string) ([]push.TokenResult, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]any{
		"notification": map[string]any{
			"title":              p.Title,
			"body":               p.Body,
			"icon":               p.Icon,
			"requireInteraction": true,
			"data":               map[string]string{"url": p.Link},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	results := make([]push.TokenResult, 0, len(tokens))
	for _, raw := range tokens {
		results = append(results, e.pushOne(ctx, raw, body))
	}
	return results, nil
}

func (e *Engine) pushOne(ctx context.Context, raw string, body []byte) push.TokenResult {
	var sub subscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil || sub.Endpoint == "" {
		return push.TokenResult{
			Token:  raw,
			Status: push.StatusPermanentFailure,
			Reason: "malformed subscription",
		}
	}

	s := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.Keys.P256dh,
			Auth:   sub.Keys.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, s, &webpush.Options{
		Subscriber:      e.subscriber,
		VAPIDPublicKey:  e.publicKey,
		VAPIDPrivateKey: e.privateKey,
		TTL:             0,
		Urgency:         webpush.UrgencyHigh,
		HTTPClient:      e.httpClient,
	})
	if err != nil {
		// Transport error (DNS, timeout): recoverable, don't delete.
		return push.TokenResult{
			Token:  raw,
			Status: push.StatusTransientFailure,
			Reason: err.Error(),
		}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
		return push.TokenResult{Token: raw, Status: push.StatusSuccess}
	case http.StatusGone, http.StatusNotFound:
		// The push service says this subscription no longer exists.
		return push.TokenResult{
			Token:  raw,
			Status: push.StatusPermanentFailure,
			Reason: fmt.Sprintf("endpoint gone (%d)", resp.StatusCode),
		}
	default:
		e.logger.Warn("Web push rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
		return push.TokenResult{
			Token:  raw,
			Status: push.StatusTransientFailure,
			Reason: fmt.Sprintf("status %d", resp.StatusCode),
		}
	}
}
