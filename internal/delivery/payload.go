// Package delivery implements the core send path: payload construction,
// multicast dispatch orchestration, failure classification and dead-token
// pruning.
package delivery

import (
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/messaging"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// BuildPayload validates and normalises notification content. Title and body
// must be non-empty after trimming; link and icon are optional. The builder is
// pure: its output is fully determined by its input.
func BuildPayload(title, body, link, icon string) (push.Payload, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return push.Payload{}, fmt.Errorf("%w: empty title", push.ErrInvalidPayload)
	}
	if body == "" {
		return push.Payload{}, fmt.Errorf("%w: empty body", push.ErrInvalidPayload)
	}
	return push.Payload{
		Title: title,
		Body:  body,
		Link:  strings.TrimSpace(link),
		Icon:  strings.TrimSpace(icon),
	}, nil
}

// FCMEnvelope renders a payload as the platform-specific multicast message.
//
// Mobile delivery is high priority with a zero TTL: a chat or social
// notification that arrives late is worse than one that silently drops, so
// there is no retry window. Web delivery carries a high urgency header, stays
// visible until the user interacts with it, and opens the deep link on click.
func FCMEnvelope(p push.Payload, tokens []string) *messaging.MulticastMessage {
	zeroTTL := time.Duration(0)
	requireInteraction := true

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: p.Title,
			Body:  p.Body,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &zeroTTL,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority":   "10",
				"apns-expiration": "0",
			},
		},
		Webpush: &messaging.WebpushConfig{
			Headers: map[string]string{
				"Urgency": "high",
				"TTL":     "0",
			},
			Notification: &messaging.WebpushNotification{
				Title:              p.Title,
				Body:               p.Body,
				Icon:               p.Icon,
				RequireInteraction: requireInteraction,
			},
		},
	}

	if p.Link != "" {
		msg.Data = map[string]string{"url": p.Link}
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: p.Link}
	}

	return msg
}
