// Package api exposes the HTTP surface: the notify endpoint used by backend
// event producers and the token registration endpoints used by client apps.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// Sender is the slice of the delivery service the notify handler needs.
type Sender interface {
	Send(ctx context.Context, recipientID, title, body, link, icon string) (push.DeliveryOutcome, error)
}

type NotifyAPI struct {
	delivery Sender
	logger   *slog.Logger
}

func NewNotifyAPI(delivery Sender, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		delivery: delivery,
		logger:   logger.With("component", "NotifyAPI"),
	}
}

type notifyRequest struct {
	ReceiverID string `json:"receiverId"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url,omitempty"`
	Icon       string `json:"icon,omitempty"`
}

type notifyResponse struct {
	Success      bool `json:"success"`
	SentCount    int  `json:"sentCount"`
	FailureCount int  `json:"failureCount"`
}

// Notify handles POST /notify. The triggering feature (a message sent, a like
// received) must never roll back because delivery failed, so every attempted
// send, including one that reached zero devices, answers 200 with counts.
func (api *NotifyAPI) Notify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if strings.TrimSpace(req.ReceiverID) == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing receiverId")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing title or body")
		return
	}

	outcome, err := api.delivery.Send(ctx, req.ReceiverID, req.Title, req.Body, req.URL, req.Icon)
	if err != nil {
		api.writeSendError(w, req.ReceiverID, err)
		return
	}

	writeJSON(w, http.StatusOK, notifyResponse{
		Success:      true,
		SentCount:    outcome.Sent,
		FailureCount: outcome.Failed,
	})
}

func (api *NotifyAPI) writeSendError(w http.ResponseWriter, receiverID string, err error) {
	switch {
	case errors.Is(err, push.ErrInvalidPayload), errors.Is(err, push.ErrInvalidRecipient):
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, push.ErrRecipientNotFound):
		// Echo the requested id so callers can diagnose stale references.
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error":       "recipient not found",
			"requestedId": receiverID,
		})
	default:
		// Gateway or store unavailability, timeouts. The event pipeline owns
		// retry policy; retrying a whole multicast here risks duplicates.
		api.logger.Error("Delivery failed", "receiver_id", receiverID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "delivery failed",
			"details": err.Error(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
