package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

// TokenAPI hosts the registration flow that feeds the token registry.
// Callers are trusted backends; recipient ids arrive pre-validated by the
// identity service.
type TokenAPI struct {
	store  push.TokenStore
	logger *slog.Logger
}

func NewTokenAPI(store push.TokenStore, logger *slog.Logger) *TokenAPI {
	return &TokenAPI{
		store:  store,
		logger: logger.With("component", "TokenAPI"),
	}
}

type registerRequest struct {
	UserID   string `json:"userId"`
	Token    string `json:"token"`
	Platform string `json:"platform,omitempty"`
}

// Register handles POST /api/v1/register.
func (api *TokenAPI) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	recipient, err := push.ParseRecipient(req.UserID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "missing userId")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	token := push.DeviceToken{
		Value:        req.Token,
		Platform:     req.Platform,
		RegisteredAt: time.Now(),
	}
	if err := api.store.Register(ctx, recipient, token); err != nil {
		api.logger.Error("Failed to register token", "user", recipient, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type unregisterRequest struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// Unregister handles POST /api/v1/unregister. Removal of an already-absent
// token succeeds; idempotency is preferred for unregister.
func (api *TokenAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	recipient, err := push.ParseRecipient(req.UserID)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "missing userId")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	if err := api.store.Remove(ctx, recipient, []string{req.Token}); err != nil {
		api.logger.Warn("Failed to unregister token", "user", recipient, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "failed to unregister")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
