package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/mrpayong/terual-accounting/identity"
	"github.com/mrpayong/terual-accounting/models"
	"github.com/mrpayong/terual-accounting/services"
	"github.com/mrpayong/terual-accounting/utils"
	"go.uber.org/zap"
)

const maxWebhookBytes = 512 << 10

// WebhookVerifier authenticates webhook deliveries
type WebhookVerifier interface {
	Verify(header http.Header, body []byte) error
}

// UserSyncer applies identity provider user events
type UserSyncer interface {
	SyncUser(ctx context.Context, event *identity.UserEvent) (*models.User, error)
	DeleteUser(ctx context.Context, externalID string) (*models.User, error)
}

// WebhookHandler receives identity provider webhooks
type WebhookHandler struct {
	verifier WebhookVerifier
	users    UserSyncer
	logger   *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(verifier WebhookVerifier, users UserSyncer, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, users: users, logger: logger.Named("webhook")}
}

// HandleIdentity handles POST /webhooks/identity
func (h *WebhookHandler) HandleIdentity(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Could not read webhook body", nil)
		return
	}

	if h.verifier == nil {
		h.logger.Error("webhook received but no signing secret is configured")
		_ = utils.WriteError(w, http.StatusServiceUnavailable, "Webhooks are not configured", nil)
		return
	}
	if err := h.verifier.Verify(r.Header, body); err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid webhook signature", nil)
		return
	}

	event, err := identity.ParseUserEvent(body)
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	var user *models.User
	switch event.Type {
	case identity.EventUserCreated, identity.EventUserUpdated:
		user, err = h.users.SyncUser(r.Context(), event)
	case identity.EventUserDeleted:
		user, err = h.users.DeleteUser(r.Context(), event.ExternalID)
		if services.IsNotFoundError(err) {
			// already gone; acknowledge so the relay stops retrying
			err = nil
		}
	default:
		h.logger.Debug("ignoring webhook event", zap.String("type", event.Type))
		_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	fields := []zap.Field{zap.String("type", event.Type), zap.String("external_id", event.ExternalID)}
	if user != nil {
		fields = append(fields, zap.String("user_id", user.ID.String()))
	}
	h.logger.Info("identity event applied", fields...)

	_ = utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}
