package handlers

import (
	"context"
	"net/http"
	"time"

	"relmap/application/ports"
	"relmap/pkg/auth"
	"relmap/pkg/common"
	pkgerrors "relmap/pkg/errors"

	"go.uber.org/zap"
)

// Pinger checks the backing table service
type Pinger interface {
	Ping(ctx context.Context) error
}

// Inbox holds unread notifications
type Inbox interface {
	Drain(userID string) []ports.Notification
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	store   Pinger
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{store: store, timeout: 3 * time.Second, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, r, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("Readiness check failed", zap.Error(err))
		common.RespondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	common.RespondJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// NotificationHandler hands out the caller's unread notifications
type NotificationHandler struct {
	inbox  Inbox
	errors *pkgerrors.ErrorHandler
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(inbox Inbox, errorHandler *pkgerrors.ErrorHandler) *NotificationHandler {
	return &NotificationHandler{inbox: inbox, errors: errorHandler}
}

// List handles GET /notifications. Returned notifications are removed from the inbox.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		h.errors.Handle(w, r, pkgerrors.NewAuthRequiredError(""))
		return
	}
	common.RespondJSON(w, r, http.StatusOK, h.inbox.Drain(principal.UserID))
}
