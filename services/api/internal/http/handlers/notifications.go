package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

type NotificationStore interface {
	ByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type NotificationsHandler struct {
	Store NotificationStore
	Log   zerolog.Logger
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	q := r.URL.Query()
	unreadOnly := q.Get("unread") == "true"
	limit, _ := strconv.Atoi(q.Get("limit"))

	ns, err := h.Store.ByUser(r.Context(), claims.UserID, unreadOnly, limit)
	if err != nil {
		h.Log.Error().Err(err).Msg("notification list failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	if err := h.Store.MarkRead(r.Context(), claims.UserID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("mark read failed")
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
