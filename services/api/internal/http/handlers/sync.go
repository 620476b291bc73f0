package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/shared/pkg/models"
)

type SyncStore interface {
	Enqueue(ctx context.Context, ops []models.SyncOperation) (int, error)
	Status(ctx context.Context, userID string) (models.SyncStatus, error)
	Conflicts(ctx context.Context, userID string) ([]models.SyncConflict, error)
	Operations(ctx context.Context, userID, statusFilter string) ([]models.SyncOperation, error)
}

type SyncHandler struct {
	Store      SyncStore
	MaxRetries int
	Log        zerolog.Logger
}

type syncOpReq struct {
	ClientOpID  string          `json:"client_op_id"`
	Operation   string          `json:"operation"`
	ModelType   string          `json:"model_type"`
	RecordID    string          `json:"record_id"`
	Payload     json.RawMessage `json:"payload"`
	BaseVersion *time.Time      `json:"base_version"`
}

type syncEnqueueReq struct {
	Operations []syncOpReq `json:"operations"`
}

var validSyncOps = map[string]bool{
	models.SyncOpCreate: true,
	models.SyncOpUpdate: true,
	models.SyncOpDelete: true,
}

var validSyncModels = map[string]bool{
	models.SyncModelOrder:         true,
	models.SyncModelReview:        true,
	models.SyncModelMenuItem:      true,
	models.SyncModelVendorProfile: true,
}

// Enqueue accepts a batch of offline mutations recorded by a client while it
// had no connectivity. The batch is queued and processed asynchronously by the
// sync worker; the response reports how many operations were newly accepted.
func (h *SyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var req syncEnqueueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Operations) == 0 {
		http.Error(w, "operations required", http.StatusBadRequest)
		return
	}

	ops := make([]models.SyncOperation, 0, len(req.Operations))
	for _, o := range req.Operations {
		if o.ClientOpID == "" || !validSyncOps[o.Operation] || !validSyncModels[o.ModelType] {
			http.Error(w, "invalid operation", http.StatusBadRequest)
			return
		}
		if o.Operation != models.SyncOpCreate && o.RecordID == "" {
			http.Error(w, "record_id required for update and delete", http.StatusBadRequest)
			return
		}
		op := models.SyncOperation{
			ID:         uuid.NewString(),
			UserID:     claims.UserID,
			ClientOpID: o.ClientOpID,
			Operation:  o.Operation,
			ModelType:  o.ModelType,
			RecordID:   o.RecordID,
			Payload:    o.Payload,
			MaxRetries: h.MaxRetries,
		}
		op.BaseVersion = o.BaseVersion
		ops = append(ops, op)
	}

	accepted, err := h.Store.Enqueue(r.Context(), ops)
	if err != nil {
		h.Log.Error().Err(err).Msg("sync enqueue failed")
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{
		"accepted":   accepted,
		"duplicates": len(ops) - accepted,
	})
}

func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	s, err := h.Store.Status(r.Context(), claims.UserID)
	if err != nil {
		h.Log.Error().Err(err).Msg("sync status failed")
		http.Error(w, "status failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *SyncHandler) Conflicts(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	cs, err := h.Store.Conflicts(r.Context(), claims.UserID)
	if err != nil {
		h.Log.Error().Err(err).Msg("sync conflicts failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *SyncHandler) Operations(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	ops, err := h.Store.Operations(r.Context(), claims.UserID, r.URL.Query().Get("status"))
	if err != nil {
		h.Log.Error().Err(err).Msg("sync operations failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ops)
}
