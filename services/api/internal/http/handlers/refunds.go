package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

type RefundsHandler struct {
	DB       *pgxpool.Pool
	Orders   *repo.OrdersPG
	Payments *repo.PaymentsPG
	Vendors  VendorStore
	Outbox   *repo.OutboxPG
	Log      zerolog.Logger
}

type refundCreateReq struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

func (h *RefundsHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	var req refundCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" || req.Reason == "" {
		http.Error(w, "order_id and reason are required", http.StatusBadRequest)
		return
	}

	o, err := h.Orders.ByID(r.Context(), req.OrderID)
	if err != nil || o.CustomerID != claims.UserID {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if o.Status != models.StatusDelivered && o.Status != models.StatusCancelled && o.Status != models.StatusFailed {
		http.Error(w, "order is not refundable yet", http.StatusConflict)
		return
	}
	p, err := h.Payments.ByOrder(r.Context(), o.ID)
	if err != nil {
		http.Error(w, "no payment on order", http.StatusConflict)
		return
	}
	if p.Status == models.PaymentRefunded {
		http.Error(w, "order already refunded", http.StatusConflict)
		return
	}

	rr := models.RefundRequest{
		ID:         uuid.NewString(),
		OrderID:    o.ID,
		CustomerID: claims.UserID,
		Amount:     p.Amount,
		Reason:     req.Reason,
		Status:     models.RefundRequested,
	}
	if err := h.Payments.CreateRefundRequest(r.Context(), rr); err != nil {
		h.Log.Error().Err(err).Msg("refund request create failed")
		http.Error(w, "refund request failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rr)
}

func (h *RefundsHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	statusFilter := r.URL.Query().Get("status")

	var customerID, vendorID string
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleVendor:
		v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "vendor profile not found", http.StatusForbidden)
			return
		}
		vendorID = v.ID
	default:
		customerID = claims.UserID
	}

	reqs, err := h.Payments.ListRefundRequests(r.Context(), customerID, vendorID, statusFilter)
	if err != nil {
		h.Log.Error().Err(err).Msg("refund list failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func (h *RefundsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.RefundApproved)
}

func (h *RefundsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, models.RefundDenied)
}

func (h *RefundsHandler) decide(w http.ResponseWriter, r *http.Request, decision string) {
	claims, _ := auth.ClaimsFrom(r.Context())
	id := chi.URLParam(r, "id")

	rr, err := h.Payments.RefundRequestByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "refund request not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("refund lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	o, err := h.Orders.ByID(r.Context(), rr.OrderID)
	if err != nil {
		h.Log.Error().Err(err).Msg("order lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if claims.Role == models.RoleVendor {
		v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
		if err != nil || v.ID != o.VendorID {
			http.Error(w, "refund request not found", http.StatusNotFound)
			return
		}
	}
	if rr.Status != models.RefundRequested {
		http.Error(w, "refund request already decided", http.StatusConflict)
		return
	}

	ctx := r.Context()
	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("begin tx failed")
		http.Error(w, "decision failed", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	if err := h.Payments.DecideRefundTx(ctx, tx, rr.ID, decision, claims.UserID, now); err != nil {
		h.Log.Error().Err(err).Msg("refund decision failed")
		http.Error(w, "decision failed", http.StatusInternalServerError)
		return
	}
	if decision == models.RefundApproved {
		if err := h.Payments.MarkRefundedTx(ctx, tx, rr.OrderID); err != nil {
			h.Log.Error().Err(err).Msg("payment refund failed")
			http.Error(w, "decision failed", http.StatusInternalServerError)
			return
		}
		evt := models.NewEvent(models.EventOrderRefunded, o.ID, models.OrderRefundedPayload{
			OrderNumber: o.OrderNumber,
			CustomerID:  o.CustomerID,
			VendorID:    o.VendorID,
			Amount:      rr.Amount.StringFixed(2),
			Reason:      rr.Reason,
		})
		if err := h.Outbox.Enqueue(ctx, tx, evt.ID, o.ID, evt.Type, evt); err != nil {
			h.Log.Error().Err(err).Msg("outbox enqueue failed")
			http.Error(w, "decision failed", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		h.Log.Error().Err(err).Msg("commit failed")
		http.Error(w, "decision failed", http.StatusInternalServerError)
		return
	}

	rr.Status = decision
	rr.DecidedBy = claims.UserID
	rr.DecidedAt = &now
	writeJSON(w, http.StatusOK, rr)
}
