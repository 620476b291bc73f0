package handlers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
	"gawulo-platform/shared/pkg/status"
)

// TxStarter opens the transactions the order write paths run in. A pgxpool
// pool satisfies it.
type TxStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type OrdersHandler struct {
	DB       TxStarter
	Orders   *repo.OrdersPG
	Vendors  VendorStore
	Menu     MenuStore
	Payments *repo.PaymentsPG
	Outbox   *repo.OutboxPG
	Status   *repo.OrdersStatusCache
	VATRate  int64
	Log      zerolog.Logger
}

type orderItemReq struct {
	MenuItemID          string `json:"menu_item_id"`
	Quantity            int    `json:"quantity"`
	SpecialInstructions string `json:"special_instructions"`
}

type orderCreateReq struct {
	VendorID             string         `json:"vendor_id"`
	DeliveryType         string         `json:"delivery_type"`
	DeliveryAddress      string         `json:"delivery_address"`
	DeliveryInstructions string         `json:"delivery_instructions"`
	SpecialInstructions  string         `json:"special_instructions"`
	PaymentMethod        string         `json:"payment_method"`
	CreatedOffline       bool           `json:"created_offline"`
	Items                []orderItemReq `json:"items"`
}

// orderTotals computes the money columns for an order: subtotal is the sum of
// line totals, the delivery fee applies only to delivery orders, and VAT is
// charged on the subtotal.
func orderTotals(items []models.OrderItem, deliveryType string, vendorFee decimal.Decimal, vatRate int64) (subtotal, fee, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.TotalPrice)
	}
	fee = decimal.Zero
	if deliveryType == models.DeliveryTypeDelivery {
		fee = vendorFee
	}
	tax = subtotal.Mul(decimal.NewFromInt(vatRate)).Div(decimal.NewFromInt(100)).Round(2)
	total = subtotal.Add(fee).Add(tax)
	return subtotal, fee, tax, total
}

// generateOrderNumber builds a human-readable order reference like
// GAW202501070931XK4D.
func generateOrderNumber(now time.Time) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// crypto/rand failing is unrecoverable for the process anyway.
			panic(err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return "GAW" + now.Format("200601021504") + string(suffix)
}

func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var req orderCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.VendorID == "" || len(req.Items) == 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.DeliveryType == "" {
		req.DeliveryType = models.DeliveryTypeDelivery
	}
	if req.DeliveryType != models.DeliveryTypeDelivery && req.DeliveryType != models.DeliveryTypePickup {
		http.Error(w, "invalid delivery type", http.StatusBadRequest)
		return
	}
	if req.DeliveryType == models.DeliveryTypeDelivery && req.DeliveryAddress == "" {
		http.Error(w, "delivery address required", http.StatusBadRequest)
		return
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.PaymentMethodCash
	}
	for _, it := range req.Items {
		if it.MenuItemID == "" || it.Quantity <= 0 {
			http.Error(w, "invalid items", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	vendor, err := h.Vendors.ByID(ctx, req.VendorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "vendor not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("vendor lookup failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}
	if !vendor.CanAcceptOrders() {
		http.Error(w, "vendor is not accepting orders", http.StatusConflict)
		return
	}

	orderID := uuid.NewString()
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		mi, err := h.Menu.ItemByID(ctx, it.MenuItemID)
		if err != nil {
			http.Error(w, "menu item not found", http.StatusBadRequest)
			return
		}
		if mi.VendorID != vendor.ID || mi.AvailabilityStatus != models.ItemAvailable {
			http.Error(w, "menu item unavailable", http.StatusConflict)
			return
		}
		// Snapshot name and price so later menu edits don't rewrite history.
		items = append(items, models.OrderItem{
			ID:                  uuid.NewString(),
			OrderID:             orderID,
			MenuItemID:          mi.ID,
			Name:                mi.Name,
			Quantity:            it.Quantity,
			UnitPrice:           mi.Price,
			TotalPrice:          mi.Price.Mul(decimal.NewFromInt(int64(it.Quantity))),
			SpecialInstructions: it.SpecialInstructions,
		})
	}

	subtotal, fee, tax, total := orderTotals(items, req.DeliveryType, vendor.DeliveryFee, h.VATRate)
	if subtotal.LessThan(vendor.MinimumOrder) {
		http.Error(w, "order below vendor minimum", http.StatusUnprocessableEntity)
		return
	}

	o := models.Order{
		ID:                   orderID,
		OrderNumber:          generateOrderNumber(time.Now()),
		CustomerID:           claims.UserID,
		VendorID:             vendor.ID,
		DeliveryType:         req.DeliveryType,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryInstructions: req.DeliveryInstructions,
		SpecialInstructions:  req.SpecialInstructions,
		Subtotal:             subtotal,
		DeliveryFee:          fee,
		TaxAmount:            tax,
		TotalAmount:          total,
		Status:               models.StatusPending,
		CreatedOffline:       req.CreatedOffline,
		Items:                items,
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("begin tx failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.Orders.CreateTx(ctx, tx, o); err != nil {
		h.Log.Error().Err(err).Msg("insert order failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}
	if err := h.Orders.AddHistoryTx(ctx, tx, orderID, models.StatusPending, "Order created", claims.UserID); err != nil {
		h.Log.Error().Err(err).Msg("insert history failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}
	if err := h.Payments.CreateTx(ctx, tx, models.Payment{
		ID:      uuid.NewString(),
		OrderID: orderID,
		Method:  req.PaymentMethod,
		Amount:  total,
		Status:  models.PaymentPending,
	}); err != nil {
		h.Log.Error().Err(err).Msg("insert payment failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}

	evt := models.NewEvent(models.EventOrderCreated, orderID, models.OrderCreatedPayload{
		OrderNumber:  o.OrderNumber,
		CustomerID:   o.CustomerID,
		VendorID:     o.VendorID,
		DeliveryType: o.DeliveryType,
		TotalAmount:  o.TotalAmount.StringFixed(2),
		Items:        items,
	})
	if err := h.Outbox.Enqueue(ctx, tx, evt.ID, orderID, evt.Type, evt); err != nil {
		h.Log.Error().Err(err).Msg("outbox enqueue failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Log.Error().Err(err).Msg("commit failed")
		http.Error(w, "failed to create order", http.StatusInternalServerError)
		return
	}

	h.Status.SetStatus(ctx, orderID, models.StatusPending)
	writeJSON(w, http.StatusCreated, o)
}

// canViewOrder enforces the role scoping used by the Django views: admins see
// everything, vendors their own orders, customers theirs.
func (h *OrdersHandler) canViewOrder(ctx context.Context, claims *auth.Claims, o models.Order) bool {
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleVendor:
		v, err := h.Vendors.ByUserID(ctx, claims.UserID)
		return err == nil && v.ID == o.VendorID
	default:
		return o.CustomerID == claims.UserID
	}
}

func (h *OrdersHandler) Detail(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	o, err := h.Orders.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("order lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if !h.canViewOrder(r.Context(), claims, o) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// OrderStatus serves the status polled by clients between websocket pushes.
// It reads through the Redis cache and returns only the status field, so the
// hot path stays off Postgres.
func (h *OrdersHandler) OrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.Status.GetStatus(r.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("status lookup failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"order_id": id, "status": s})
}

func (h *OrdersHandler) History(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	o, err := h.Orders.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !h.canViewOrder(r.Context(), claims, o) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	hist, err := h.Orders.History(r.Context(), o.ID)
	if err != nil {
		h.Log.Error().Err(err).Msg("history fetch failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (h *OrdersHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	orders, err := h.Orders.List(r.Context(), repo.OrderFilter{
		CustomerID:   claims.UserID,
		Status:       q.Get("status"),
		DeliveryType: q.Get("delivery_type"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("my orders failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) VendorOrders(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "vendor profile not found", http.StatusForbidden)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	orders, err := h.Orders.List(r.Context(), repo.OrderFilter{
		VendorID:     v.ID,
		Status:       q.Get("status"),
		DeliveryType: q.Get("delivery_type"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("vendor orders failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrdersHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	orders, err := h.Orders.List(r.Context(), repo.OrderFilter{
		VendorID:     q.Get("vendor_id"),
		Status:       q.Get("status"),
		DeliveryType: q.Get("delivery_type"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("order list failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

type statusUpdateReq struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	var req statusUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	h.transition(w, r, claims, chi.URLParam(r, "id"), req.Status, req.Notes)
}

// Cancel is a convenience for customers; it runs through the same transition
// checks as any other status change.
func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	h.transition(w, r, claims, chi.URLParam(r, "id"), models.StatusCancelled, "Cancelled by customer")
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, claims *auth.Claims, orderID, newStatus, notes string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		h.Log.Error().Err(err).Msg("begin tx failed")
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := h.Orders.LockForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("order lock failed")
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}
	if !h.canViewOrder(ctx, claims, o) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if models.IsTerminal(o.Status) {
		http.Error(w, "order is in a terminal status", http.StatusConflict)
		return
	}
	if !status.CanTransition(claims.Role, o.Status, newStatus, o.DeliveryType) {
		http.Error(w, "transition not allowed", http.StatusConflict)
		return
	}

	if err := h.Orders.UpdateStatusTx(ctx, tx, o.ID, newStatus); err != nil {
		h.Log.Error().Err(err).Msg("status update failed")
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}
	if notes == "" {
		notes = "Status changed from " + o.Status + " to " + newStatus
	}
	if err := h.Orders.AddHistoryTx(ctx, tx, o.ID, newStatus, notes, claims.UserID); err != nil {
		h.Log.Error().Err(err).Msg("insert history failed")
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}

	evt := models.NewEvent(models.EventOrderStatusChanged, o.ID, models.OrderStatusChangedPayload{
		OrderNumber:  o.OrderNumber,
		CustomerID:   o.CustomerID,
		VendorID:     o.VendorID,
		DeliveryType: o.DeliveryType,
		OldStatus:    o.Status,
		NewStatus:    newStatus,
		Notes:        notes,
		ChangedBy:    claims.UserID,
	})
	if err := h.Outbox.Enqueue(ctx, tx, evt.ID, o.ID, evt.Type, evt); err != nil {
		h.Log.Error().Err(err).Msg("outbox enqueue failed")
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		h.Log.Error().Err(err).Msg("commit failed")
		http.Error(w, "status update failed", http.StatusInternalServerError)
		return
	}

	h.Status.SetStatus(ctx, o.ID, newStatus)
	o.Status = newStatus
	writeJSON(w, http.StatusOK, o)
}

type estimatedTimeReq struct {
	EstimatedDeliveryTime time.Time `json:"estimated_delivery_time"`
}

func (h *OrdersHandler) SetEstimatedTime(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	var req estimatedTimeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EstimatedDeliveryTime.IsZero() {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	o, err := h.Orders.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !h.canViewOrder(r.Context(), claims, o) {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if claims.Role == models.RoleCustomer {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if err := h.Orders.SetEstimatedTime(r.Context(), o.ID, req.EstimatedDeliveryTime); err != nil {
		h.Log.Error().Err(err).Msg("set estimated time failed")
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrdersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var customerID, vendorID string
	switch claims.Role {
	case models.RoleAdmin:
		// unscoped
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

	s, err := h.Orders.Stats(r.Context(), customerID, vendorID)
	if err != nil {
		h.Log.Error().Err(err).Msg("order stats failed")
		http.Error(w, "stats failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type ratingReq struct {
	Rating         int    `json:"rating"`
	Comment        string `json:"comment"`
	FoodQuality    *int   `json:"food_quality"`
	DeliverySpeed  *int   `json:"delivery_speed"`
	ServiceQuality *int   `json:"service_quality"`
}

func (h *OrdersHandler) CreateRating(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	var req ratingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "rating must be 1..5", http.StatusBadRequest)
		return
	}

	o, err := h.Orders.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if o.CustomerID != claims.UserID {
		http.Error(w, "order not found", http.StatusNotFound)
		return
	}
	if o.Status != models.StatusDelivered {
		http.Error(w, "only delivered orders can be rated", http.StatusConflict)
		return
	}
	if _, err := h.Orders.RatingByOrder(r.Context(), o.ID); err == nil {
		http.Error(w, "order already rated", http.StatusConflict)
		return
	}

	rt := models.OrderRating{
		OrderID:        o.ID,
		CustomerID:     claims.UserID,
		Rating:         req.Rating,
		Comment:        req.Comment,
		FoodQuality:    req.FoodQuality,
		DeliverySpeed:  req.DeliverySpeed,
		ServiceQuality: req.ServiceQuality,
	}
	if err := h.Orders.CreateRating(r.Context(), rt); err != nil {
		h.Log.Error().Err(err).Msg("rating create failed")
		http.Error(w, "rating failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}
