package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

type MenuStore interface {
	CreateCategory(ctx context.Context, c models.MenuCategory) error
	Categories(ctx context.Context, vendorID string) ([]models.MenuCategory, error)
	CreateItem(ctx context.Context, m models.MenuItem) error
	ItemByID(ctx context.Context, id string) (models.MenuItem, error)
	UpdateItem(ctx context.Context, m models.MenuItem) error
	DeleteItem(ctx context.Context, id, vendorID string) error
}

type MenuReader interface {
	ItemsByVendor(ctx context.Context, vendorID string) ([]models.MenuItem, error)
	Invalidate(ctx context.Context, vendorID string)
}

type MenuHandler struct {
	Menu    MenuStore
	Cached  MenuReader
	Vendors VendorStore
	Log     zerolog.Logger
}

// VendorMenu is the public menu endpoint, served from the Redis-backed cache.
func (h *MenuHandler) VendorMenu(w http.ResponseWriter, r *http.Request) {
	vendorID := chi.URLParam(r, "id")
	items, err := h.Cached.ItemsByVendor(r.Context(), vendorID)
	if err != nil {
		h.Log.Error().Err(err).Msg("menu fetch failed")
		http.Error(w, "menu fetch failed", http.StatusInternalServerError)
		return
	}
	cats, err := h.Menu.Categories(r.Context(), vendorID)
	if err != nil {
		h.Log.Error().Err(err).Msg("categories fetch failed")
		http.Error(w, "menu fetch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats, "items": items})
}

func (h *MenuHandler) vendorFor(r *http.Request) (models.Vendor, bool) {
	claims, _ := auth.ClaimsFrom(r.Context())
	v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
	if err != nil {
		return models.Vendor{}, false
	}
	return v, true
}

type categoryCreateReq struct {
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (h *MenuHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vendorFor(r)
	if !ok {
		http.Error(w, "vendor profile not found", http.StatusForbidden)
		return
	}
	var req categoryCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	c := models.MenuCategory{
		ID:        uuid.NewString(),
		VendorID:  v.ID,
		Name:      req.Name,
		SortOrder: req.SortOrder,
		IsActive:  true,
	}
	if err := h.Menu.CreateCategory(r.Context(), c); err != nil {
		h.Log.Error().Err(err).Msg("category create failed")
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	h.Cached.Invalidate(r.Context(), v.ID)
	writeJSON(w, http.StatusCreated, c)
}

type menuItemReq struct {
	CategoryID         string           `json:"category_id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Price              decimal.Decimal  `json:"price"`
	OriginalPrice      *decimal.Decimal `json:"original_price"`
	AvailabilityStatus string           `json:"availability_status"`
	IsFeatured         bool             `json:"is_featured"`
	PreparationTime    int              `json:"preparation_time"`
}

func (h *MenuHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vendorFor(r)
	if !ok {
		http.Error(w, "vendor profile not found", http.StatusForbidden)
		return
	}
	var req menuItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.CategoryID == "" || req.Price.IsNegative() || req.Price.IsZero() {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if req.AvailabilityStatus == "" {
		req.AvailabilityStatus = models.ItemAvailable
	}
	if req.PreparationTime <= 0 {
		req.PreparationTime = 30
	}
	m := models.MenuItem{
		ID:                 uuid.NewString(),
		VendorID:           v.ID,
		CategoryID:         req.CategoryID,
		Name:               req.Name,
		Description:        req.Description,
		Price:              req.Price,
		OriginalPrice:      req.OriginalPrice,
		AvailabilityStatus: req.AvailabilityStatus,
		IsFeatured:         req.IsFeatured,
		PreparationTime:    req.PreparationTime,
	}
	if err := h.Menu.CreateItem(r.Context(), m); err != nil {
		h.Log.Error().Err(err).Msg("menu item create failed")
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	h.Cached.Invalidate(r.Context(), v.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (h *MenuHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vendorFor(r)
	if !ok {
		http.Error(w, "vendor profile not found", http.StatusForbidden)
		return
	}
	m, err := h.Menu.ItemByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "menu item not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("menu item lookup failed")
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	if m.VendorID != v.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var req menuItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Name != "" {
		m.Name = req.Name
	}
	if req.CategoryID != "" {
		m.CategoryID = req.CategoryID
	}
	m.Description = req.Description
	if !req.Price.IsZero() {
		m.Price = req.Price
	}
	m.OriginalPrice = req.OriginalPrice
	if req.AvailabilityStatus != "" {
		m.AvailabilityStatus = req.AvailabilityStatus
	}
	m.IsFeatured = req.IsFeatured
	if req.PreparationTime > 0 {
		m.PreparationTime = req.PreparationTime
	}

	if err := h.Menu.UpdateItem(r.Context(), m); err != nil {
		h.Log.Error().Err(err).Msg("menu item update failed")
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	h.Cached.Invalidate(r.Context(), v.ID)
	writeJSON(w, http.StatusOK, m)
}

func (h *MenuHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	v, ok := h.vendorFor(r)
	if !ok {
		http.Error(w, "vendor profile not found", http.StatusForbidden)
		return
	}
	if err := h.Menu.DeleteItem(r.Context(), chi.URLParam(r, "id"), v.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "menu item not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("menu item delete failed")
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	h.Cached.Invalidate(r.Context(), v.ID)
	w.WriteHeader(http.StatusNoContent)
}
