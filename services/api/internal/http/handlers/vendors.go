package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

type VendorStore interface {
	Create(ctx context.Context, v models.Vendor) error
	ByID(ctx context.Context, id string) (models.Vendor, error)
	ByUserID(ctx context.Context, userID string) (models.Vendor, error)
	List(ctx context.Context, f repo.VendorFilter) ([]models.Vendor, error)
	UpdateProfile(ctx context.Context, v models.Vendor) error
	UpdateRating(ctx context.Context, vendorID string) error
	Stats(ctx context.Context, vendorID string) (models.VendorStats, error)
}

type ReviewStore interface {
	Create(ctx context.Context, rv models.VendorReview) error
	ByVendor(ctx context.Context, vendorID string, limit, offset int) ([]models.VendorReview, error)
	ByCustomer(ctx context.Context, customerID string) ([]models.VendorReview, error)
	HasOrdered(ctx context.Context, vendorID, customerID string) (bool, error)
}

type RoleSetter interface {
	SetRole(ctx context.Context, id, role string) error
}

type VendorsHandler struct {
	Vendors VendorStore
	Reviews ReviewStore
	Users   RoleSetter
	Log     zerolog.Logger
}

func (h *VendorsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	vendors, err := h.Vendors.List(r.Context(), repo.VendorFilter{
		Status:       q.Get("status"),
		BusinessType: q.Get("business_type"),
		Search:       q.Get("search"),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		h.Log.Error().Err(err).Msg("vendor list failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, vendors)
}

func (h *VendorsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	v, err := h.Vendors.ByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "vendor not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("vendor detail failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type vendorRegisterReq struct {
	BusinessName   string          `json:"business_name"`
	BusinessType   string          `json:"business_type"`
	Description    string          `json:"description"`
	PhoneNumber    string          `json:"phone_number"`
	Email          string          `json:"email"`
	Address        string          `json:"address"`
	Latitude       *float64        `json:"latitude"`
	Longitude      *float64        `json:"longitude"`
	OperatingHours json.RawMessage `json:"operating_hours"`
	DeliveryRadius int             `json:"delivery_radius"`
	MinimumOrder   decimal.Decimal `json:"minimum_order"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
}

// Register creates a pending vendor profile for the current user and flips
// their role. The profile stays pending until verified.
func (h *VendorsHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())

	var req vendorRegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.BusinessName == "" || req.BusinessType == "" || req.PhoneNumber == "" || req.Address == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if _, err := h.Vendors.ByUserID(r.Context(), claims.UserID); err == nil {
		http.Error(w, "vendor profile already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		h.Log.Error().Err(err).Msg("vendor lookup failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	v := models.Vendor{
		ID:             uuid.NewString(),
		UserID:         claims.UserID,
		BusinessName:   req.BusinessName,
		BusinessType:   req.BusinessType,
		Description:    req.Description,
		PhoneNumber:    req.PhoneNumber,
		Email:          req.Email,
		Address:        req.Address,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		OperatingHours: req.OperatingHours,
		DeliveryRadius: req.DeliveryRadius,
		MinimumOrder:   req.MinimumOrder,
		DeliveryFee:    req.DeliveryFee,
		Status:         models.VendorPending,
	}
	if err := h.Vendors.Create(r.Context(), v); err != nil {
		h.Log.Error().Err(err).Msg("vendor create failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	if err := h.Users.SetRole(r.Context(), claims.UserID, models.RoleVendor); err != nil {
		h.Log.Error().Err(err).Msg("role update failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *VendorsHandler) MyProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "vendor profile not found", http.StatusNotFound)
			return
		}
		h.Log.Error().Err(err).Msg("vendor profile failed")
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VendorsHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "vendor profile not found", http.StatusNotFound)
		return
	}

	var req vendorRegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.BusinessName != "" {
		v.BusinessName = req.BusinessName
	}
	if req.BusinessType != "" {
		v.BusinessType = req.BusinessType
	}
	v.Description = req.Description
	if req.PhoneNumber != "" {
		v.PhoneNumber = req.PhoneNumber
	}
	v.Email = req.Email
	if req.Address != "" {
		v.Address = req.Address
	}
	v.Latitude = req.Latitude
	v.Longitude = req.Longitude
	if len(req.OperatingHours) > 0 {
		v.OperatingHours = req.OperatingHours
	}
	if req.DeliveryRadius > 0 {
		v.DeliveryRadius = req.DeliveryRadius
	}
	v.MinimumOrder = req.MinimumOrder
	v.DeliveryFee = req.DeliveryFee

	if err := h.Vendors.UpdateProfile(r.Context(), v); err != nil {
		h.Log.Error().Err(err).Msg("vendor update failed")
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *VendorsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	vendorID := chi.URLParam(r, "id")

	// Vendors may only read their own stats; admins read anyone's.
	if claims.Role != models.RoleAdmin {
		v, err := h.Vendors.ByUserID(r.Context(), claims.UserID)
		if err != nil || v.ID != vendorID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	s, err := h.Vendors.Stats(r.Context(), vendorID)
	if err != nil {
		h.Log.Error().Err(err).Msg("vendor stats failed")
		http.Error(w, "stats failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *VendorsHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	reviews, err := h.Reviews.ByVendor(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		h.Log.Error().Err(err).Msg("reviews list failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

type reviewCreateReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *VendorsHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	vendorID := chi.URLParam(r, "id")

	var req reviewCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "rating must be 1..5", http.StatusBadRequest)
		return
	}

	verified, err := h.Reviews.HasOrdered(r.Context(), vendorID, claims.UserID)
	if err != nil {
		h.Log.Error().Err(err).Msg("verified purchase check failed")
		http.Error(w, "review failed", http.StatusInternalServerError)
		return
	}

	rv := models.VendorReview{
		VendorID:   vendorID,
		CustomerID: claims.UserID,
		Rating:     req.Rating,
		Comment:    req.Comment,
		Verified:   verified,
	}
	if err := h.Reviews.Create(r.Context(), rv); err != nil {
		h.Log.Error().Err(err).Msg("review create failed")
		http.Error(w, "review failed", http.StatusInternalServerError)
		return
	}
	if err := h.Vendors.UpdateRating(r.Context(), vendorID); err != nil {
		h.Log.Error().Err(err).Msg("rating refresh failed")
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *VendorsHandler) MyReviews(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	reviews, err := h.Reviews.ByCustomer(r.Context(), claims.UserID)
	if err != nil {
		h.Log.Error().Err(err).Msg("my reviews failed")
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
