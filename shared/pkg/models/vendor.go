package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	VendorPending   = "pending"
	VendorActive    = "active"
	VendorSuspended = "suspended"
	VendorInactive  = "inactive"
)

type Vendor struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	BusinessName   string          `json:"business_name"`
	BusinessType   string          `json:"business_type"`
	Description    string          `json:"description,omitempty"`
	PhoneNumber    string          `json:"phone_number"`
	Email          string          `json:"email,omitempty"`
	Address        string          `json:"address"`
	Latitude       *float64        `json:"latitude,omitempty"`
	Longitude      *float64        `json:"longitude,omitempty"`
	OperatingHours json.RawMessage `json:"operating_hours,omitempty"`
	DeliveryRadius int             `json:"delivery_radius"`
	MinimumOrder   decimal.Decimal `json:"minimum_order"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	Status         string          `json:"status"`
	IsVerified     bool            `json:"is_verified"`
	Rating         decimal.Decimal `json:"rating"`
	ReviewCount    int             `json:"review_count"`
	TotalOrders    int             `json:"total_orders"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// CanAcceptOrders mirrors the vendor gating used at order creation.
func (v *Vendor) CanAcceptOrders() bool {
	return v.Status == VendorActive && v.IsVerified
}

type MenuCategory struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendor_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	ItemAvailable   = "available"
	ItemUnavailable = "unavailable"
	ItemOutOfStock  = "out_of_stock"
)

type MenuItem struct {
	ID                 string           `json:"id"`
	VendorID           string           `json:"vendor_id"`
	CategoryID         string           `json:"category_id"`
	Name               string           `json:"name"`
	Description        string           `json:"description,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	OriginalPrice      *decimal.Decimal `json:"original_price,omitempty"`
	AvailabilityStatus string           `json:"availability_status"`
	IsFeatured         bool             `json:"is_featured"`
	PreparationTime    int              `json:"preparation_time"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type VendorReview struct {
	ID         int64     `json:"id"`
	VendorID   string    `json:"vendor_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	Verified   bool      `json:"is_verified_purchase"`
	CreatedAt  time.Time `json:"created_at"`
}

type VendorStats struct {
	TotalOrders   int             `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AverageRating decimal.Decimal `json:"average_rating"`
	ReviewCount   int             `json:"review_count"`
	ActiveItems   int             `json:"active_items"`
}
