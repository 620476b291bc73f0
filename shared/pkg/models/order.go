package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusPreparing      = "preparing"
	StatusReady          = "ready"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
	StatusFailed         = "failed"
)

const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

type Order struct {
	ID                   string          `json:"id"`
	OrderNumber          string          `json:"order_number"`
	CustomerID           string          `json:"customer_id"`
	VendorID             string          `json:"vendor_id"`
	DeliveryType         string          `json:"delivery_type"`
	DeliveryAddress      string          `json:"delivery_address,omitempty"`
	DeliveryInstructions string          `json:"delivery_instructions,omitempty"`
	SpecialInstructions  string          `json:"special_instructions,omitempty"`
	Subtotal             decimal.Decimal `json:"subtotal"`
	DeliveryFee          decimal.Decimal `json:"delivery_fee"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	TotalAmount          decimal.Decimal `json:"total_amount"`
	Status               string          `json:"status"`
	EstimatedDeliveryAt  *time.Time      `json:"estimated_delivery_time,omitempty"`
	ActualDeliveryAt     *time.Time      `json:"actual_delivery_time,omitempty"`
	CreatedOffline       bool            `json:"created_offline"`
	Items                []OrderItem     `json:"items,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID                  string          `json:"id"`
	OrderID             string          `json:"order_id"`
	MenuItemID          string          `json:"menu_item_id"`
	Name                string          `json:"name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TotalPrice          decimal.Decimal `json:"total_price"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
}

type OrderStatusHistory struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderRating struct {
	ID             int64     `json:"id"`
	OrderID        string    `json:"order_id"`
	CustomerID     string    `json:"customer_id"`
	Rating         int       `json:"rating"`
	Comment        string    `json:"comment,omitempty"`
	FoodQuality    *int      `json:"food_quality,omitempty"`
	DeliverySpeed  *int      `json:"delivery_speed,omitempty"`
	ServiceQuality *int      `json:"service_quality,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type OrderStats struct {
	TotalOrders    int             `json:"total_orders"`
	ByStatus       map[string]int  `json:"by_status"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	AverageOrder   decimal.Decimal `json:"average_order"`
	CompletedToday int             `json:"completed_today"`
}

// IsTerminal reports whether no further transitions are allowed from status.
func IsTerminal(status string) bool {
	switch status {
	case StatusDelivered, StatusCancelled, StatusFailed:
		return true
	}
	return false
}
