package models

import (
	"time"

	"github.com/google/uuid"
)

type Event[T any] struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Version int       `json:"version"`
	Time    time.Time `json:"time"`
	OrderID string    `json:"order_id"`
	Payload T         `json:"payload"`
}

func NewEvent[T any](eventType, orderID string, payload T) Event[T] {
	return Event[T]{
		ID:      uuid.NewString(),
		Type:    eventType,
		Version: 1,
		Time:    time.Now(),
		OrderID: orderID,
		Payload: payload,
	}
}

const (
	EventOrderCreated       = "orders.created"
	EventOrderStatusChanged = "orders.status_changed"
	EventOrderRefunded      = "orders.refunded"
)

type OrderCreatedPayload struct {
	OrderNumber  string      `json:"order_number"`
	CustomerID   string      `json:"customer_id"`
	VendorID     string      `json:"vendor_id"`
	DeliveryType string      `json:"delivery_type"`
	TotalAmount  string      `json:"total_amount"`
	Items        []OrderItem `json:"items"`
}

type OrderStatusChangedPayload struct {
	OrderNumber  string `json:"order_number"`
	CustomerID   string `json:"customer_id"`
	VendorID     string `json:"vendor_id"`
	DeliveryType string `json:"delivery_type"`
	OldStatus    string `json:"old_status"`
	NewStatus    string `json:"new_status"`
	Notes        string `json:"notes,omitempty"`
	ChangedBy    string `json:"changed_by"`
}

type OrderRefundedPayload struct {
	OrderNumber string `json:"order_number"`
	CustomerID  string `json:"customer_id"`
	VendorID    string `json:"vendor_id"`
	Amount      string `json:"amount"`
	Reason      string `json:"reason,omitempty"`
}
