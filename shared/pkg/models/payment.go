package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentMethodCash        = "cash"
	PaymentMethodCard        = "card"
	PaymentMethodWallet      = "wallet"
	PaymentMethodMobileMoney = "mobile_money"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

type Payment struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reference string          `json:"reference,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

const (
	RefundRequested = "requested"
	RefundApproved  = "approved"
	RefundDenied    = "denied"
)

type RefundRequest struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
	Status     string          `json:"status"`
	DecidedBy  string          `json:"decided_by,omitempty"`
	DecidedAt  *time.Time      `json:"decided_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
