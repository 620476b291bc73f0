package handlers

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gawulo-platform/shared/pkg/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestOrderTotalsDelivery(t *testing.T) {
	items := []models.OrderItem{
		{Quantity: 2, UnitPrice: dec("45.00"), TotalPrice: dec("90.00")},
		{Quantity: 1, UnitPrice: dec("12.50"), TotalPrice: dec("12.50")},
	}

	subtotal, fee, tax, total := orderTotals(items, models.DeliveryTypeDelivery, dec("25.00"), 15)

	if !subtotal.Equal(dec("102.50")) {
		t.Errorf("subtotal = %s, want 102.50", subtotal)
	}
	if !fee.Equal(dec("25.00")) {
		t.Errorf("fee = %s, want 25.00", fee)
	}
	if !tax.Equal(dec("15.38")) {
		t.Errorf("tax = %s, want 15.38", tax)
	}
	if !total.Equal(dec("142.88")) {
		t.Errorf("total = %s, want 142.88", total)
	}
}

func TestOrderTotalsPickupHasNoDeliveryFee(t *testing.T) {
	items := []models.OrderItem{{Quantity: 1, UnitPrice: dec("100.00"), TotalPrice: dec("100.00")}}

	subtotal, fee, tax, total := orderTotals(items, models.DeliveryTypePickup, dec("25.00"), 15)

	if !fee.IsZero() {
		t.Errorf("pickup fee = %s, want 0", fee)
	}
	if !tax.Equal(dec("15.00")) {
		t.Errorf("tax = %s, want 15.00", tax)
	}
	if !total.Equal(subtotal.Add(tax)) {
		t.Errorf("total = %s, want subtotal plus tax", total)
	}
}

func TestOrderTotalsTaxRounding(t *testing.T) {
	// 15% of 0.10 is 0.015, which must round to two decimal places.
	items := []models.OrderItem{{Quantity: 1, UnitPrice: dec("0.10"), TotalPrice: dec("0.10")}}

	_, _, tax, _ := orderTotals(items, models.DeliveryTypePickup, decimal.Zero, 15)

	if tax.Exponent() < -2 {
		t.Errorf("tax %s has more than two decimal places", tax)
	}
}

func TestGenerateOrderNumber(t *testing.T) {
	now := time.Date(2025, 1, 7, 9, 31, 0, 0, time.UTC)
	n := generateOrderNumber(now)

	if !regexp.MustCompile(`^GAW202501070931[A-Z0-9]{4}$`).MatchString(n) {
		t.Errorf("order number %q does not match expected shape", n)
	}
}
