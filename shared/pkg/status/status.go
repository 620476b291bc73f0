// Package status holds the order-status transition table.
//
// Transitions are keyed by (current status, delivery type) and then filtered
// by the role of the actor requesting the change.
package status

import "gawulo-platform/shared/pkg/models"

type key struct {
	current      string
	deliveryType string
}

// transitions lists every status reachable from a given one. Pickup orders
// skip out_for_delivery and go straight from ready to delivered.
var transitions = map[key][]string{
	{models.StatusPending, models.DeliveryTypeDelivery}:        {models.StatusConfirmed, models.StatusCancelled, models.StatusFailed},
	{models.StatusPending, models.DeliveryTypePickup}:          {models.StatusConfirmed, models.StatusCancelled, models.StatusFailed},
	{models.StatusConfirmed, models.DeliveryTypeDelivery}:      {models.StatusPreparing, models.StatusCancelled},
	{models.StatusConfirmed, models.DeliveryTypePickup}:        {models.StatusPreparing, models.StatusCancelled},
	{models.StatusPreparing, models.DeliveryTypeDelivery}:      {models.StatusReady},
	{models.StatusPreparing, models.DeliveryTypePickup}:        {models.StatusReady},
	{models.StatusReady, models.DeliveryTypeDelivery}:          {models.StatusOutForDelivery},
	{models.StatusReady, models.DeliveryTypePickup}:            {models.StatusDelivered},
	{models.StatusOutForDelivery, models.DeliveryTypeDelivery}: {models.StatusDelivered, models.StatusFailed},
}

// Next returns the statuses reachable from current for the given delivery
// type, before any role filtering. Terminal and unknown statuses return nil.
func Next(current, deliveryType string) []string {
	next, ok := transitions[key{current, deliveryType}]
	if !ok {
		return nil
	}
	out := make([]string, len(next))
	copy(out, next)
	return out
}

// AllowedFor filters Next by role. Customers may only cancel their own
// orders while cancellation is still possible; vendors drive fulfilment;
// admins are unrestricted.
func AllowedFor(role, current, deliveryType string) []string {
	next := Next(current, deliveryType)
	if next == nil {
		return nil
	}
	switch role {
	case models.RoleAdmin:
		return next
	case models.RoleVendor:
		return next
	case models.RoleCustomer:
		var out []string
		for _, s := range next {
			if s == models.StatusCancelled {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CanTransition reports whether role may move an order from current to next.
func CanTransition(role, current, next, deliveryType string) bool {
	for _, s := range AllowedFor(role, current, deliveryType) {
		if s == next {
			return true
		}
	}
	return false
}

// CanBeCancelled mirrors Order.can_be_cancelled: only pending and confirmed
// orders are cancellable.
func CanBeCancelled(current string) bool {
	return current == models.StatusPending || current == models.StatusConfirmed
}
