package status

import (
	"testing"

	"gawulo-platform/shared/pkg/models"
)

func TestNextDeliveryFlow(t *testing.T) {
	cases := []struct {
		current string
		want    []string
	}{
		{models.StatusPending, []string{models.StatusConfirmed, models.StatusCancelled, models.StatusFailed}},
		{models.StatusConfirmed, []string{models.StatusPreparing, models.StatusCancelled}},
		{models.StatusPreparing, []string{models.StatusReady}},
		{models.StatusReady, []string{models.StatusOutForDelivery}},
		{models.StatusOutForDelivery, []string{models.StatusDelivered, models.StatusFailed}},
	}
	for _, c := range cases {
		got := Next(c.current, models.DeliveryTypeDelivery)
		if len(got) != len(c.want) {
			t.Errorf("Next(%s): got %v, want %v", c.current, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("Next(%s): got %v, want %v", c.current, got, c.want)
				break
			}
		}
	}
}

func TestNextPickupSkipsOutForDelivery(t *testing.T) {
	got := Next(models.StatusReady, models.DeliveryTypePickup)
	if len(got) != 1 || got[0] != models.StatusDelivered {
		t.Errorf("pickup ready should go straight to delivered, got %v", got)
	}
}

func TestNextTerminalStatuses(t *testing.T) {
	for _, s := range []string{models.StatusDelivered, models.StatusCancelled, models.StatusFailed} {
		if got := Next(s, models.DeliveryTypeDelivery); got != nil {
			t.Errorf("Next(%s) should be nil, got %v", s, got)
		}
	}
}

func TestCustomerCanOnlyCancel(t *testing.T) {
	got := AllowedFor(models.RoleCustomer, models.StatusPending, models.DeliveryTypeDelivery)
	if len(got) != 1 || got[0] != models.StatusCancelled {
		t.Errorf("customer on pending order: got %v, want [cancelled]", got)
	}

	if AllowedFor(models.RoleCustomer, models.StatusPreparing, models.DeliveryTypeDelivery) != nil {
		t.Error("customer should not be able to touch a preparing order")
	}
}

func TestVendorDrivesFulfilment(t *testing.T) {
	if !CanTransition(models.RoleVendor, models.StatusPending, models.StatusConfirmed, models.DeliveryTypeDelivery) {
		t.Error("vendor should be able to confirm a pending order")
	}
	if !CanTransition(models.RoleVendor, models.StatusPreparing, models.StatusReady, models.DeliveryTypeDelivery) {
		t.Error("vendor should be able to mark preparing as ready")
	}
	if CanTransition(models.RoleVendor, models.StatusPending, models.StatusDelivered, models.DeliveryTypeDelivery) {
		t.Error("vendor must not skip straight from pending to delivered")
	}
}

func TestAdminUnrestrictedWithinTable(t *testing.T) {
	if !CanTransition(models.RoleAdmin, models.StatusOutForDelivery, models.StatusFailed, models.DeliveryTypeDelivery) {
		t.Error("admin should be able to fail an out_for_delivery order")
	}
	if CanTransition(models.RoleAdmin, models.StatusDelivered, models.StatusPending, models.DeliveryTypeDelivery) {
		t.Error("delivered is terminal even for admins")
	}
}

func TestUnknownRoleGetsNothing(t *testing.T) {
	if got := AllowedFor("driver", models.StatusPending, models.DeliveryTypeDelivery); got != nil {
		t.Errorf("unknown role: got %v, want nil", got)
	}
}

func TestCanBeCancelled(t *testing.T) {
	if !CanBeCancelled(models.StatusPending) || !CanBeCancelled(models.StatusConfirmed) {
		t.Error("pending and confirmed orders should be cancellable")
	}
	for _, s := range []string{models.StatusPreparing, models.StatusReady, models.StatusOutForDelivery, models.StatusDelivered} {
		if CanBeCancelled(s) {
			t.Errorf("%s should not be cancellable", s)
		}
	}
}
