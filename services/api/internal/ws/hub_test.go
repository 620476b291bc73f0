package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gawulo-platform/shared/pkg/models"
)

func testClient(group, role string) *Client {
	return &Client{send: make(chan []byte, sendBuffer), group: group, role: role}
}

func TestBroadcastReachesGroupAndAdmins(t *testing.T) {
	h := NewHub(zerolog.Nop())

	vendor := testClient(VendorGroup("v-1"), models.RoleVendor)
	otherVendor := testClient(VendorGroup("v-2"), models.RoleVendor)
	admin := testClient(GroupAdmin, models.RoleAdmin)
	h.register(vendor)
	h.register(otherVendor)
	h.register(admin)

	h.Broadcast("new_order", map[string]string{"id": "o-1"}, VendorGroup("v-1"))

	select {
	case raw := <-vendor.send:
		var msg struct {
			Type      string            `json:"type"`
			Order     map[string]string `json:"order"`
			Timestamp time.Time         `json:"timestamp"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("bad frame: %v", err)
		}
		if msg.Type != "new_order" {
			t.Errorf("type = %s, want new_order", msg.Type)
		}
		if msg.Order["id"] != "o-1" {
			t.Errorf("order = %v, want the order under the order key", msg.Order)
		}
		if msg.Timestamp.IsZero() {
			t.Error("frame must carry a timestamp")
		}
	default:
		t.Fatal("vendor socket got nothing")
	}

	select {
	case <-admin.send:
	default:
		t.Error("admin socket should receive every broadcast")
	}

	select {
	case raw := <-otherVendor.send:
		t.Errorf("other vendor should not receive the message, got %s", raw)
	default:
	}
}

func TestBroadcastMultipleGroups(t *testing.T) {
	h := NewHub(zerolog.Nop())

	vendor := testClient(VendorGroup("v-1"), models.RoleVendor)
	customer := testClient(CustomerGroup("u-1"), models.RoleCustomer)
	h.register(vendor)
	h.register(customer)

	h.Broadcast("order_update", nil, VendorGroup("v-1"), CustomerGroup("u-1"))

	if len(vendor.send) != 1 || len(customer.send) != 1 {
		t.Errorf("vendor=%d customer=%d frames, want 1 each", len(vendor.send), len(customer.send))
	}
}

func TestUnregister(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := testClient(CustomerGroup("u-1"), models.RoleCustomer)
	h.register(c)

	if got := h.GroupSize(CustomerGroup("u-1")); got != 1 {
		t.Fatalf("group size = %d, want 1", got)
	}

	h.unregister(c)
	if got := h.GroupSize(CustomerGroup("u-1")); got != 0 {
		t.Errorf("group size = %d, want 0 after unregister", got)
	}
	if _, open := <-c.send; open {
		t.Error("send channel should be closed")
	}

	// A second unregister of the same client is a no-op.
	h.unregister(c)
}

func TestGroupNames(t *testing.T) {
	if got := VendorGroup("v-1"); got != "vendor_v-1_orders" {
		t.Errorf("VendorGroup = %s", got)
	}
	if got := CustomerGroup("u-1"); got != "customer_u-1_orders" {
		t.Errorf("CustomerGroup = %s", got)
	}
}
