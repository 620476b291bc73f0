package worker

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/ws"
	"gawulo-platform/shared/pkg/models"
)

type fakeAck struct {
	acked  bool
	nacked bool
}

func (f *fakeAck) Ack(_ uint64, _ bool) error          { f.acked = true; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, _ bool) error { f.nacked = true; return nil }
func (f *fakeAck) Reject(_ uint64, _ bool) error       { return nil }

type fakeNotifications struct{ created []models.Notification }

func (f *fakeNotifications) Create(_ context.Context, n models.Notification) error {
	f.created = append(f.created, n)
	return nil
}

type fakeDedup struct{ seen map[string]bool }

func (f *fakeDedup) TryMarkProcessed(_ context.Context, eventID, _, _ string) (bool, error) {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[eventID] {
		return false, nil
	}
	f.seen[eventID] = true
	return true, nil
}

type fakeVendorUsers struct {
	owner       string
	incremented []string
}

func (f *fakeVendorUsers) UserIDByVendor(_ context.Context, _ string) (string, error) {
	return f.owner, nil
}

func (f *fakeVendorUsers) IncrementOrders(_ context.Context, vendorID string) error {
	f.incremented = append(f.incremented, vendorID)
	return nil
}

func newTestConsumer() (*Consumer, *fakeNotifications, *fakeVendorUsers) {
	notifs := &fakeNotifications{}
	vendors := &fakeVendorUsers{owner: "vendor-owner"}
	return &Consumer{
		Log:           zerolog.Nop(),
		Hub:           ws.NewHub(zerolog.Nop()),
		Notifications: notifs,
		Processed:     &fakeDedup{},
		Vendors:       vendors,
		Service:       "api",
		MaxAttempts:   3,
		DLQKey:        "dlq.api.orders",
	}, notifs, vendors
}

func delivery(t *testing.T, evt any) (amqp.Delivery, *fakeAck) {
	t.Helper()
	body, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	ack := &fakeAck{}
	return amqp.Delivery{Acknowledger: ack, Body: body}, ack
}

func TestConsumerOrderCreated(t *testing.T) {
	c, notifs, vendors := newTestConsumer()

	evt := models.NewEvent(models.EventOrderCreated, "order-1", models.OrderCreatedPayload{
		OrderNumber: "GAW202501070931XK4D",
		CustomerID:  "cust-1",
		VendorID:    "vend-1",
	})
	d, ack := delivery(t, evt)

	c.handle(context.Background(), d)

	if !ack.acked {
		t.Fatal("delivery not acked")
	}
	if len(notifs.created) != 1 {
		t.Fatalf("got %d notifications, want 1", len(notifs.created))
	}
	n := notifs.created[0]
	if n.UserID != "vendor-owner" {
		t.Errorf("notification addressed to %s, want the vendor's account", n.UserID)
	}
	if n.Type != "new_order" || n.OrderID != "order-1" {
		t.Errorf("unexpected notification %+v", n)
	}
	if len(vendors.incremented) != 1 || vendors.incremented[0] != "vend-1" {
		t.Errorf("incremented %v, want the vendor's order counter bumped once", vendors.incremented)
	}
}

func TestConsumerStatusChangedNotifiesCustomer(t *testing.T) {
	c, notifs, vendors := newTestConsumer()

	evt := models.NewEvent(models.EventOrderStatusChanged, "order-1", models.OrderStatusChangedPayload{
		OrderNumber: "GAW202501070931XK4D",
		CustomerID:  "cust-1",
		VendorID:    "vend-1",
		OldStatus:   models.StatusPending,
		NewStatus:   models.StatusConfirmed,
	})
	d, ack := delivery(t, evt)

	c.handle(context.Background(), d)

	if !ack.acked {
		t.Fatal("delivery not acked")
	}
	if len(notifs.created) != 1 || notifs.created[0].UserID != "cust-1" {
		t.Fatalf("expected one notification for the customer, got %+v", notifs.created)
	}
	if len(vendors.incremented) != 0 {
		t.Errorf("status change bumped the order counter: %v", vendors.incremented)
	}
}

func TestConsumerDuplicateIsAckedWithoutSideEffects(t *testing.T) {
	c, notifs, _ := newTestConsumer()

	evt := models.NewEvent(models.EventOrderRefunded, "order-1", models.OrderRefundedPayload{
		OrderNumber: "GAW202501070931XK4D",
		CustomerID:  "cust-1",
		VendorID:    "vend-1",
		Amount:      "142.88",
	})

	d1, ack1 := delivery(t, evt)
	c.handle(context.Background(), d1)
	if !ack1.acked || len(notifs.created) != 1 {
		t.Fatalf("first delivery: acked=%v notifications=%d", ack1.acked, len(notifs.created))
	}

	// Same event id redelivered.
	d2, ack2 := delivery(t, evt)
	c.handle(context.Background(), d2)
	if !ack2.acked {
		t.Error("duplicate should still be acked")
	}
	if len(notifs.created) != 1 {
		t.Errorf("duplicate produced a second notification")
	}
}

func TestConsumerUnknownTypeIsAcked(t *testing.T) {
	c, notifs, _ := newTestConsumer()

	evt := models.NewEvent("orders.archived", "order-1", struct{}{})
	d, ack := delivery(t, evt)

	c.handle(context.Background(), d)

	if !ack.acked {
		t.Error("unknown event types should be acked, not retried")
	}
	if len(notifs.created) != 0 {
		t.Errorf("unknown event produced notifications: %+v", notifs.created)
	}
}
