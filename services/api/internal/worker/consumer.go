package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/ws"
	"gawulo-platform/shared/pkg/models"
	"gawulo-platform/shared/pkg/rabbit"
)

type NotificationWriter interface {
	Create(ctx context.Context, n models.Notification) error
}

type Dedup interface {
	TryMarkProcessed(ctx context.Context, eventID, eventType, orderID string) (bool, error)
}

type VendorUsers interface {
	UserIDByVendor(ctx context.Context, vendorID string) (string, error)
	IncrementOrders(ctx context.Context, vendorID string) error
}

// Consumer turns the order events published through the outbox back into user
// facing notifications and realtime pushes. It runs inside the API process so
// it can reach the hub directly.
type Consumer struct {
	Log zerolog.Logger

	Hub           *ws.Hub
	Notifications NotificationWriter
	Processed     Dedup
	Vendors       VendorUsers

	RetryPub *rabbit.Publisher
	DLQPub   *rabbit.Publisher

	Service     string
	MaxAttempts int
	DLQKey      string
}

func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	c.Log.Info().Msg("order events consumer started")
	for {
		select {
		case <-ctx.Done():
			c.Log.Info().Msg("order events consumer stopped")
			return
		case d, ok := <-deliveries:
			if !ok {
				c.Log.Info().Msg("deliveries closed")
				return
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var evt models.Event[json.RawMessage]
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		c.Log.Error().Err(err).Str("rk", d.RoutingKey).Msg("bad json -> dlq")
		_ = rabbit.RetryOrDLQ(ctx, d, c.Service, 0, c.RetryPub, c.DLQPub, c.DLQKey)
		return
	}
	if evt.OrderID == "" || evt.ID == "" {
		c.Log.Error().Str("rk", d.RoutingKey).Msg("missing order_id/event_id -> dlq")
		_ = rabbit.RetryOrDLQ(ctx, d, c.Service, 0, c.RetryPub, c.DLQPub, c.DLQKey)
		return
	}

	fresh, err := c.Processed.TryMarkProcessed(ctx, evt.ID, evt.Type, evt.OrderID)
	if err != nil {
		c.Log.Error().Err(err).Str("event_id", evt.ID).Msg("dedup check failed -> retry/dlq")
		_ = rabbit.RetryOrDLQ(ctx, d, c.Service, int32(c.MaxAttempts), c.RetryPub, c.DLQPub, c.DLQKey)
		return
	}
	if !fresh {
		c.Log.Debug().Str("event_id", evt.ID).Msg("duplicate event -> ack")
		_ = d.Ack(false)
		return
	}

	switch evt.Type {
	case models.EventOrderCreated:
		err = c.orderCreated(ctx, evt)
	case models.EventOrderStatusChanged:
		err = c.statusChanged(ctx, evt)
	case models.EventOrderRefunded:
		err = c.refunded(ctx, evt)
	default:
		c.Log.Warn().Str("rk", d.RoutingKey).Str("type", evt.Type).Msg("unexpected event type -> ack")
		_ = d.Ack(false)
		return
	}

	if err != nil {
		c.Log.Error().Err(err).Str("event_id", evt.ID).Str("order_id", evt.OrderID).Msg("event handling failed -> retry/dlq")
		_ = rabbit.RetryOrDLQ(ctx, d, c.Service, int32(c.MaxAttempts), c.RetryPub, c.DLQPub, c.DLQKey)
		return
	}
	_ = d.Ack(false)
}


// orderBody is what goes in the frame's "order" field: the event payload
// with the order id folded in, so the pushed object is self-describing.
func orderBody(evt models.Event[json.RawMessage]) any {
	var m map[string]any
	if err := json.Unmarshal(evt.Payload, &m); err != nil || m == nil {
		return evt.Payload
	}
	m["id"] = evt.OrderID
	return m
}

func (c *Consumer) orderCreated(ctx context.Context, evt models.Event[json.RawMessage]) error {
	var p models.OrderCreatedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return err
	}

	// Notifications are addressed to accounts, so resolve the vendor's owner.
	vendorUser, err := c.Vendors.UserIDByVendor(ctx, p.VendorID)
	if err != nil {
		return err
	}
	if err := c.Notifications.Create(ctx, models.Notification{
		ID:      uuid.NewString(),
		UserID:  vendorUser,
		Type:    "new_order",
		OrderID: evt.OrderID,
		Message: "New order " + p.OrderNumber + " received",
	}); err != nil {
		return err
	}

	// Lifetime counter shown on the vendor card.
	if err := c.Vendors.IncrementOrders(ctx, p.VendorID); err != nil {
		return err
	}

	c.Hub.Broadcast("new_order", orderBody(evt), ws.VendorGroup(p.VendorID), ws.CustomerGroup(p.CustomerID))
	return nil
}

func (c *Consumer) statusChanged(ctx context.Context, evt models.Event[json.RawMessage]) error {
	var p models.OrderStatusChangedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return err
	}

	if err := c.Notifications.Create(ctx, models.Notification{
		ID:      uuid.NewString(),
		UserID:  p.CustomerID,
		Type:    "order_update",
		OrderID: evt.OrderID,
		Message: "Order " + p.OrderNumber + " is now " + p.NewStatus,
	}); err != nil {
		return err
	}

	c.Hub.Broadcast("order_update", orderBody(evt), ws.VendorGroup(p.VendorID), ws.CustomerGroup(p.CustomerID))
	return nil
}

func (c *Consumer) refunded(ctx context.Context, evt models.Event[json.RawMessage]) error {
	var p models.OrderRefundedPayload
	if err := json.Unmarshal(evt.Payload, &p); err != nil {
		return err
	}

	if err := c.Notifications.Create(ctx, models.Notification{
		ID:      uuid.NewString(),
		UserID:  p.CustomerID,
		Type:    "order_refunded",
		OrderID: evt.OrderID,
		Message: "Order " + p.OrderNumber + " was refunded (" + p.Amount + ")",
	}); err != nil {
		return err
	}

	c.Hub.Broadcast("order_update", orderBody(evt), ws.VendorGroup(p.VendorID), ws.CustomerGroup(p.CustomerID))
	return nil
}
