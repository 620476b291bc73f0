package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gawulo-platform/shared/pkg/cache"
	"gawulo-platform/shared/pkg/models"
)

// ErrConflict reports that the server row changed after the client captured
// its base version. The runner turns it into a sync_conflicts record.
var ErrConflict = errors.New("sync: server version is newer")

// errRejected marks operations that can never succeed, such as a create for a
// record that already exists. The runner fails them without retrying.
var errRejected = errors.New("sync: operation rejected")

// MenuCacheDeleter drops cached menu keys once an apply changed the rows
// behind them. The API caches menus in Redis with a TTL, so without this a
// sync-applied price change can be masked for the rest of the TTL.
type MenuCacheDeleter interface {
	Delete(ctx context.Context, keys ...string) error
}

// Applier replays one offline mutation against the live tables. All methods
// run inside the runner's claim transaction so an apply and its status update
// commit together.
type Applier struct {
	VATRate int64
	Menus   MenuCacheDeleter
}

func (a *Applier) invalidateMenu(ctx context.Context, vendorID string) {
	if a.Menus == nil {
		return
	}
	_ = a.Menus.Delete(ctx, cache.MenuKey(vendorID))
}

func (a *Applier) Apply(ctx context.Context, tx pgx.Tx, op models.SyncOperation) error {
	switch op.ModelType {
	case models.SyncModelOrder:
		if op.Operation != models.SyncOpCreate {
			return fmt.Errorf("%w: orders only support offline create", errRejected)
		}
		return a.createOrder(ctx, tx, op)
	case models.SyncModelReview:
		if op.Operation != models.SyncOpCreate {
			return fmt.Errorf("%w: reviews only support offline create", errRejected)
		}
		return a.createReview(ctx, tx, op)
	case models.SyncModelMenuItem:
		return a.updateMenuItem(ctx, tx, op)
	case models.SyncModelVendorProfile:
		return a.updateVendorProfile(ctx, tx, op)
	default:
		return fmt.Errorf("%w: unknown model type %q", errRejected, op.ModelType)
	}
}

type offlineOrder struct {
	VendorID             string    `json:"vendor_id"`
	DeliveryType         string    `json:"delivery_type"`
	DeliveryAddress      string    `json:"delivery_address"`
	DeliveryInstructions string    `json:"delivery_instructions"`
	SpecialInstructions  string    `json:"special_instructions"`
	PaymentMethod        string    `json:"payment_method"`
	CreatedAt            time.Time `json:"created_at"`
	Items                []struct {
		MenuItemID          string `json:"menu_item_id"`
		Quantity            int    `json:"quantity"`
		SpecialInstructions string `json:"special_instructions"`
	} `json:"items"`
}

// createOrder replays an order captured while the client was offline. Prices
// come from the current menu, not the client, so a stale app cannot charge
// old prices.
func (a *Applier) createOrder(ctx context.Context, tx pgx.Tx, op models.SyncOperation) error {
	var in offlineOrder
	if err := json.Unmarshal(op.Payload, &in); err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	if in.VendorID == "" || len(in.Items) == 0 {
		return fmt.Errorf("%w: vendor_id and items required", errRejected)
	}
	if in.DeliveryType == "" {
		in.DeliveryType = models.DeliveryTypeDelivery
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = models.PaymentMethodCash
	}

	var deliveryFee, minimumOrder decimal.Decimal
	var vendorStatus string
	var verified bool
	err := tx.QueryRow(ctx, `
		select delivery_fee, minimum_order, status, is_verified
		from vendors where id = $1
	`, in.VendorID).Scan(&deliveryFee, &minimumOrder, &vendorStatus, &verified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: vendor not found", errRejected)
		}
		return err
	}
	if vendorStatus != models.VendorActive || !verified {
		return fmt.Errorf("%w: vendor not accepting orders", errRejected)
	}

	orderID := uuid.NewString()
	subtotal := decimal.Zero
	type line struct {
		id, menuItemID, name, instructions string
		qty                                int
		unit, total                        decimal.Decimal
	}
	var lines []line
	for _, it := range in.Items {
		if it.MenuItemID == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: invalid order item", errRejected)
		}
		var name, availability string
		var price decimal.Decimal
		err := tx.QueryRow(ctx, `
			select name, price, availability_status
			from menu_items where id = $1 and vendor_id = $2
		`, it.MenuItemID, in.VendorID).Scan(&name, &price, &availability)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: menu item not found", errRejected)
			}
			return err
		}
		if availability != models.ItemAvailable {
			return fmt.Errorf("%w: menu item unavailable", errRejected)
		}
		total := price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(total)
		lines = append(lines, line{
			id: uuid.NewString(), menuItemID: it.MenuItemID, name: name,
			instructions: it.SpecialInstructions, qty: it.Quantity, unit: price, total: total,
		})
	}
	if subtotal.LessThan(minimumOrder) {
		return fmt.Errorf("%w: order below vendor minimum", errRejected)
	}

	fee := decimal.Zero
	if in.DeliveryType == models.DeliveryTypeDelivery {
		fee = deliveryFee
	}
	tax := subtotal.Mul(decimal.NewFromInt(a.VATRate)).Div(decimal.NewFromInt(100)).Round(2)
	total := subtotal.Add(fee).Add(tax)

	orderNumber := "GAW" + time.Now().Format("200601021504") + orderID[:4]
	_, err = tx.Exec(ctx, `
		insert into orders(
			id, order_number, customer_id, vendor_id, delivery_type,
			delivery_address, delivery_instructions, special_instructions,
			subtotal, delivery_fee, tax_amount, total_amount, status, created_offline
		)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,'pending',true)
	`, orderID, orderNumber, op.UserID, in.VendorID, in.DeliveryType,
		in.DeliveryAddress, in.DeliveryInstructions, in.SpecialInstructions,
		subtotal, fee, tax, total)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if _, err := tx.Exec(ctx, `
			insert into order_items(id, order_id, menu_item_id, name, quantity, unit_price, total_price, special_instructions)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
		`, l.id, orderID, l.menuItemID, l.name, l.qty, l.unit, l.total, l.instructions); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `
		insert into order_status_history(order_id, status, notes, updated_by)
		values ($1, 'pending', 'Order created from offline queue', $2)
	`, orderID, op.UserID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		insert into payments(id, order_id, method, amount, status)
		values ($1, $2, $3, $4, 'pending')
	`, uuid.NewString(), orderID, in.PaymentMethod, total); err != nil {
		return err
	}

	evt := models.NewEvent(models.EventOrderCreated, orderID, models.OrderCreatedPayload{
		OrderNumber:  orderNumber,
		CustomerID:   op.UserID,
		VendorID:     in.VendorID,
		DeliveryType: in.DeliveryType,
		TotalAmount:  total.StringFixed(2),
	})
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		insert into outbox_events(id, order_id, event_type, payload, attempts, next_attempt_at, created_at)
		values ($1::uuid, $2::uuid, $3, $4::jsonb, 0, now(), now())
	`, evt.ID, orderID, evt.Type, string(b))
	return err
}

type offlineReview struct {
	VendorID string `json:"vendor_id"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

func (a *Applier) createReview(ctx context.Context, tx pgx.Tx, op models.SyncOperation) error {
	var in offlineReview
	if err := json.Unmarshal(op.Payload, &in); err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	if in.VendorID == "" || in.Rating < 1 || in.Rating > 5 {
		return fmt.Errorf("%w: invalid review", errRejected)
	}

	var verified bool
	if err := tx.QueryRow(ctx, `
		select exists(
			select 1 from orders
			where customer_id = $1 and vendor_id = $2 and status = 'delivered'
		)
	`, op.UserID, in.VendorID).Scan(&verified); err != nil {
		return err
	}

	_, err := tx.Exec(ctx, `
		insert into vendor_reviews(vendor_id, customer_id, rating, comment, verified)
		values ($1,$2,$3,$4,$5)
	`, in.VendorID, op.UserID, in.Rating, in.Comment, verified)
	return err
}

// checkBaseVersion compares the client's snapshot time against the row's
// updated_at. A newer server row means someone else changed it while the
// client was offline.
func checkBaseVersion(base *time.Time, serverUpdatedAt time.Time) error {
	if base != nil && serverUpdatedAt.After(*base) {
		return ErrConflict
	}
	return nil
}

func (a *Applier) updateMenuItem(ctx context.Context, tx pgx.Tx, op models.SyncOperation) error {
	if op.Operation == models.SyncOpDelete {
		var vendorID string
		err := tx.QueryRow(ctx, `
			delete from menu_items mi
			using vendors v
			where mi.id = $1 and mi.vendor_id = v.id and v.user_id = $2
			returning v.id
		`, op.RecordID, op.UserID).Scan(&vendorID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: menu item not found", errRejected)
			}
			return err
		}
		a.invalidateMenu(ctx, vendorID)
		return nil
	}

	var vendorID string
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		select mi.vendor_id, mi.updated_at
		from menu_items mi
		join vendors v on v.id = mi.vendor_id
		where mi.id = $1 and v.user_id = $2
		for update of mi
	`, op.RecordID, op.UserID).Scan(&vendorID, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: menu item not found", errRejected)
		}
		return err
	}
	if err := checkBaseVersion(op.BaseVersion, updatedAt); err != nil {
		return err
	}

	var in struct {
		Name               *string          `json:"name"`
		Description        *string          `json:"description"`
		Price              *decimal.Decimal `json:"price"`
		AvailabilityStatus *string          `json:"availability_status"`
	}
	if err := json.Unmarshal(op.Payload, &in); err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	_, err = tx.Exec(ctx, `
		update menu_items set
			name = coalesce($2, name),
			description = coalesce($3, description),
			price = coalesce($4, price),
			availability_status = coalesce($5, availability_status),
			updated_at = now()
		where id = $1
	`, op.RecordID, in.Name, in.Description, in.Price, in.AvailabilityStatus)
	if err != nil {
		return err
	}
	a.invalidateMenu(ctx, vendorID)
	return nil
}

func (a *Applier) updateVendorProfile(ctx context.Context, tx pgx.Tx, op models.SyncOperation) error {
	if op.Operation != models.SyncOpUpdate {
		return fmt.Errorf("%w: vendor profiles only support update", errRejected)
	}

	var vendorID string
	var updatedAt time.Time
	err := tx.QueryRow(ctx, `
		select id, updated_at from vendors where user_id = $1 for update
	`, op.UserID).Scan(&vendorID, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: vendor profile not found", errRejected)
		}
		return err
	}
	if err := checkBaseVersion(op.BaseVersion, updatedAt); err != nil {
		return err
	}

	var in struct {
		BusinessName   *string          `json:"business_name"`
		Description    *string          `json:"description"`
		PhoneNumber    *string          `json:"phone_number"`
		Address        *string          `json:"address"`
		MinimumOrder   *decimal.Decimal `json:"minimum_order"`
		DeliveryFee    *decimal.Decimal `json:"delivery_fee"`
		OperatingHours json.RawMessage  `json:"operating_hours"`
	}
	if err := json.Unmarshal(op.Payload, &in); err != nil {
		return fmt.Errorf("%w: %v", errRejected, err)
	}
	_, err = tx.Exec(ctx, `
		update vendors set
			business_name = coalesce($2, business_name),
			description = coalesce($3, description),
			phone_number = coalesce($4, phone_number),
			address = coalesce($5, address),
			minimum_order = coalesce($6, minimum_order),
			delivery_fee = coalesce($7, delivery_fee),
			operating_hours = coalesce($8::jsonb, operating_hours),
			updated_at = now()
		where id = $1
	`, vendorID, in.BusinessName, in.Description, in.PhoneNumber, in.Address,
		in.MinimumOrder, in.DeliveryFee, nullableJSON(in.OperatingHours))
	if err != nil {
		return err
	}
	a.invalidateMenu(ctx, vendorID)
	return nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
