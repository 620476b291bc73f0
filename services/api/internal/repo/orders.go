package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"gawulo-platform/shared/pkg/models"
)

type OrdersPG struct{ DB *pgxpool.Pool }

const orderCols = `id, order_number, customer_id, vendor_id, delivery_type,
	delivery_address, delivery_instructions, special_instructions,
	subtotal, delivery_fee, tax_amount, total_amount, status,
	estimated_delivery_at, actual_delivery_at, created_offline,
	created_at, updated_at`

func scanOrder(row pgx.Row) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.VendorID, &o.DeliveryType,
		&o.DeliveryAddress, &o.DeliveryInstructions, &o.SpecialInstructions,
		&o.Subtotal, &o.DeliveryFee, &o.TaxAmount, &o.TotalAmount, &o.Status,
		&o.EstimatedDeliveryAt, &o.ActualDeliveryAt, &o.CreatedOffline,
		&o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, ErrNotFound
	}
	return o, err
}

// CreateTx inserts the order and its items within the caller's transaction so
// the outbox event commits atomically with the order.
func (r *OrdersPG) CreateTx(ctx context.Context, tx pgx.Tx, o models.Order) error {
	_, err := tx.Exec(ctx, `
		insert into orders(
			id, order_number, customer_id, vendor_id, delivery_type,
			delivery_address, delivery_instructions, special_instructions,
			subtotal, delivery_fee, tax_amount, total_amount, status, created_offline
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, o.ID, o.OrderNumber, o.CustomerID, o.VendorID, o.DeliveryType,
		o.DeliveryAddress, o.DeliveryInstructions, o.SpecialInstructions,
		o.Subtotal, o.DeliveryFee, o.TaxAmount, o.TotalAmount, o.Status, o.CreatedOffline)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		_, err = tx.Exec(ctx, `
			insert into order_items(id, order_id, menu_item_id, name, quantity, unit_price, total_price, special_instructions)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
		`, it.ID, o.ID, it.MenuItemID, it.Name, it.Quantity, it.UnitPrice, it.TotalPrice, it.SpecialInstructions)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *OrdersPG) ByID(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `select `+orderCols+` from orders where id = $1`, id))
	if err != nil {
		return models.Order{}, err
	}
	o.Items, err = r.Items(ctx, id)
	return o, err
}

func (r *OrdersPG) Items(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		select id, order_id, menu_item_id, name, quantity, unit_price, total_price, special_instructions
		from order_items
		where order_id = $1
		order by id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OrderItem
	for rows.Next() {
		var it models.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.SpecialInstructions); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type OrderFilter struct {
	CustomerID   string
	VendorID     string
	Status       string
	DeliveryType string
	Limit        int
	Offset       int
}

func (r *OrdersPG) List(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		select `+orderCols+`
		from orders
		where ($1 = '' or customer_id::text = $1)
		  and ($2 = '' or vendor_id::text = $2)
		  and ($3 = '' or status = $3)
		  and ($4 = '' or delivery_type = $4)
		order by created_at desc
		limit $5 offset $6
	`, f.CustomerID, f.VendorID, f.Status, f.DeliveryType, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LockForUpdateTx fetches the order row with FOR UPDATE so concurrent status
// changes serialize on the row.
func (r *OrdersPG) LockForUpdateTx(ctx context.Context, tx pgx.Tx, id string) (models.Order, error) {
	return scanOrder(tx.QueryRow(ctx, `select `+orderCols+` from orders where id = $1 for update`, id))
}

func (r *OrdersPG) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id, newStatus string) error {
	var deliveredClause string
	if newStatus == models.StatusDelivered {
		deliveredClause = `, actual_delivery_at = now()`
	}
	ct, err := tx.Exec(ctx, `
		update orders set status = $2, updated_at = now()`+deliveredClause+`
		where id = $1
	`, id, newStatus)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrdersPG) AddHistoryTx(ctx context.Context, tx pgx.Tx, orderID, status, notes, updatedBy string) error {
	_, err := tx.Exec(ctx, `
		insert into order_status_history(order_id, status, notes, updated_by)
		values ($1, $2, $3, $4)
	`, orderID, status, notes, updatedBy)
	return err
}

func (r *OrdersPG) History(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	rows, err := r.DB.Query(ctx, `
		select id, order_id, status, notes, coalesce(updated_by::text, ''), created_at
		from order_status_history
		where order_id = $1
		order by created_at desc
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.OrderStatusHistory
	for rows.Next() {
		var h models.OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Notes, &h.UpdatedBy, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *OrdersPG) SetEstimatedTime(ctx context.Context, id string, at time.Time) error {
	ct, err := r.DB.Exec(ctx, `
		update orders set estimated_delivery_at = $2, updated_at = now() where id = $1
	`, id, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrdersPG) CreateRating(ctx context.Context, rt models.OrderRating) error {
	_, err := r.DB.Exec(ctx, `
		insert into order_ratings(order_id, customer_id, rating, comment, food_quality, delivery_speed, service_quality)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, rt.OrderID, rt.CustomerID, rt.Rating, rt.Comment, rt.FoodQuality, rt.DeliverySpeed, rt.ServiceQuality)
	return err
}

func (r *OrdersPG) RatingByOrder(ctx context.Context, orderID string) (models.OrderRating, error) {
	var rt models.OrderRating
	err := r.DB.QueryRow(ctx, `
		select id, order_id, customer_id, rating, comment, food_quality, delivery_speed, service_quality, created_at
		from order_ratings
		where order_id = $1
	`, orderID).Scan(&rt.ID, &rt.OrderID, &rt.CustomerID, &rt.Rating, &rt.Comment,
		&rt.FoodQuality, &rt.DeliverySpeed, &rt.ServiceQuality, &rt.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OrderRating{}, ErrNotFound
	}
	return rt, err
}

// Stats aggregates order counts and revenue, optionally scoped to a vendor
// or a customer.
func (r *OrdersPG) Stats(ctx context.Context, customerID, vendorID string) (models.OrderStats, error) {
	rows, err := r.DB.Query(ctx, `
		select status, count(*), coalesce(sum(total_amount), 0)
		from orders
		where ($1 = '' or customer_id::text = $1)
		  and ($2 = '' or vendor_id::text = $2)
		group by status
	`, customerID, vendorID)
	if err != nil {
		return models.OrderStats{}, err
	}
	defer rows.Close()

	s := models.OrderStats{ByStatus: map[string]int{}}
	for rows.Next() {
		var st string
		var n int
		var revenue decimal.Decimal
		if err := rows.Scan(&st, &n, &revenue); err != nil {
			return models.OrderStats{}, err
		}
		s.ByStatus[st] = n
		s.TotalOrders += n
		if st == models.StatusDelivered {
			s.TotalRevenue = s.TotalRevenue.Add(revenue)
		}
	}
	if err := rows.Err(); err != nil {
		return models.OrderStats{}, err
	}
	if s.TotalOrders > 0 {
		s.AverageOrder = s.TotalRevenue.DivRound(decimal.NewFromInt(int64(s.TotalOrders)), 2)
	}

	err = r.DB.QueryRow(ctx, `
		select count(*) from orders
		where status = 'delivered' and actual_delivery_at >= date_trunc('day', now())
		  and ($1 = '' or customer_id::text = $1)
		  and ($2 = '' or vendor_id::text = $2)
	`, customerID, vendorID).Scan(&s.CompletedToday)
	return s, err
}
