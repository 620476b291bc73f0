package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type PaymentsPG struct{ DB *pgxpool.Pool }

func (r *PaymentsPG) CreateTx(ctx context.Context, tx pgx.Tx, p models.Payment) error {
	_, err := tx.Exec(ctx, `
		insert into payments(id, order_id, method, amount, status, reference)
		values ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.OrderID, p.Method, p.Amount, p.Status, p.Reference)
	return err
}

func (r *PaymentsPG) ByOrder(ctx context.Context, orderID string) (models.Payment, error) {
	var p models.Payment
	err := r.DB.QueryRow(ctx, `
		select id, order_id, method, amount, status, reference, created_at, updated_at
		from payments where order_id = $1
	`, orderID).Scan(&p.ID, &p.OrderID, &p.Method, &p.Amount, &p.Status, &p.Reference, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Payment{}, ErrNotFound
	}
	return p, err
}

func (r *PaymentsPG) MarkRefundedTx(ctx context.Context, tx pgx.Tx, orderID string) error {
	ct, err := tx.Exec(ctx, `
		update payments set status = 'refunded', updated_at = now() where order_id = $1
	`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PaymentsPG) CreateRefundRequest(ctx context.Context, rr models.RefundRequest) error {
	_, err := r.DB.Exec(ctx, `
		insert into refund_requests(id, order_id, customer_id, amount, reason, status)
		values ($1, $2, $3, $4, $5, $6)
	`, rr.ID, rr.OrderID, rr.CustomerID, rr.Amount, rr.Reason, rr.Status)
	return err
}

func (r *PaymentsPG) RefundRequestByID(ctx context.Context, id string) (models.RefundRequest, error) {
	var rr models.RefundRequest
	err := r.DB.QueryRow(ctx, `
		select id, order_id, customer_id, amount, reason, status, coalesce(decided_by::text, ''), decided_at, created_at
		from refund_requests where id = $1
	`, id).Scan(&rr.ID, &rr.OrderID, &rr.CustomerID, &rr.Amount, &rr.Reason, &rr.Status, &rr.DecidedBy, &rr.DecidedAt, &rr.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.RefundRequest{}, ErrNotFound
	}
	return rr, err
}

func (r *PaymentsPG) ListRefundRequests(ctx context.Context, customerID, vendorID, status string) ([]models.RefundRequest, error) {
	rows, err := r.DB.Query(ctx, `
		select rr.id, rr.order_id, rr.customer_id, rr.amount, rr.reason, rr.status,
		       coalesce(rr.decided_by::text, ''), rr.decided_at, rr.created_at
		from refund_requests rr
		join orders o on o.id = rr.order_id
		where ($1 = '' or rr.customer_id::text = $1)
		  and ($2 = '' or o.vendor_id::text = $2)
		  and ($3 = '' or rr.status = $3)
		order by rr.created_at desc
	`, customerID, vendorID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RefundRequest
	for rows.Next() {
		var rr models.RefundRequest
		if err := rows.Scan(&rr.ID, &rr.OrderID, &rr.CustomerID, &rr.Amount, &rr.Reason,
			&rr.Status, &rr.DecidedBy, &rr.DecidedAt, &rr.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rr)
	}
	return out, rows.Err()
}

// DecideRefundTx flips a requested refund to approved or denied. Returns
// ErrNotFound if the request was already decided.
func (r *PaymentsPG) DecideRefundTx(ctx context.Context, tx pgx.Tx, id, decision, decidedBy string, at time.Time) error {
	ct, err := tx.Exec(ctx, `
		update refund_requests
		set status = $2, decided_by = $3, decided_at = $4
		where id = $1 and status = 'requested'
	`, id, decision, decidedBy, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
