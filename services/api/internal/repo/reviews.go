package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type ReviewsPG struct{ DB *pgxpool.Pool }

func (r *ReviewsPG) Create(ctx context.Context, rv models.VendorReview) error {
	_, err := r.DB.Exec(ctx, `
		insert into vendor_reviews(vendor_id, customer_id, rating, comment, verified)
		values ($1, $2, $3, $4, $5)
	`, rv.VendorID, rv.CustomerID, rv.Rating, rv.Comment, rv.Verified)
	return err
}

func (r *ReviewsPG) ByVendor(ctx context.Context, vendorID string, limit, offset int) ([]models.VendorReview, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		select id, vendor_id, customer_id, rating, comment, verified, created_at
		from vendor_reviews
		where vendor_id = $1
		order by created_at desc
		limit $2 offset $3
	`, vendorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VendorReview
	for rows.Next() {
		var rv models.VendorReview
		if err := rows.Scan(&rv.ID, &rv.VendorID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.Verified, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *ReviewsPG) ByCustomer(ctx context.Context, customerID string) ([]models.VendorReview, error) {
	rows, err := r.DB.Query(ctx, `
		select id, vendor_id, customer_id, rating, comment, verified, created_at
		from vendor_reviews
		where customer_id = $1
		order by created_at desc
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VendorReview
	for rows.Next() {
		var rv models.VendorReview
		if err := rows.Scan(&rv.ID, &rv.VendorID, &rv.CustomerID, &rv.Rating, &rv.Comment, &rv.Verified, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// HasOrdered reports whether the customer has a delivered order with the
// vendor, used for the verified purchase flag.
func (r *ReviewsPG) HasOrdered(ctx context.Context, vendorID, customerID string) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `
		select count(*) from orders
		where vendor_id = $1 and customer_id = $2 and status = 'delivered'
	`, vendorID, customerID).Scan(&n)
	return n > 0, err
}
