package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type VendorsPG struct{ DB *pgxpool.Pool }

const vendorCols = `id, user_id, business_name, business_type, description, phone_number,
	email, address, latitude, longitude, operating_hours, delivery_radius,
	minimum_order, delivery_fee, status, is_verified, rating, review_count,
	total_orders, created_at, updated_at`

func scanVendor(row pgx.Row) (models.Vendor, error) {
	var v models.Vendor
	err := row.Scan(&v.ID, &v.UserID, &v.BusinessName, &v.BusinessType, &v.Description,
		&v.PhoneNumber, &v.Email, &v.Address, &v.Latitude, &v.Longitude,
		&v.OperatingHours, &v.DeliveryRadius, &v.MinimumOrder, &v.DeliveryFee,
		&v.Status, &v.IsVerified, &v.Rating, &v.ReviewCount, &v.TotalOrders,
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Vendor{}, ErrNotFound
	}
	return v, err
}

func (r *VendorsPG) Create(ctx context.Context, v models.Vendor) error {
	_, err := r.DB.Exec(ctx, `
		insert into vendors(
			id, user_id, business_name, business_type, description, phone_number,
			email, address, latitude, longitude, operating_hours, delivery_radius,
			minimum_order, delivery_fee, status
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, v.ID, v.UserID, v.BusinessName, v.BusinessType, v.Description, v.PhoneNumber,
		v.Email, v.Address, v.Latitude, v.Longitude, v.OperatingHours,
		v.DeliveryRadius, v.MinimumOrder, v.DeliveryFee, v.Status)
	return err
}

func (r *VendorsPG) ByID(ctx context.Context, id string) (models.Vendor, error) {
	return scanVendor(r.DB.QueryRow(ctx, `select `+vendorCols+` from vendors where id = $1`, id))
}

func (r *VendorsPG) ByUserID(ctx context.Context, userID string) (models.Vendor, error) {
	return scanVendor(r.DB.QueryRow(ctx, `select `+vendorCols+` from vendors where user_id = $1`, userID))
}

type VendorFilter struct {
	Status       string
	BusinessType string
	Search       string
	Limit        int
	Offset       int
}

func (r *VendorsPG) List(ctx context.Context, f VendorFilter) ([]models.Vendor, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		select `+vendorCols+`
		from vendors
		where ($1 = '' or status = $1)
		  and ($2 = '' or business_type = $2)
		  and ($3 = '' or business_name ilike '%' || $3 || '%')
		order by created_at desc
		limit $4 offset $5
	`, f.Status, f.BusinessType, f.Search, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *VendorsPG) UpdateProfile(ctx context.Context, v models.Vendor) error {
	ct, err := r.DB.Exec(ctx, `
		update vendors
		set business_name = $2, business_type = $3, description = $4,
		    phone_number = $5, email = $6, address = $7,
		    latitude = $8, longitude = $9, operating_hours = $10,
		    delivery_radius = $11, minimum_order = $12, delivery_fee = $13,
		    updated_at = now()
		where id = $1
	`, v.ID, v.BusinessName, v.BusinessType, v.Description, v.PhoneNumber,
		v.Email, v.Address, v.Latitude, v.Longitude, v.OperatingHours,
		v.DeliveryRadius, v.MinimumOrder, v.DeliveryFee)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRating refreshes the denormalized review aggregates on the vendor row.
func (r *VendorsPG) UpdateRating(ctx context.Context, vendorID string) error {
	_, err := r.DB.Exec(ctx, `
		update vendors v
		set rating = coalesce(s.avg_rating, 0),
		    review_count = coalesce(s.cnt, 0),
		    updated_at = now()
		from (
			select round(avg(rating)::numeric, 1) as avg_rating, count(*) as cnt
			from vendor_reviews
			where vendor_id = $1
		) s
		where v.id = $1
	`, vendorID)
	return err
}

// UserIDByVendor resolves the account that owns a vendor, for notification
// fanout.
func (r *VendorsPG) UserIDByVendor(ctx context.Context, vendorID string) (string, error) {
	var userID string
	err := r.DB.QueryRow(ctx, `select user_id from vendors where id = $1`, vendorID).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

func (r *VendorsPG) IncrementOrders(ctx context.Context, vendorID string) error {
	_, err := r.DB.Exec(ctx, `
		update vendors set total_orders = total_orders + 1, updated_at = now() where id = $1
	`, vendorID)
	return err
}

func (r *VendorsPG) Stats(ctx context.Context, vendorID string) (models.VendorStats, error) {
	var s models.VendorStats
	err := r.DB.QueryRow(ctx, `
		select
			coalesce((select count(*) from orders where vendor_id = $1), 0),
			coalesce((select sum(total_amount) from orders where vendor_id = $1 and status = 'delivered'), 0),
			coalesce((select rating from vendors where id = $1), 0),
			coalesce((select review_count from vendors where id = $1), 0),
			coalesce((select count(*) from menu_items where vendor_id = $1 and availability_status = 'available'), 0)
	`, vendorID).Scan(&s.TotalOrders, &s.TotalRevenue, &s.AverageRating, &s.ReviewCount, &s.ActiveItems)
	if err != nil {
		return models.VendorStats{}, err
	}
	return s, nil
}
