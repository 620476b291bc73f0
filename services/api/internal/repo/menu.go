package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type MenuPG struct{ DB *pgxpool.Pool }

const menuItemCols = `id, vendor_id, category_id, name, description, price, original_price,
	availability_status, is_featured, preparation_time, created_at, updated_at`

func scanMenuItem(row pgx.Row) (models.MenuItem, error) {
	var m models.MenuItem
	err := row.Scan(&m.ID, &m.VendorID, &m.CategoryID, &m.Name, &m.Description,
		&m.Price, &m.OriginalPrice, &m.AvailabilityStatus, &m.IsFeatured,
		&m.PreparationTime, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.MenuItem{}, ErrNotFound
	}
	return m, err
}

func (r *MenuPG) CreateCategory(ctx context.Context, c models.MenuCategory) error {
	_, err := r.DB.Exec(ctx, `
		insert into menu_categories(id, vendor_id, name, sort_order, is_active)
		values ($1, $2, $3, $4, $5)
	`, c.ID, c.VendorID, c.Name, c.SortOrder, c.IsActive)
	return err
}

func (r *MenuPG) Categories(ctx context.Context, vendorID string) ([]models.MenuCategory, error) {
	rows, err := r.DB.Query(ctx, `
		select id, vendor_id, name, sort_order, is_active, created_at
		from menu_categories
		where vendor_id = $1 and is_active
		order by sort_order, name
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MenuCategory
	for rows.Next() {
		var c models.MenuCategory
		if err := rows.Scan(&c.ID, &c.VendorID, &c.Name, &c.SortOrder, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *MenuPG) CreateItem(ctx context.Context, m models.MenuItem) error {
	_, err := r.DB.Exec(ctx, `
		insert into menu_items(
			id, vendor_id, category_id, name, description, price, original_price,
			availability_status, is_featured, preparation_time
		)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, m.ID, m.VendorID, m.CategoryID, m.Name, m.Description, m.Price,
		m.OriginalPrice, m.AvailabilityStatus, m.IsFeatured, m.PreparationTime)
	return err
}

func (r *MenuPG) ItemByID(ctx context.Context, id string) (models.MenuItem, error) {
	return scanMenuItem(r.DB.QueryRow(ctx, `select `+menuItemCols+` from menu_items where id = $1`, id))
}

func (r *MenuPG) ItemsByVendor(ctx context.Context, vendorID string) ([]models.MenuItem, error) {
	rows, err := r.DB.Query(ctx, `
		select `+menuItemCols+`
		from menu_items mi
		where vendor_id = $1
		order by (select sort_order from menu_categories c where c.id = mi.category_id), name
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *MenuPG) UpdateItem(ctx context.Context, m models.MenuItem) error {
	ct, err := r.DB.Exec(ctx, `
		update menu_items
		set name = $2, description = $3, price = $4, original_price = $5,
		    availability_status = $6, is_featured = $7, preparation_time = $8,
		    category_id = $9, updated_at = now()
		where id = $1
	`, m.ID, m.Name, m.Description, m.Price, m.OriginalPrice,
		m.AvailabilityStatus, m.IsFeatured, m.PreparationTime, m.CategoryID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MenuPG) DeleteItem(ctx context.Context, id, vendorID string) error {
	ct, err := r.DB.Exec(ctx, `delete from menu_items where id = $1 and vendor_id = $2`, id, vendorID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
