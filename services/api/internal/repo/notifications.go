package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type NotificationsPG struct{ DB *pgxpool.Pool }

func (r *NotificationsPG) Create(ctx context.Context, n models.Notification) error {
	_, err := r.DB.Exec(ctx, `
		insert into notifications(id, user_id, type, order_id, message)
		values ($1, $2, $3, nullif($4, '')::uuid, $5)
	`, n.ID, n.UserID, n.Type, n.OrderID, n.Message)
	return err
}

func (r *NotificationsPG) ByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.DB.Query(ctx, `
		select id, user_id, type, coalesce(order_id::text, ''), message, read, created_at
		from notifications
		where user_id = $1 and (not $2 or not read)
		order by created_at desc
		limit $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.OrderID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationsPG) MarkRead(ctx context.Context, userID, id string) error {
	ct, err := r.DB.Exec(ctx, `
		update notifications set read = true where id = $1 and user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
