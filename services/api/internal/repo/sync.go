package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

type SyncPG struct{ DB *pgxpool.Pool }

// Enqueue inserts a batch of offline operations. Rows whose client_op_id the
// same user already submitted are skipped, so clients can re-submit a batch
// after a dropped connection without duplicating work. The dedup is scoped
// per user: one user's ids must never suppress another's operations.
func (r *SyncPG) Enqueue(ctx context.Context, ops []models.SyncOperation) (int, error) {
	inserted := 0
	for _, op := range ops {
		ct, err := r.DB.Exec(ctx, `
			insert into sync_operations(
				id, user_id, client_op_id, operation, model_type, record_id,
				payload, base_version, status, max_retries, next_attempt_at
			)
			values ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9, now())
			on conflict (user_id, client_op_id) do nothing
		`, op.ID, op.UserID, op.ClientOpID, op.Operation, op.ModelType,
			op.RecordID, op.Payload, op.BaseVersion, op.MaxRetries)
		if err != nil {
			return inserted, err
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}

func (r *SyncPG) Status(ctx context.Context, userID string) (models.SyncStatus, error) {
	var s models.SyncStatus
	err := r.DB.QueryRow(ctx, `
		select
			count(*),
			count(*) filter (where status = 'pending'),
			count(*) filter (where status = 'failed'),
			count(*) filter (where status = 'conflict'),
			max(processed_at)
		from sync_operations
		where user_id = $1
	`, userID).Scan(&s.QueueLength, &s.Pending, &s.Failed, &s.Conflicts, &s.LastProcessed)
	return s, err
}

func (r *SyncPG) Conflicts(ctx context.Context, userID string) ([]models.SyncConflict, error) {
	rows, err := r.DB.Query(ctx, `
		select id, op_id, user_id, model_type, record_id, local_data, server_data, strategy, resolved, created_at
		from sync_conflicts
		where user_id = $1 and not resolved
		order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SyncConflict
	for rows.Next() {
		var c models.SyncConflict
		if err := rows.Scan(&c.ID, &c.OpID, &c.UserID, &c.ModelType, &c.RecordID,
			&c.LocalData, &c.ServerData, &c.Strategy, &c.Resolved, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SyncPG) Operations(ctx context.Context, userID string, statusFilter string) ([]models.SyncOperation, error) {
	rows, err := r.DB.Query(ctx, `
		select id, user_id, client_op_id, operation, model_type, coalesce(record_id, ''),
		       payload, base_version, status, coalesce(error_message, ''),
		       retry_count, max_retries, next_attempt_at, created_at, processed_at
		from sync_operations
		where user_id = $1 and ($2 = '' or status = $2)
		order by created_at
	`, userID, statusFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SyncOperation
	for rows.Next() {
		var op models.SyncOperation
		if err := rows.Scan(&op.ID, &op.UserID, &op.ClientOpID, &op.Operation, &op.ModelType,
			&op.RecordID, &op.Payload, &op.BaseVersion, &op.Status, &op.ErrorMessage,
			&op.RetryCount, &op.MaxRetries, &op.NextAttemptAt, &op.CreatedAt, &op.ProcessedAt); err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}
