package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"gawulo-platform/services/sync-worker/internal/metrics"
	"gawulo-platform/shared/pkg/models"
)

// Runner applies queued offline operations. Each tick claims at most one
// operation per user, oldest first, which keeps per-user ordering even with
// several workers running.
type Runner struct {
	Log zerolog.Logger
	DB  *pgxpool.Pool

	Applier *Applier

	PollInterval time.Duration
	BatchSize    int
	BackoffMax   time.Duration
	Strategy     string
}

func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.PollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Log.Info().Msg("sync runner stopped")
			return
		case <-t.C:
			if err := r.tick(ctx); err != nil {
				r.Log.Error().Err(err).Msg("sync tick failed")
			}
		}
	}
}

func (r *Runner) tick(ctx context.Context) error {
	_ = r.updatePending(ctx)

	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The inner select takes each user's oldest pending op regardless of
	// backoff, then dueOps drops users whose head is not due yet. Filtering
	// on next_attempt_at before the distinct would let a later op leapfrog
	// its user's head while that head waits out a retry.
	rows, err := tx.Query(ctx, `
		select id, user_id, client_op_id, operation, model_type, coalesce(record_id, ''),
		       payload, base_version, retry_count, max_retries, next_attempt_at
		from sync_operations
		where id in (
			select distinct on (user_id) id
			from sync_operations
			where status = 'pending'
			order by user_id, created_at
			limit $1
		)
		order by created_at
		for update skip locked
	`, r.BatchSize)
	if err != nil {
		return err
	}

	var claimed []models.SyncOperation
	for rows.Next() {
		var op models.SyncOperation
		if err := rows.Scan(&op.ID, &op.UserID, &op.ClientOpID, &op.Operation, &op.ModelType,
			&op.RecordID, &op.Payload, &op.BaseVersion, &op.RetryCount, &op.MaxRetries,
			&op.NextAttemptAt); err != nil {
			rows.Close()
			return err
		}
		claimed = append(claimed, op)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	batch := dueOps(claimed, time.Now())
	if len(batch) == 0 {
		return tx.Commit(ctx)
	}

	session := models.SyncSession{ID: uuid.NewString(), Total: len(batch), StartedAt: time.Now()}

	for _, op := range batch {
		outcome := r.applyOne(ctx, tx, op)
		switch outcome {
		case models.SyncCompleted:
			session.Succeeded++
		case models.SyncConflicted:
			session.Conflicts++
		case models.SyncFailed:
			session.Failed++
		}
		metrics.SyncProcessedTotal.WithLabelValues(outcome).Inc()
	}

	if _, err := tx.Exec(ctx, `
		insert into sync_sessions(id, status, total_operations, successful_operations, failed_operations, conflicts, started_at, completed_at)
		values ($1, 'completed', $2, $3, $4, $5, $6, now())
	`, session.ID, session.Total, session.Succeeded, session.Failed, session.Conflicts, session.StartedAt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.Log.Info().Int("total", session.Total).Int("ok", session.Succeeded).
		Int("failed", session.Failed).Int("conflicts", session.Conflicts).Msg("sync batch applied")
	return nil
}

// applyOne runs a single operation inside a savepoint so a failed apply does
// not poison the surrounding batch transaction. It returns the final status
// written for the operation, or "retry" when the operation was rescheduled.
func (r *Runner) applyOne(ctx context.Context, tx pgx.Tx, op models.SyncOperation) string {
	inner, err := tx.Begin(ctx)
	if err != nil {
		r.Log.Error().Err(err).Str("op_id", op.ID).Msg("savepoint failed")
		return models.SyncFailed
	}

	applyErr := r.Applier.Apply(ctx, inner, op)
	if applyErr != nil {
		_ = inner.Rollback(ctx)
	} else if err := inner.Commit(ctx); err != nil {
		applyErr = err
	}

	switch {
	case applyErr == nil:
		_, err = tx.Exec(ctx, `
			update sync_operations set status='completed', processed_at=now(), error_message=null where id=$1
		`, op.ID)
		if err == nil {
			return models.SyncCompleted
		}

	case errors.Is(applyErr, ErrConflict):
		if err := r.recordConflict(ctx, tx, op); err != nil {
			r.Log.Error().Err(err).Str("op_id", op.ID).Msg("conflict record failed")
		}
		_, err = tx.Exec(ctx, `
			update sync_operations set status='conflict', processed_at=now(), error_message=$2 where id=$1
		`, op.ID, applyErr.Error())
		if err == nil {
			return models.SyncConflicted
		}

	case errors.Is(applyErr, errRejected) || !op.CanRetry():
		_, err = tx.Exec(ctx, `
			update sync_operations set status='failed', processed_at=now(), error_message=$2 where id=$1
		`, op.ID, applyErr.Error())
		if err == nil {
			r.Log.Warn().Str("op_id", op.ID).Str("model", op.ModelType).Err(applyErr).Msg("sync op failed")
			return models.SyncFailed
		}

	default:
		next := time.Now().Add(backoff(op.RetryCount+1, r.BackoffMax))
		_, err = tx.Exec(ctx, `
			update sync_operations
			set retry_count = retry_count + 1, next_attempt_at = $2, error_message = $3
			where id = $1
		`, op.ID, next, applyErr.Error())
		if err == nil {
			r.Log.Warn().Str("op_id", op.ID).Int("retry", op.RetryCount+1).Time("next", next).Err(applyErr).Msg("sync op rescheduled")
			return "retry"
		}
	}

	r.Log.Error().Err(err).Str("op_id", op.ID).Msg("sync status update failed")
	return models.SyncFailed
}

// recordConflict snapshots the current server row next to the client payload.
// With the server_wins strategy the server data stands, so the conflict is
// stored already resolved; manual strategy leaves it open for the user.
func (r *Runner) recordConflict(ctx context.Context, tx pgx.Tx, op models.SyncOperation) error {
	server, err := r.serverSnapshot(ctx, tx, op)
	if err != nil {
		return err
	}
	resolved := r.Strategy == models.ConflictServerWins
	_, err = tx.Exec(ctx, `
		insert into sync_conflicts(id, op_id, user_id, model_type, record_id, local_data, server_data, strategy, resolved)
		values ($1,$2,$3,$4,$5,$6::jsonb,$7::jsonb,$8,$9)
	`, uuid.NewString(), op.ID, op.UserID, op.ModelType, op.RecordID,
		string(op.Payload), string(server), r.Strategy, resolved)
	return err
}

func (r *Runner) serverSnapshot(ctx context.Context, tx pgx.Tx, op models.SyncOperation) (json.RawMessage, error) {
	var query string
	arg := op.RecordID
	switch op.ModelType {
	case models.SyncModelMenuItem:
		query = `select to_jsonb(mi) from menu_items mi where mi.id = $1`
	case models.SyncModelVendorProfile:
		query = `select to_jsonb(v) from vendors v where v.user_id = $1`
		arg = op.UserID
	default:
		return json.RawMessage(`{}`), nil
	}

	var snap json.RawMessage
	if err := tx.QueryRow(ctx, query, arg).Scan(&snap); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return json.RawMessage(`{}`), nil
		}
		return nil, err
	}
	return snap, nil
}

func (r *Runner) updatePending(ctx context.Context) error {
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var n int
	if err := r.DB.QueryRow(ctx2, `select count(*) from sync_operations where status = 'pending'`).Scan(&n); err != nil {
		return err
	}
	metrics.SyncPending.Set(float64(n))
	return nil
}

// dueOps keeps the per-user heads whose retry window has opened. A head that
// is still backing off is skipped together with its user: the user's later
// ops were never claimed, so queue order holds until the head is due.
func dueOps(ops []models.SyncOperation, now time.Time) []models.SyncOperation {
	due := ops[:0:0]
	for _, op := range ops {
		if !op.NextAttemptAt.After(now) {
			due = append(due, op)
		}
	}
	return due
}

func backoff(attempt int, max time.Duration) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	if d > max {
		return max
	}
	if d < time.Second {
		return time.Second
	}
	return d
}
