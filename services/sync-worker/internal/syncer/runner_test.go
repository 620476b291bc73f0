package syncer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gawulo-platform/shared/pkg/models"
)

// A user whose oldest operation is waiting out a retry must not have a later
// operation run ahead of it. Only queue heads are claimed, so dropping a
// backed-off head drops that user from the whole batch.
func TestDueOpsHoldsBackUsersInBackoff(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	heads := []models.SyncOperation{
		{ID: "a-1", UserID: "user-a", NextAttemptAt: now.Add(30 * time.Second)},
		{ID: "b-1", UserID: "user-b", NextAttemptAt: now.Add(-time.Minute)},
		{ID: "c-1", UserID: "user-c", NextAttemptAt: now},
	}

	due := dueOps(heads, now)
	if len(due) != 2 {
		t.Fatalf("got %d due ops, want 2", len(due))
	}
	if due[0].ID != "b-1" || due[1].ID != "c-1" {
		t.Errorf("due = [%s %s], want [b-1 c-1]", due[0].ID, due[1].ID)
	}
	for _, op := range due {
		if op.UserID == "user-a" {
			t.Error("user-a still backing off, nothing of theirs may run")
		}
	}
}

func TestDueOpsEmptyBatch(t *testing.T) {
	if got := dueOps(nil, time.Now()); len(got) != 0 {
		t.Errorf("got %d ops from empty claim", len(got))
	}
}

func TestApplyOneRecordsConflict(t *testing.T) {
	serverUpdated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := serverUpdated.Add(-time.Hour)

	tx := &scriptedTx{rows: map[string][]any{
		"for update of mi": {"vendor-77", serverUpdated},
		"to_jsonb(mi)":     {json.RawMessage(`{"name":"Beef Kota","price":"55.00"}`)},
	}}
	r := &Runner{
		Log:        zerolog.Nop(),
		Applier:    &Applier{VATRate: 15},
		Strategy:   models.ConflictServerWins,
		BackoffMax: 5 * time.Minute,
	}

	outcome := r.applyOne(context.Background(), tx, models.SyncOperation{
		ID: "op-1", UserID: "user-1", ClientOpID: "c-1",
		Operation: models.SyncOpUpdate, ModelType: models.SyncModelMenuItem,
		RecordID: "item-1", BaseVersion: &base,
		Payload: json.RawMessage(`{"price":"65.00"}`), MaxRetries: 3,
	})
	if outcome != models.SyncConflicted {
		t.Fatalf("outcome %q, want %q", outcome, models.SyncConflicted)
	}
	if !tx.hasExec("insert into sync_conflicts") {
		t.Error("expected a sync_conflicts record")
	}
	if !tx.hasExec("status='conflict'") {
		t.Error("expected the operation to be marked conflicted")
	}
	if tx.hasExec("update menu_items") {
		t.Error("conflicting operation must not touch the row")
	}

	// server_wins stores the conflict already resolved.
	for _, e := range tx.execs {
		if !strings.Contains(e.sql, "sync_conflicts") {
			continue
		}
		resolved, ok := e.args[len(e.args)-1].(bool)
		if !ok || !resolved {
			t.Errorf("resolved arg = %v, want true under server_wins", e.args[len(e.args)-1])
		}
	}
}

func TestApplyOneRejectedFailsWithoutRetry(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{}}
	r := &Runner{
		Log:        zerolog.Nop(),
		Applier:    &Applier{VATRate: 15},
		Strategy:   models.ConflictServerWins,
		BackoffMax: 5 * time.Minute,
	}

	// Unknown model types can never succeed, so no retry is scheduled.
	outcome := r.applyOne(context.Background(), tx, models.SyncOperation{
		ID: "op-2", UserID: "user-1", ClientOpID: "c-2",
		Operation: models.SyncOpUpdate, ModelType: "loyalty_card",
		Payload: json.RawMessage(`{}`), MaxRetries: 3,
	})
	if outcome != models.SyncFailed {
		t.Fatalf("outcome %q, want %q", outcome, models.SyncFailed)
	}
	if !tx.hasExec("status='failed'") {
		t.Error("expected the operation to be marked failed")
	}
	if tx.hasExec("retry_count = retry_count + 1") {
		t.Error("rejected operations must not be rescheduled")
	}
}
