package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"gawulo-platform/shared/pkg/models"
)

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

type execCall struct {
	sql  string
	args []any
}

// scriptedTx answers QueryRow from a substring-keyed script and records every
// Exec. Begin hands the same tx back, which mirrors how pgx savepoints nest.
type scriptedTx struct {
	rows  map[string][]any
	execs []execCall
}

func (t *scriptedTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	for frag, vals := range t.rows {
		if strings.Contains(sql, frag) {
			return fakeRow{vals: vals}
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (t *scriptedTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *scriptedTx) hasExec(frag string) bool {
	for _, e := range t.execs {
		if strings.Contains(e.sql, frag) {
			return true
		}
	}
	return false
}

func (t *scriptedTx) Begin(context.Context) (pgx.Tx, error) { return t, nil }
func (t *scriptedTx) Commit(context.Context) error          { return nil }
func (t *scriptedTx) Rollback(context.Context) error        { return nil }
func (t *scriptedTx) Conn() *pgx.Conn                       { return nil }
func (t *scriptedTx) LargeObjects() pgx.LargeObjects        { return pgx.LargeObjects{} }

func (t *scriptedTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, errors.New("not scripted")
}

func (t *scriptedTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }

func (t *scriptedTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, errors.New("not scripted")
}

func (t *scriptedTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not scripted")
}

type fakeMenuCache struct{ deleted []string }

func (f *fakeMenuCache) Delete(_ context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func TestCheckBaseVersion(t *testing.T) {
	serverUpdated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// No base version means the client never saw the row; last write wins.
	if err := checkBaseVersion(nil, serverUpdated); err != nil {
		t.Errorf("nil base: got %v, want nil", err)
	}

	stale := serverUpdated.Add(-time.Hour)
	if err := checkBaseVersion(&stale, serverUpdated); !errors.Is(err, ErrConflict) {
		t.Errorf("stale base: got %v, want ErrConflict", err)
	}

	fresh := serverUpdated.Add(time.Hour)
	if err := checkBaseVersion(&fresh, serverUpdated); err != nil {
		t.Errorf("fresh base: got %v, want nil", err)
	}

	same := serverUpdated
	if err := checkBaseVersion(&same, serverUpdated); err != nil {
		t.Errorf("equal base: got %v, want nil", err)
	}
}

func TestMenuItemUpdateConflictStopsApply(t *testing.T) {
	serverUpdated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := serverUpdated.Add(-time.Hour)

	tx := &scriptedTx{rows: map[string][]any{
		"for update of mi": {"vendor-77", serverUpdated},
	}}
	menus := &fakeMenuCache{}
	a := &Applier{VATRate: 15, Menus: menus}

	err := a.Apply(context.Background(), tx, models.SyncOperation{
		ID: "op-1", UserID: "user-1", ClientOpID: "c-1",
		Operation: models.SyncOpUpdate, ModelType: models.SyncModelMenuItem,
		RecordID: "item-1", BaseVersion: &base,
		Payload: json.RawMessage(`{"price":"65.00"}`),
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}
	if tx.hasExec("update menu_items") {
		t.Error("conflicting operation must not touch the row")
	}
	if len(menus.deleted) != 0 {
		t.Errorf("conflicting operation must not invalidate the cache, deleted %v", menus.deleted)
	}
}

func TestMenuItemUpdateInvalidatesCache(t *testing.T) {
	serverUpdated := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tx := &scriptedTx{rows: map[string][]any{
		"for update of mi": {"vendor-77", serverUpdated},
	}}
	menus := &fakeMenuCache{}
	a := &Applier{VATRate: 15, Menus: menus}

	err := a.Apply(context.Background(), tx, models.SyncOperation{
		ID: "op-1", UserID: "user-1", ClientOpID: "c-1",
		Operation: models.SyncOpUpdate, ModelType: models.SyncModelMenuItem,
		RecordID: "item-1",
		Payload:  json.RawMessage(`{"price":"65.00"}`),
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !tx.hasExec("update menu_items") {
		t.Error("expected the menu item row to be updated")
	}
	if len(menus.deleted) != 1 || menus.deleted[0] != "vendor:vendor-77:menu" {
		t.Errorf("deleted keys %v, want [vendor:vendor-77:menu]", menus.deleted)
	}
}

func TestMenuItemDeleteInvalidatesCache(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{
		"returning v.id": {"vendor-77"},
	}}
	menus := &fakeMenuCache{}
	a := &Applier{VATRate: 15, Menus: menus}

	err := a.Apply(context.Background(), tx, models.SyncOperation{
		ID: "op-2", UserID: "user-1", ClientOpID: "c-2",
		Operation: models.SyncOpDelete, ModelType: models.SyncModelMenuItem,
		RecordID: "item-1",
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(menus.deleted) != 1 || menus.deleted[0] != "vendor:vendor-77:menu" {
		t.Errorf("deleted keys %v, want [vendor:vendor-77:menu]", menus.deleted)
	}
}

func TestBackoffClamp(t *testing.T) {
	max := 5 * time.Minute

	if got := backoff(0, max); got != time.Second {
		t.Errorf("attempt 0: %v, want 1s", got)
	}
	if got := backoff(3, max); got != 8*time.Second {
		t.Errorf("attempt 3: %v, want 8s", got)
	}
	if got := backoff(20, max); got != max {
		t.Errorf("attempt 20: %v, want clamped to %v", got, max)
	}
}
