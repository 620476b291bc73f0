package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/cache"
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
		if i >= len(r.vals) || r.vals[i] == nil {
			continue
		}
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

// scriptedTx answers QueryRow from a substring-keyed script and records every
// Exec, standing in for a pool transaction.
type scriptedTx struct {
	rows  map[string][]any
	execs []string
}

func (t *scriptedTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	for frag, vals := range t.rows {
		if strings.Contains(sql, frag) {
			return fakeRow{vals: vals}
		}
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (t *scriptedTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execs = append(t.execs, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *scriptedTx) hasExec(frag string) bool {
	for _, sql := range t.execs {
		if strings.Contains(sql, frag) {
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

type fakeDB struct{ tx *scriptedTx }

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) { return f.tx, nil }

// orderRow lays out the columns of the order select in scan order.
func orderRow(status string) []any {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return []any{
		"order-1", "GAW202501070931XK4D", "cust-1", "vend-1", models.DeliveryTypeDelivery,
		"12 Vilakazi St", "", "",
		dec("102.50"), dec("25.00"), dec("15.38"), dec("142.88"), status,
		nil, nil, false,
		created, created,
	}
}

func newTransitionHandler(tx *scriptedTx) *OrdersHandler {
	return &OrdersHandler{
		DB:     &fakeDB{tx: tx},
		Orders: &repo.OrdersPG{},
		Outbox: &repo.OutboxPG{},
		// SetStatus swallows Redis errors, so an unreachable address is fine.
		Status:  &repo.OrdersStatusCache{Redis: cache.New("127.0.0.1:1"), TTL: time.Minute},
		VATRate: 15,
		Log:     zerolog.Nop(),
	}
}

func orderStatusRequest(userID, role, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/orders/order-1/status", strings.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "order-1")
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	claims := &auth.Claims{UserID: userID, Role: role}
	return r.WithContext(auth.WithClaims(ctx, claims))
}

func TestUpdateStatusConfirmsPendingOrder(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{
		"for update": orderRow(models.StatusPending),
	}}
	h := newTransitionHandler(tx)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, orderStatusRequest("admin-1", models.RoleAdmin, `{"status":"confirmed"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var o models.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &o); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if o.Status != models.StatusConfirmed {
		t.Errorf("order status = %s, want confirmed", o.Status)
	}
	if !tx.hasExec("update orders set status") {
		t.Error("order row not updated")
	}
	if !tx.hasExec("order_status_history") {
		t.Error("no history row written")
	}
	if !tx.hasExec("outbox_events") {
		t.Error("no outbox event enqueued")
	}
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{
		"for update": orderRow(models.StatusPending),
	}}
	h := newTransitionHandler(tx)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, orderStatusRequest("admin-1", models.RoleAdmin, `{"status":"delivered"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body)
	}
	if tx.hasExec("update orders set status") {
		t.Error("illegal transition must not touch the order row")
	}
}

func TestUpdateStatusRefusesTerminalOrder(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{
		"for update": orderRow(models.StatusDelivered),
	}}
	h := newTransitionHandler(tx)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, orderStatusRequest("admin-1", models.RoleAdmin, `{"status":"confirmed"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body)
	}
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{}}
	h := newTransitionHandler(tx)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, orderStatusRequest("admin-1", models.RoleAdmin, `{"status":"confirmed"}`))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body)
	}
}

func TestCancelByCustomer(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{
		"for update": orderRow(models.StatusPending),
	}}
	h := newTransitionHandler(tx)

	rec := httptest.NewRecorder()
	h.Cancel(rec, orderStatusRequest("cust-1", models.RoleCustomer, ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if !tx.hasExec("update orders set status") {
		t.Error("cancel did not update the order row")
	}
}

func TestCustomerCannotConfirm(t *testing.T) {
	tx := &scriptedTx{rows: map[string][]any{
		"for update": orderRow(models.StatusPending),
	}}
	h := newTransitionHandler(tx)

	rec := httptest.NewRecorder()
	h.UpdateStatus(rec, orderStatusRequest("cust-1", models.RoleCustomer, `{"status":"confirmed"}`))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body)
	}
}
