package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/shared/pkg/models"
)

type mockSyncStore struct {
	enqueued []models.SyncOperation
	seen     map[[2]string]bool // user id + client_op_id pairs already accepted
}

func newMockSyncStore() *mockSyncStore {
	return &mockSyncStore{seen: make(map[[2]string]bool)}
}

func (m *mockSyncStore) Enqueue(_ context.Context, ops []models.SyncOperation) (int, error) {
	accepted := 0
	for _, op := range ops {
		key := [2]string{op.UserID, op.ClientOpID}
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		m.enqueued = append(m.enqueued, op)
		accepted++
	}
	return accepted, nil
}

func (m *mockSyncStore) Status(_ context.Context, _ string) (models.SyncStatus, error) {
	return models.SyncStatus{}, nil
}

func (m *mockSyncStore) Conflicts(_ context.Context, _ string) ([]models.SyncConflict, error) {
	return nil, nil
}

func (m *mockSyncStore) Operations(_ context.Context, _, _ string) ([]models.SyncOperation, error) {
	return nil, nil
}

func syncRequest(body string) *http.Request {
	return syncRequestAs("user-1", body)
}

func syncRequestAs(userID, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sync/queue", strings.NewReader(body))
	claims := &auth.Claims{UserID: userID, Role: models.RoleCustomer}
	return r.WithContext(auth.WithClaims(r.Context(), claims))
}

func TestSyncEnqueue(t *testing.T) {
	store := newMockSyncStore()
	h := &SyncHandler{Store: store, MaxRetries: 5, Log: zerolog.Nop()}

	body := `{"operations":[
		{"client_op_id":"op-1","operation":"create","model_type":"order","payload":{"vendor_id":"v-1"}},
		{"client_op_id":"op-2","operation":"update","model_type":"menu_item","record_id":"mi-1","payload":{"price":"45.00"}}
	]}`
	rec := httptest.NewRecorder()
	h.Enqueue(rec, syncRequest(body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["accepted"] != 2 || resp["duplicates"] != 0 {
		t.Errorf("got %v, want accepted=2 duplicates=0", resp)
	}

	if len(store.enqueued) != 2 {
		t.Fatalf("enqueued %d ops, want 2", len(store.enqueued))
	}
	op := store.enqueued[0]
	if op.UserID != "user-1" {
		t.Errorf("op user = %s, want the authenticated user", op.UserID)
	}
	if op.MaxRetries != 5 {
		t.Errorf("op max retries = %d, want 5", op.MaxRetries)
	}
	if op.ID == "" {
		t.Error("op should get a server-side id")
	}
}

func TestSyncEnqueueReportsDuplicates(t *testing.T) {
	store := newMockSyncStore()
	store.seen[[2]string{"user-1", "op-1"}] = true
	h := &SyncHandler{Store: store, MaxRetries: 5, Log: zerolog.Nop()}

	body := `{"operations":[
		{"client_op_id":"op-1","operation":"create","model_type":"order","payload":{}},
		{"client_op_id":"op-2","operation":"create","model_type":"review","payload":{}}
	]}`
	rec := httptest.NewRecorder()
	h.Enqueue(rec, syncRequest(body))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	var resp map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp["accepted"] != 1 || resp["duplicates"] != 1 {
		t.Errorf("got %v, want accepted=1 duplicates=1", resp)
	}
}

// Client op ids are random per device, but nothing stops two users from
// producing the same one. Each user's queue dedups independently.
func TestSyncEnqueueDedupScopedPerUser(t *testing.T) {
	store := newMockSyncStore()
	h := &SyncHandler{Store: store, MaxRetries: 5, Log: zerolog.Nop()}

	body := `{"operations":[{"client_op_id":"op-1","operation":"create","model_type":"order","payload":{"vendor_id":"v-1"}}]}`

	for _, userID := range []string{"user-1", "user-2"} {
		rec := httptest.NewRecorder()
		h.Enqueue(rec, syncRequestAs(userID, body))
		if rec.Code != http.StatusAccepted {
			t.Fatalf("%s: status = %d, want 202: %s", userID, rec.Code, rec.Body)
		}
		var resp map[string]int
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: bad response body: %v", userID, err)
		}
		if resp["accepted"] != 1 || resp["duplicates"] != 0 {
			t.Errorf("%s: got %v, want accepted=1 duplicates=0", userID, resp)
		}
	}

	if len(store.enqueued) != 2 {
		t.Fatalf("enqueued %d ops, want one per user", len(store.enqueued))
	}
	if store.enqueued[0].UserID == store.enqueued[1].UserID {
		t.Error("both ops landed on the same user")
	}
}

func TestSyncEnqueueValidation(t *testing.T) {
	h := &SyncHandler{Store: newMockSyncStore(), MaxRetries: 5, Log: zerolog.Nop()}

	for name, body := range map[string]string{
		"empty batch":       `{"operations":[]}`,
		"missing client id": `{"operations":[{"operation":"create","model_type":"order"}]}`,
		"bad operation":     `{"operations":[{"client_op_id":"op-1","operation":"upsert","model_type":"order"}]}`,
		"bad model":         `{"operations":[{"client_op_id":"op-1","operation":"create","model_type":"payment"}]}`,
		"update without id": `{"operations":[{"client_op_id":"op-1","operation":"update","model_type":"menu_item"}]}`,
		"delete without id": `{"operations":[{"client_op_id":"op-1","operation":"delete","model_type":"menu_item"}]}`,
	} {
		rec := httptest.NewRecorder()
		h.Enqueue(rec, syncRequest(body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}
