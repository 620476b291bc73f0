package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

type mockUserStore struct {
	users map[string]models.User // keyed by email

	otpUserID  string
	otpDigest  string
	otpSession string

	resetUserID string
	resetDigest string

	setPasswordHash string
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]models.User)}
}

func (m *mockUserStore) Create(_ context.Context, u models.User) error {
	m.users[u.Email] = u
	return nil
}

func (m *mockUserStore) ByEmail(_ context.Context, email string) (models.User, error) {
	u, ok := m.users[email]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *mockUserStore) ByID(_ context.Context, id string) (models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (m *mockUserStore) EmailTaken(_ context.Context, email string) (bool, error) {
	_, ok := m.users[email]
	return ok, nil
}

func (m *mockUserStore) UpdateProfile(_ context.Context, id, firstName, lastName, phone string) error {
	for email, u := range m.users {
		if u.ID == id {
			u.FirstName, u.LastName, u.PhoneNumber = firstName, lastName, phone
			m.users[email] = u
		}
	}
	return nil
}

func (m *mockUserStore) SetPassword(_ context.Context, id, passwordHash string) error {
	m.setPasswordHash = passwordHash
	return nil
}

func (m *mockUserStore) CreateResetToken(_ context.Context, userID, tokenHash string, _ time.Time) error {
	m.resetUserID, m.resetDigest = userID, tokenHash
	return nil
}

func (m *mockUserStore) ConsumeResetToken(_ context.Context, tokenHash string) (string, error) {
	if m.resetDigest == "" || tokenHash != m.resetDigest {
		return "", repo.ErrNotFound
	}
	m.resetDigest = ""
	return m.resetUserID, nil
}

func (m *mockUserStore) CreateOTP(_ context.Context, userID, otpHash, sessionToken string, _ time.Time) error {
	m.otpUserID, m.otpDigest, m.otpSession = userID, otpHash, sessionToken
	return nil
}

func (m *mockUserStore) ConsumeOTP(_ context.Context, sessionToken, otpHash string) (string, error) {
	if sessionToken != m.otpSession || otpHash != m.otpDigest {
		return "", repo.ErrNotFound
	}
	m.otpDigest = ""
	return m.otpUserID, nil
}

type capturingOTPSender struct{ code string }

func (s *capturingOTPSender) SendOTP(_ context.Context, _ models.User, code string) error {
	s.code = code
	return nil
}

func newAuthHandler(store *mockUserStore) (*AuthHandler, *capturingOTPSender) {
	sender := &capturingOTPSender{}
	return &AuthHandler{
		Users: store,
		Issuer: &auth.Issuer{
			Secret:     []byte("test-secret"),
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
			BcryptCost: 4,
		},
		OTP:      sender,
		OTPTTL:   5 * time.Minute,
		ResetTTL: time.Hour,
		Log:      zerolog.Nop(),
	}, sender
}

func seedUser(t *testing.T, h *AuthHandler, store *mockUserStore, email, password string, twoFactor bool) models.User {
	t.Helper()
	hash, err := h.Issuer.HashPassword(password)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	u := models.User{
		ID:               "user-" + email,
		Email:            email,
		Username:         "someone",
		Role:             models.RoleCustomer,
		IsActive:         true,
		TwoFactorEnabled: twoFactor,
		PasswordHash:     hash,
	}
	store.users[email] = u
	return u
}

func TestRegister(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)

	body := `{"email":"thandi@example.com","username":"thandi","password":"longenough"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body)
	}
	var resp struct {
		User   models.User `json:"user"`
		Tokens auth.Tokens `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.User.Role != models.RoleCustomer {
		t.Errorf("role = %s, want customer", resp.User.Role)
	}
	if resp.Tokens.Access == "" || resp.Tokens.Refresh == "" {
		t.Error("expected both tokens in response")
	}
	if _, ok := store.users["thandi@example.com"]; !ok {
		t.Error("user not persisted")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	seedUser(t, h, store, "thandi@example.com", "longenough", false)

	body := `{"email":"thandi@example.com","username":"thandi2","password":"longenough"}`
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterRejectsBadPayload(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)

	for _, body := range []string{
		`{"email":"not-an-email","username":"x","password":"longenough"}`,
		`{"email":"a@b.com","username":"","password":"longenough"}`,
		`{"email":"a@b.com","username":"x","password":"short"}`,
	} {
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	seedUser(t, h, store, "thandi@example.com", "longenough", false)

	body := `{"email":"thandi@example.com","password":"longenough"}`
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Tokens auth.Tokens `json:"tokens"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Tokens.Access == "" {
		t.Error("expected access token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	seedUser(t, h, store, "thandi@example.com", "longenough", false)

	body := `{"email":"thandi@example.com","password":"not-the-password"}`
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)

	body := `{"email":"nobody@example.com","password":"whatever"}`
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	u := seedUser(t, h, store, "thandi@example.com", "longenough", false)
	u.IsActive = false
	store.users[u.Email] = u

	body := `{"email":"thandi@example.com","password":"longenough"}`
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLoginWithTwoFactor(t *testing.T) {
	store := newMockUserStore()
	h, sender := newAuthHandler(store)
	seedUser(t, h, store, "thandi@example.com", "longenough", true)

	body := `{"email":"thandi@example.com","password":"longenough"}`
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Requires2FA  bool   `json:"requires_2fa"`
		SessionToken string `json:"session_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Requires2FA || resp.SessionToken == "" {
		t.Fatalf("expected a 2fa challenge, got %s", rec.Body)
	}
	if sender.code == "" {
		t.Fatal("no code sent")
	}

	// Completing the challenge with the delivered code yields tokens.
	verify := `{"session_token":"` + resp.SessionToken + `","code":"` + sender.code + `"}`
	rec = httptest.NewRecorder()
	h.VerifyOTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login/verify", strings.NewReader(verify)))

	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d, want 200: %s", rec.Code, rec.Body)
	}

	// The code is single use.
	rec = httptest.NewRecorder()
	h.VerifyOTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login/verify", strings.NewReader(verify)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused code status = %d, want 401", rec.Code)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	store.otpUserID = "user-1"
	store.otpDigest = auth.HashToken("123456")
	store.otpSession = "sess-1"

	body := `{"session_token":"sess-1","code":"000000"}`
	rec := httptest.NewRecorder()
	h.VerifyOTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login/verify", strings.NewReader(body)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRefresh(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	u := seedUser(t, h, store, "thandi@example.com", "longenough", false)

	tokens, err := h.Issuer.Issue(u.ID, u.Role)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	body := `{"refresh":"` + tokens.Refresh + `"}`
	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	// An access token must not pass as a refresh token.
	body = `{"refresh":"` + tokens.Access + `"}`
	rec = httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("access-as-refresh status = %d, want 401", rec.Code)
	}
}

func TestPasswordResetDoesNotLeakEmails(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	seedUser(t, h, store, "thandi@example.com", "longenough", false)

	for _, email := range []string{"thandi@example.com", "nobody@example.com"} {
		body := `{"email":"` + email + `"}`
		rec := httptest.NewRecorder()
		h.RequestPasswordReset(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset", strings.NewReader(body)))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", email, rec.Code)
		}
	}
	if store.resetDigest == "" {
		t.Error("no reset token stored for the known email")
	}
}

func TestPasswordResetConfirm(t *testing.T) {
	store := newMockUserStore()
	h, _ := newAuthHandler(store)
	u := seedUser(t, h, store, "thandi@example.com", "oldpassword1", false)

	token, digest, err := auth.NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken failed: %v", err)
	}
	store.resetUserID = u.ID
	store.resetDigest = digest

	body := `{"token":"` + token + `","password":"newpassword1"}`
	rec := httptest.NewRecorder()
	h.ConfirmPasswordReset(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset/confirm", strings.NewReader(body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}
	if !auth.CheckPassword("newpassword1", store.setPasswordHash) {
		t.Error("stored hash does not match the new password")
	}

	// Token is single use.
	rec = httptest.NewRecorder()
	h.ConfirmPasswordReset(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/password-reset/confirm", strings.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("reused token status = %d, want 400", rec.Code)
	}
}
