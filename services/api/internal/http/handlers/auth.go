package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gawulo-platform/services/api/internal/auth"
	"gawulo-platform/services/api/internal/repo"
	"gawulo-platform/shared/pkg/models"
)

// UserStore is the slice of the users repo the auth handlers need.
type UserStore interface {
	Create(ctx context.Context, u models.User) error
	ByEmail(ctx context.Context, email string) (models.User, error)
	ByID(ctx context.Context, id string) (models.User, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName, phone string) error
	SetPassword(ctx context.Context, id, passwordHash string) error
	CreateResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string) (string, error)
	CreateOTP(ctx context.Context, userID, otpHash, sessionToken string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, sessionToken, otpHash string) (string, error)
}

// OTPSender delivers a one-time code out of band. The default implementation
// only logs; wiring a mail provider is deployment configuration.
type OTPSender interface {
	SendOTP(ctx context.Context, user models.User, code string) error
}

type LogOTPSender struct{ Log zerolog.Logger }

func (s LogOTPSender) SendOTP(_ context.Context, user models.User, code string) error {
	s.Log.Info().Str("user_id", user.ID).Str("code", code).Msg("otp issued")
	return nil
}

type AuthHandler struct {
	Users     UserStore
	Issuer    *auth.Issuer
	OTP       OTPSender
	OTPTTL    time.Duration
	ResetTTL  time.Duration
	Log       zerolog.Logger
}

type registerReq struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || req.Username == "" || len(req.Password) < 8 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	taken, err := h.Users.EmailTaken(r.Context(), req.Email)
	if err != nil {
		h.Log.Error().Err(err).Msg("email check failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	if taken {
		http.Error(w, "email already registered", http.StatusConflict)
		return
	}

	hash, err := h.Issuer.HashPassword(req.Password)
	if err != nil {
		h.Log.Error().Err(err).Msg("hash password failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	u := models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.Phone,
		Role:         models.RoleCustomer,
		PasswordHash: hash,
	}
	if err := h.Users.Create(r.Context(), u); err != nil {
		h.Log.Error().Err(err).Msg("create user failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}

	tokens, err := h.Issuer.Issue(u.ID, u.Role)
	if err != nil {
		h.Log.Error().Err(err).Msg("issue tokens failed")
		http.Error(w, "registration failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u, "tokens": tokens})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	u, err := h.Users.ByEmail(r.Context(), req.Email)
	if err != nil || !auth.CheckPassword(req.Password, u.PasswordHash) {
		http.Error(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	if !u.IsActive {
		http.Error(w, "account disabled", http.StatusForbidden)
		return
	}

	if u.TwoFactorEnabled {
		code, digest, session, err := auth.NewOTP()
		if err != nil {
			h.Log.Error().Err(err).Msg("otp generation failed")
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		if err := h.Users.CreateOTP(r.Context(), u.ID, digest, session, time.Now().Add(h.OTPTTL)); err != nil {
			h.Log.Error().Err(err).Msg("otp store failed")
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		if err := h.OTP.SendOTP(r.Context(), u, code); err != nil {
			h.Log.Error().Err(err).Msg("otp send failed")
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"requires_2fa":  true,
			"session_token": session,
		})
		return
	}

	tokens, err := h.Issuer.Issue(u.ID, u.Role)
	if err != nil {
		h.Log.Error().Err(err).Msg("issue tokens failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "tokens": tokens})
}

type verifyOTPReq struct {
	SessionToken string `json:"session_token"`
	Code         string `json:"code"`
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	userID, err := h.Users.ConsumeOTP(r.Context(), req.SessionToken, auth.HashToken(req.Code))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "invalid or expired code", http.StatusUnauthorized)
			return
		}
		h.Log.Error().Err(err).Msg("otp verify failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	u, err := h.Users.ByID(r.Context(), userID)
	if err != nil {
		h.Log.Error().Err(err).Msg("load user failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	tokens, err := h.Issuer.Issue(u.ID, u.Role)
	if err != nil {
		h.Log.Error().Err(err).Msg("issue tokens failed")
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "tokens": tokens})
}

type refreshReq struct {
	Refresh string `json:"refresh"`
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	claims, err := h.Issuer.Parse(req.Refresh, "refresh")
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	// Re-read the user so a role change or deactivation takes effect on refresh.
	u, err := h.Users.ByID(r.Context(), claims.UserID)
	if err != nil || !u.IsActive {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	tokens, err := h.Issuer.Issue(u.ID, u.Role)
	if err != nil {
		h.Log.Error().Err(err).Msg("issue tokens failed")
		http.Error(w, "refresh failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, tokens)
}

func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	u, err := h.Users.ByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileUpdateReq struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFrom(r.Context())
	var req profileUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if err := h.Users.UpdateProfile(r.Context(), claims.UserID, req.FirstName, req.LastName, req.Phone); err != nil {
		h.Log.Error().Err(err).Msg("profile update failed")
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	u, err := h.Users.ByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type passwordResetReq struct {
	Email string `json:"email"`
}

func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}

	// Respond 200 regardless so the endpoint does not leak which emails exist.
	u, err := h.Users.ByEmail(r.Context(), req.Email)
	if err == nil {
		token, digest, err := auth.NewResetToken()
		if err == nil {
			if err := h.Users.CreateResetToken(r.Context(), u.ID, digest, time.Now().Add(h.ResetTTL)); err == nil {
				h.Log.Info().Str("user_id", u.ID).Str("token", token).Msg("password reset issued")
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "if the email exists, a reset link was sent"})
}

type passwordResetConfirmReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "password too short", http.StatusBadRequest)
		return
	}

	userID, err := h.Users.ConsumeResetToken(r.Context(), auth.HashToken(req.Token))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			http.Error(w, "invalid or expired token", http.StatusBadRequest)
			return
		}
		h.Log.Error().Err(err).Msg("reset token consume failed")
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}

	hash, err := h.Issuer.HashPassword(req.Password)
	if err != nil {
		h.Log.Error().Err(err).Msg("hash password failed")
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	if err := h.Users.SetPassword(r.Context(), userID, hash); err != nil {
		h.Log.Error().Err(err).Msg("set password failed")
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
