package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gawulo-platform/shared/pkg/models"
)

var ErrNotFound = errors.New("not found")

type UsersPG struct{ DB *pgxpool.Pool }

const userCols = `id, email, username, first_name, last_name, phone_number, role,
	password_hash, two_factor_enabled, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.PhoneNumber, &u.Role, &u.PasswordHash, &u.TwoFactorEnabled,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (r *UsersPG) Create(ctx context.Context, u models.User) error {
	_, err := r.DB.Exec(ctx, `
		insert into users(id, email, username, first_name, last_name, phone_number, role, password_hash)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Email, u.Username, u.FirstName, u.LastName, u.PhoneNumber, u.Role, u.PasswordHash)
	return err
}

func (r *UsersPG) ByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.DB.QueryRow(ctx, `select `+userCols+` from users where email = $1`, email))
}

func (r *UsersPG) ByID(ctx context.Context, id string) (models.User, error) {
	return scanUser(r.DB.QueryRow(ctx, `select `+userCols+` from users where id = $1`, id))
}

func (r *UsersPG) EmailTaken(ctx context.Context, email string) (bool, error) {
	var n int
	err := r.DB.QueryRow(ctx, `select count(*) from users where email = $1`, email).Scan(&n)
	return n > 0, err
}

func (r *UsersPG) UpdateProfile(ctx context.Context, id, firstName, lastName, phone string) error {
	ct, err := r.DB.Exec(ctx, `
		update users
		set first_name = $2, last_name = $3, phone_number = $4, updated_at = now()
		where id = $1
	`, id, firstName, lastName, phone)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UsersPG) SetPassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.DB.Exec(ctx, `
		update users set password_hash = $2, updated_at = now() where id = $1
	`, id, passwordHash)
	return err
}

func (r *UsersPG) SetRole(ctx context.Context, id, role string) error {
	_, err := r.DB.Exec(ctx, `update users set role = $2, updated_at = now() where id = $1`, id, role)
	return err
}

func (r *UsersPG) SetTwoFactor(ctx context.Context, id string, enabled bool) error {
	_, err := r.DB.Exec(ctx, `update users set two_factor_enabled = $2, updated_at = now() where id = $1`, id, enabled)
	return err
}

// CreateResetToken stores the digest of a password reset token.
func (r *UsersPG) CreateResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx, `
		insert into password_reset_tokens(user_id, token_hash, expires_at)
		values ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	return err
}

// ConsumeResetToken marks an unused, unexpired token as used and returns the
// owning user id. ErrNotFound covers unknown, expired and reused tokens alike.
func (r *UsersPG) ConsumeResetToken(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := r.DB.QueryRow(ctx, `
		update password_reset_tokens
		set used = true
		where token_hash = $1 and not used and expires_at > now()
		returning user_id
	`, tokenHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}

func (r *UsersPG) CreateOTP(ctx context.Context, userID, otpHash, sessionToken string, expiresAt time.Time) error {
	_, err := r.DB.Exec(ctx, `
		insert into otp_verifications(user_id, otp_hash, session_token, expires_at)
		values ($1, $2, $3, $4)
	`, userID, otpHash, sessionToken, expiresAt)
	return err
}

func (r *UsersPG) ConsumeOTP(ctx context.Context, sessionToken, otpHash string) (string, error) {
	var userID string
	err := r.DB.QueryRow(ctx, `
		update otp_verifications
		set used = true
		where session_token = $1 and otp_hash = $2 and not used and expires_at > now()
		returning user_id
	`, sessionToken, otpHash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return userID, err
}
