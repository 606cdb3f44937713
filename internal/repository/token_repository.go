package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vuledev/sams-api/internal/models"
)

// TokenRepository manages persisted refresh-token sessions.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository constructs a TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new refresh token.
func (r *TokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO refresh_tokens (id, account_id, kind, token, expires_at, created_at, revoked, ip_address, user_agent)
        VALUES (:id, :account_id, :kind, :token, :expires_at, :created_at, :revoked, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, q, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindByToken fetches a refresh token by its opaque value.
func (r *TokenRepository) FindByToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const q = `SELECT id, account_id, kind, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
        FROM refresh_tokens WHERE token = $1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, q, token); err != nil {
		return nil, err
	}
	return &rt, nil
}

// Revoke marks a single refresh token as revoked.
func (r *TokenRepository) Revoke(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1 WHERE id = $2 AND NOT revoked", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return requireRow(res, "revoke refresh token")
}

// RevokeAllForAccount revokes every live token for an account, used on
// password change.
func (r *TokenRepository) RevokeAllForAccount(ctx context.Context, accountID string, kind models.AccountKind) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $1 WHERE account_id = $2 AND kind = $3 AND NOT revoked",
		time.Now().UTC(), accountID, kind)
	if err != nil {
		return fmt.Errorf("revoke account tokens: %w", err)
	}
	return nil
}

// DeleteExpired prunes tokens past their expiry, returning the rows removed.
func (r *TokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return rows, nil
}
