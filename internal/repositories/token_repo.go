package repositories

import (
	"context"
	"fmt"

	"github.com/averyhollis/bastion/internal/database"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TokenRepository handles security token data access. Lookups are indexed by
// token value and by (identifier, purpose).
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository creates a new TokenRepository
func NewTokenRepository(db *database.DB) *TokenRepository {
	return &TokenRepository{pool: db.Pool}
}

// Create inserts a new token record.
func (r *TokenRepository) Create(ctx context.Context, token *models.SecurityToken) error {
	query := `
		INSERT INTO security_tokens (identifier, token, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		token.Identifier, token.Token, token.Purpose, token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create security token: %w", database.MapPostgresError(err))
	}

	return nil
}

// RedeemAndDelete atomically deletes the token and returns it, guarded by
// purpose and expiry in the same statement. Two concurrent redemptions of the
// same token cannot both succeed: exactly one DELETE wins, the other sees no
// rows. An expired token is never returned even if still present.
func (r *TokenRepository) RedeemAndDelete(ctx context.Context, token string, purpose models.TokenPurpose) (*models.SecurityToken, error) {
	query := `
		DELETE FROM security_tokens
		WHERE token = $1 AND purpose = $2 AND expires_at > NOW()
		RETURNING id, identifier, token, purpose, expires_at, created_at`

	var record models.SecurityToken
	err := r.pool.QueryRow(ctx, query, token, purpose).Scan(
		&record.ID, &record.Identifier, &record.Token,
		&record.Purpose, &record.ExpiresAt, &record.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &record, nil
}

// DeleteByIdentifierPurpose removes all outstanding tokens for the
// identifier+purpose pair. Issuing a fresh token calls this first so stale
// tokens never pile up.
func (r *TokenRepository) DeleteByIdentifierPurpose(ctx context.Context, identifier string, purpose models.TokenPurpose) error {
	query := `DELETE FROM security_tokens WHERE identifier = $1 AND purpose = $2`

	if _, err := r.pool.Exec(ctx, query, identifier, purpose); err != nil {
		return fmt.Errorf("failed to delete prior tokens: %w", database.MapPostgresError(err))
	}

	return nil
}

// DeleteExpired removes expired tokens; storage hygiene only, since expiry is
// always enforced at read time.
func (r *TokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM security_tokens WHERE expires_at <= NOW()`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", database.MapPostgresError(err))
	}

	return tag.RowsAffected(), nil
}
