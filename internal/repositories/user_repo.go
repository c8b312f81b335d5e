package repositories

import (
	"context"
	"fmt"

	"github.com/averyhollis/bastion/internal/database"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles the credential side of the user record. Profile data
// is owned elsewhere; only security-relevant columns are touched here.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

const userColumns = `id, email, password_hash, email_verified, password_changed_at, created_at, updated_at`

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail fetches a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// Create inserts a new user with a hashed credential.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash)
		VALUES ($1, $2)
		RETURNING ` + userColumns

	created, err := r.scanUser(r.pool.QueryRow(ctx, query, user.Email, user.PasswordHash))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// ReplacePassword swaps the credential wholesale. The hash column is never
// partially updated.
func (r *UserRepository) ReplacePassword(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_changed_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to replace password: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// MarkEmailVerified flips the verification flag for the email.
func (r *UserRepository) MarkEmailVerified(ctx context.Context, email string) error {
	query := `UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE email = $1`

	tag, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *UserRepository) scanUser(row interface{ Scan(dest ...any) error }) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.EmailVerified,
		&user.PasswordChangedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &user, nil
}
