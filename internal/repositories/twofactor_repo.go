package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/averyhollis/bastion/internal/database"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TwoFactorRepository handles two-factor enrollment data access. The secret,
// the backup codes, and the explicit state live on one row, so enabling and
// disabling are single-row atomic operations.
type TwoFactorRepository struct {
	pool *pgxpool.Pool
}

// NewTwoFactorRepository creates a new TwoFactorRepository
func NewTwoFactorRepository(db *database.DB) *TwoFactorRepository {
	return &TwoFactorRepository{pool: db.Pool}
}

// GetByUserID returns the enrollment record for a user.
func (r *TwoFactorRepository) GetByUserID(ctx context.Context, userID string) (*models.TwoFactorRecord, error) {
	query := `
		SELECT user_id, state, secret, backup_code_hashes, enrolled_at, created_at
		FROM two_factor_enrollments
		WHERE user_id = $1`

	var record models.TwoFactorRecord
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&record.UserID, &record.State, &record.Secret,
		&record.BackupCodeHashes, &record.EnrolledAt, &record.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &record, nil
}

// UpsertPending stores a fresh pending enrollment, replacing any previous
// pending one. An active enrollment is never overwritten here; the service
// rejects setup while two-factor is already active.
func (r *TwoFactorRepository) UpsertPending(ctx context.Context, record *models.TwoFactorRecord) error {
	query := `
		INSERT INTO two_factor_enrollments (user_id, state, secret, backup_code_hashes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET state = EXCLUDED.state,
		    secret = EXCLUDED.secret,
		    backup_code_hashes = EXCLUDED.backup_code_hashes,
		    enrolled_at = NULL
		WHERE two_factor_enrollments.state <> 'active'`

	tag, err := r.pool.Exec(ctx, query,
		record.UserID, models.TwoFactorPending, record.Secret, record.BackupCodeHashes,
	)
	if err != nil {
		return fmt.Errorf("failed to store pending enrollment: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTwoFactorAlreadyEnabled
	}

	return nil
}

// Activate transitions pending -> active. The state guard in the WHERE clause
// makes the transition idempotent-safe under races: only one caller observes
// the pending row.
func (r *TwoFactorRepository) Activate(ctx context.Context, userID string, enrolledAt time.Time) error {
	query := `
		UPDATE two_factor_enrollments
		SET state = $2, enrolled_at = $3
		WHERE user_id = $1 AND state = $4`

	tag, err := r.pool.Exec(ctx, query, userID, models.TwoFactorActive, enrolledAt, models.TwoFactorPending)
	if err != nil {
		return fmt.Errorf("failed to activate enrollment: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrTwoFactorNotPending
	}

	return nil
}

// ConsumeBackupCode persists the reduced hash set. The cardinality guard
// gives exactly-once consumption under races: if another request consumed a
// code first, the stored set no longer has the expected size, no rows match,
// and the caller retries against fresh state.
func (r *TwoFactorRepository) ConsumeBackupCode(ctx context.Context, userID string, expectedCount int, remaining []string) error {
	query := `
		UPDATE two_factor_enrollments
		SET backup_code_hashes = $2
		WHERE user_id = $1 AND state = 'active' AND cardinality(backup_code_hashes) = $3`

	tag, err := r.pool.Exec(ctx, query, userID, remaining, expectedCount)
	if err != nil {
		return fmt.Errorf("failed to consume backup code: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}

	return nil
}

// Delete erases the enrollment row. Secret and backup codes leave together in
// one statement; a half-disabled state cannot exist.
func (r *TwoFactorRepository) Delete(ctx context.Context, userID string) error {
	query := `DELETE FROM two_factor_enrollments WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete enrollment: %w", database.MapPostgresError(err))
	}

	return nil
}
