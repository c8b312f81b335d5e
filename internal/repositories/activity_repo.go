package repositories

import (
	"context"
	"fmt"

	"github.com/averyhollis/bastion/internal/database"
	"github.com/averyhollis/bastion/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityRepository handles append-only activity record storage. Records are
// never updated; deletion happens only through full account erasure.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *database.DB) *ActivityRepository {
	return &ActivityRepository{pool: db.Pool}
}

// Create appends an activity record.
func (r *ActivityRepository) Create(ctx context.Context, record *models.ActivityRecord) error {
	query := `
		INSERT INTO activity_records (user_id, action, description, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		record.UserID, record.Action, record.Description,
		record.IPAddress, record.UserAgent, record.Metadata,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create activity record: %w", database.MapPostgresError(err))
	}

	return nil
}

// ListByUserID returns a page of a user's activity, newest first.
func (r *ActivityRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error) {
	query := `
		SELECT id, user_id, action, description, ip_address, user_agent, metadata, created_at
		FROM activity_records
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity records: %w", database.MapPostgresError(err))
	}

	return scanActivityRows(rows)
}

// DeleteByUserID erases a user's trail as part of full account erasure.
func (r *ActivityRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM activity_records WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete activity records: %w", database.MapPostgresError(err))
	}

	return nil
}

func scanActivityRows(rows pgx.Rows) ([]*models.ActivityRecord, error) {
	defer rows.Close()

	records := make([]*models.ActivityRecord, 0)
	for rows.Next() {
		var record models.ActivityRecord
		err := rows.Scan(
			&record.ID, &record.UserID, &record.Action, &record.Description,
			&record.IPAddress, &record.UserAgent, &record.Metadata, &record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity record: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity records: %w", err)
	}

	return records, nil
}
