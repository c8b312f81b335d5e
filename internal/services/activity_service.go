package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/averyhollis/bastion/internal/models"
)

// ActivityRepository defines the interface for activity record storage
type ActivityRepository interface {
	Create(ctx context.Context, record *models.ActivityRecord) error
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

// ActivityService is the best-effort audit sink. It dual-writes to slog and
// the database; persistence failures are logged and swallowed so audit
// logging never blocks or breaks the operation being recorded.
type ActivityService struct {
	repo   ActivityRepository
	logger *slog.Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(repo ActivityRepository, logger *slog.Logger) *ActivityService {
	return &ActivityService{
		repo:   repo,
		logger: logger,
	}
}

// RequestInfo carries the HTTP-layer context attached to a record.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// Record appends an activity entry for the user. Never returns an error.
func (s *ActivityService) Record(ctx context.Context, userID string, action models.ActivityAction, description string, req *RequestInfo, metadata models.ActivityMetadata) {
	record := &models.ActivityRecord{
		UserID:      userID,
		Action:      action,
		Description: description,
		Metadata:    metadata,
	}

	if req != nil {
		if req.IPAddress != "" {
			record.IPAddress = &req.IPAddress
		}
		if req.UserAgent != "" {
			record.UserAgent = &req.UserAgent
		}
	}

	s.logger.InfoContext(ctx, "activity recorded",
		slog.String("user_id", userID),
		slog.String("action", string(action)),
		slog.Any("metadata", metadata),
	)

	if err := s.repo.Create(ctx, record); err != nil {
		// Best effort: the primary operation must not fail on audit errors.
		s.logger.ErrorContext(ctx, "failed to persist activity record",
			slog.String("user_id", userID),
			slog.String("action", string(action)),
			slog.Any("error", err),
		)
	}
}

// Trail returns a page of the user's activity, newest first.
func (s *ActivityService) Trail(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.repo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity trail: %w", err)
	}

	return records, nil
}

// Erase removes the user's entire trail as part of account erasure.
func (s *ActivityService) Erase(ctx context.Context, userID string) error {
	return s.repo.DeleteByUserID(ctx, userID)
}
