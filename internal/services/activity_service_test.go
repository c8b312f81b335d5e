package services

import (
	"context"
	"testing"

	"github.com/averyhollis/bastion/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_Record_PersistsFields(t *testing.T) {
	var stored *models.ActivityRecord
	mockRepo := &MockActivityRepository{
		CreateFunc: func(ctx context.Context, record *models.ActivityRecord) error {
			stored = record
			return nil
		},
	}

	svc := NewActivityService(mockRepo, testLogger())

	svc.Record(context.Background(), "user_123", models.ActivityLogin, "Signed in",
		&RequestInfo{IPAddress: "203.0.113.9", UserAgent: "curl/8.0"},
		models.ActivityMetadata{"second_factor": "totp"})

	require.NotNil(t, stored)
	assert.Equal(t, "user_123", stored.UserID)
	assert.Equal(t, models.ActivityLogin, stored.Action)
	assert.Equal(t, "Signed in", stored.Description)
	require.NotNil(t, stored.IPAddress)
	assert.Equal(t, "203.0.113.9", *stored.IPAddress)
	require.NotNil(t, stored.UserAgent)
	assert.Equal(t, "curl/8.0", *stored.UserAgent)
	assert.Equal(t, "totp", stored.Metadata["second_factor"])
}

func TestActivityService_Record_NilRequestInfo(t *testing.T) {
	var stored *models.ActivityRecord
	mockRepo := &MockActivityRepository{
		CreateFunc: func(ctx context.Context, record *models.ActivityRecord) error {
			stored = record
			return nil
		},
	}

	svc := NewActivityService(mockRepo, testLogger())

	svc.Record(context.Background(), "user_123", models.ActivityLogout, "Signed out", nil, nil)

	require.NotNil(t, stored)
	assert.Nil(t, stored.IPAddress)
	assert.Nil(t, stored.UserAgent)
}

func TestActivityService_Record_SwallowsRepositoryError(t *testing.T) {
	mockRepo := &MockActivityRepository{
		CreateFunc: func(ctx context.Context, record *models.ActivityRecord) error {
			return models.ErrInternalServer
		},
	}

	svc := NewActivityService(mockRepo, testLogger())

	// Must not panic or surface the failure.
	svc.Record(context.Background(), "user_123", models.ActivityLogin, "Signed in", nil, nil)
}

func TestActivityService_Trail_ClampsPagination(t *testing.T) {
	tests := []struct {
		name          string
		limit, offset int
		wantLimit     int
		wantOffset    int
	}{
		{name: "zero limit falls back", limit: 0, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "oversized limit falls back", limit: 500, offset: 0, wantLimit: 50, wantOffset: 0},
		{name: "negative offset clamped", limit: 10, offset: -5, wantLimit: 10, wantOffset: 0},
		{name: "valid passthrough", limit: 25, offset: 75, wantLimit: 25, wantOffset: 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			mockRepo := &MockActivityRepository{
				ListByUserIDFunc: func(ctx context.Context, userID string, limit, offset int) ([]*models.ActivityRecord, error) {
					gotLimit, gotOffset = limit, offset
					return nil, nil
				},
			}

			svc := NewActivityService(mockRepo, testLogger())

			_, err := svc.Trail(context.Background(), "user_123", tt.limit, tt.offset)

			require.NoError(t, err)
			assert.Equal(t, tt.wantLimit, gotLimit)
			assert.Equal(t, tt.wantOffset, gotOffset)
		})
	}
}

func TestActivityService_Erase(t *testing.T) {
	var erased string
	mockRepo := &MockActivityRepository{
		DeleteByUserIDFunc: func(ctx context.Context, userID string) error {
			erased = userID
			return nil
		},
	}

	svc := NewActivityService(mockRepo, testLogger())

	err := svc.Erase(context.Background(), "user_123")

	require.NoError(t, err)
	assert.Equal(t, "user_123", erased)
}
