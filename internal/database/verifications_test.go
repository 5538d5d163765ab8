package database

import (
	"context"
	"testing"
	"time"

	"charterly/internal/domain"
	"charterly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVerification(t *testing.T, db *DB) *models.VerificationRecord {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "u1", Email: "a@example.com"}))

	rec := &models.VerificationRecord{
		ID:              "v1",
		UserID:          "u1",
		PhoneNumber:     "+15551234567",
		VerificationSID: "VE123",
		Status:          models.VerificationPending,
		ProviderStatus:  "pending",
	}
	require.NoError(t, db.CreateVerification(ctx, rec))
	return rec
}

func TestVerificationLookup(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedVerification(t, db)

	got, err := db.FindVerification(ctx, "+15551234567", "VE123")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID)
	assert.Equal(t, models.VerificationPending, got.Status)
	assert.Nil(t, got.VerifiedAt)

	_, err = db.FindVerification(ctx, "+15551234567", "VE999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = db.FindVerification(ctx, "+15550000000", "VE123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateVerificationUniquePair(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedVerification(t, db)

	dup := &models.VerificationRecord{ID: "v2", UserID: "u1", PhoneNumber: "+15551234567", VerificationSID: "VE123", Status: models.VerificationPending}
	require.NoError(t, db.CreateVerification(ctx, dup))

	got, err := db.FindVerification(ctx, "+15551234567", "VE123")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.ID, "first record wins")
}

func TestApplyVerificationUpdate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	rec := seedVerification(t, db)

	now := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	rec.Status = models.VerificationPassed
	rec.ProviderStatus = "approved"
	rec.VerifiedAt = &now
	rec.UpdatedAt = now

	require.NoError(t, db.ApplyVerificationUpdate(ctx, rec, true, true))

	got, err := db.FindVerification(ctx, rec.PhoneNumber, rec.VerificationSID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPassed, got.Status)
	assert.Equal(t, "approved", got.ProviderStatus)
	require.NotNil(t, got.VerifiedAt)
	assert.True(t, now.Equal(*got.VerifiedAt))

	user, err := db.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, user.PhoneVerified)
	firstUpdate := user.UpdatedAt

	// replay leaves the user row untouched
	require.NoError(t, db.ApplyVerificationUpdate(ctx, rec, false, true))
	user, err = db.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, firstUpdate.Equal(user.UpdatedAt))

	assert.NoError(t, db.ApplyVerificationUpdate(ctx, rec, false, false))
}

func TestApplyVerificationUpdateRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	seedVerification(t, db)

	// record id that does not exist: the user write must not commit either
	ghost := &models.VerificationRecord{ID: "ghost", UserID: "u1", Status: models.VerificationPassed, UpdatedAt: time.Now()}
	err := db.ApplyVerificationUpdate(ctx, ghost, true, true)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	user, err := db.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, user.PhoneVerified)
}
