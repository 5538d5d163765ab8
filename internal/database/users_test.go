package database

import (
	"context"
	"testing"

	"charterly/internal/domain"
	"charterly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertUser(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{ID: "u1", Email: "a@example.com", Name: "Ann"}
	require.NoError(t, db.UpsertUser(ctx, user))

	got, err := db.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.False(t, got.PhoneVerified)

	// a stale profile sync must not clear the verified flag
	_, err = db.ExecContext(ctx, `UPDATE users SET phone_verified = 1 WHERE id = ?`, "u1")
	require.NoError(t, err)

	require.NoError(t, db.UpsertUser(ctx, &models.User{ID: "u1", Email: "b@example.com", Name: "Ann", Role: models.RoleAdmin}))

	got, err = db.GetUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.PhoneVerified)
	assert.Equal(t, "b@example.com", got.Email)
	assert.Equal(t, models.RoleAdmin, got.Role)

	_, err = db.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
