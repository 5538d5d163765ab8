package database

import (
	"context"
	"testing"
	"time"

	"charterly/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType:         models.SyncTaskUpsertBooking,
		BookingRequestID: "br-100",
		Payload:          `{"id":"br-100"}`,
	}

	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.Equal(t, models.SyncStatusPending, task.Status)
	assert.NotZero(t, task.ID)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "br-100", tasks[0].BookingRequestID)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncStatusCompleted, "", nil))

	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 0)

	errMsg := "some error"
	require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{TaskType: "test", BookingRequestID: "br-101", Status: models.SyncStatusFailed, LastError: &errMsg}))
	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "some error", *failed[0].LastError)

	task2 := &models.SyncTask{TaskType: "retry_test", BookingRequestID: "br-102"}
	require.NoError(t, db.CreateSyncTask(ctx, task2))

	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncStatusRetry, "temporary error", &nextRetry))

	// not due yet
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 0)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, task2.ID, models.SyncStatusRetry, "again", &past))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 2, tasks[0].RetryCount)
	assert.Equal(t, "again", *tasks[0].LastError)
}

func TestPurgeSyncTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	done := &models.SyncTask{TaskType: models.SyncTaskUpsertBooking, BookingRequestID: "br-1"}
	require.NoError(t, db.CreateSyncTask(ctx, done))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, done.ID, models.SyncStatusCompleted, "", nil))

	failed := &models.SyncTask{TaskType: models.SyncTaskUpsertBooking, BookingRequestID: "br-2"}
	require.NoError(t, db.CreateSyncTask(ctx, failed))
	require.NoError(t, db.UpdateSyncTaskStatus(ctx, failed.ID, models.SyncStatusFailed, "quota", nil))

	n, err := db.PurgeSyncTasks(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.PurgeSyncTasks(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "br-2", left[0].BookingRequestID)
}
