package database

import (
	"context"
	"time"

	"charterly/internal/models"
)

const syncTaskColumns = `id, task_type, booking_request_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateSyncTask queues task and fills in its id and creation time.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := db.now()

	result, err := db.ExecContext(ctx, `
		INSERT INTO sync_queue (task_type, booking_request_id, payload, status, retry_count, last_error, created_at, next_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType, task.BookingRequestID, task.Payload, task.Status,
		task.RetryCount, task.LastError, now, utcPtr(task.NextRetryAt),
	)
	if err != nil {
		return persistErr("create sync task", err)
	}
	if task.ID, err = result.LastInsertId(); err != nil {
		return persistErr("create sync task", err)
	}
	task.CreatedAt = now
	return nil
}

// GetPendingSyncTasks returns up to limit pending or retry tasks that are due, oldest first.
func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, "get pending sync tasks", `
		SELECT `+syncTaskColumns+` FROM sync_queue
		WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC LIMIT ?`,
		models.SyncStatusPending, models.SyncStatusRetry, db.now(), limit)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	return db.querySyncTasks(ctx, "get failed sync tasks",
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = ? ORDER BY created_at DESC`,
		models.SyncStatusFailed)
}

// UpdateSyncTaskStatus moves a task to status. Retry bumps the attempt
// counter; completed and failed stamp processed_at.
func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	next := utcPtr(nextRetryAt)

	var err error
	switch status {
	case models.SyncStatusRetry:
		_, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`,
			status, errMsg, next, id)
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		_, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`,
			status, errMsg, next, db.now(), id)
	default:
		_, err = db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`,
			status, errMsg, next, id)
	}
	if err != nil {
		return persistErr("update sync task status", err)
	}
	return nil
}

// PurgeSyncTasks deletes completed tasks processed before cutoff. Failed tasks
// are kept for inspection.
func (db *DB) PurgeSyncTasks(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND processed_at IS NOT NULL AND processed_at < ?`,
		models.SyncStatusCompleted, cutoff.UTC())
	if err != nil {
		return 0, persistErr("purge sync tasks", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, persistErr("purge sync tasks", err)
	}
	return n, nil
}

func (db *DB) querySyncTasks(ctx context.Context, op, query string, args ...interface{}) ([]models.SyncTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(
			&t.ID, &t.TaskType, &t.BookingRequestID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
			&t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		); err != nil {
			return nil, persistErr(op, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return tasks, nil
}
