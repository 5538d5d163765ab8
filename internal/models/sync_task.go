package models

import "time"

const (
	SyncTaskUpsertBooking = "upsert_booking_request"

	SyncStatusPending   = "pending"
	SyncStatusRetry     = "retry"
	SyncStatusCompleted = "completed"
	SyncStatusFailed    = "failed"
)

// SyncTask is a queued push of one booking request row to Sheets.
type SyncTask struct {
	ID               int64      `json:"id"`
	TaskType         string     `json:"task_type"`
	BookingRequestID string     `json:"booking_request_id"`
	Payload          string     `json:"payload"`
	Status           string     `json:"status"`
	RetryCount       int        `json:"retry_count"`
	LastError        *string    `json:"last_error"`
	CreatedAt        time.Time  `json:"created_at"`
	ProcessedAt      *time.Time `json:"processed_at"`
	NextRetryAt      *time.Time `json:"next_retry_at"`
}
