package database

import (
	"context"
	"fmt"

	"charterly/internal/models"
)

const verificationColumns = `id, user_id, phone_number, verification_sid, status, provider_status, verified_at, created_at, updated_at`

func (db *DB) CreateVerification(ctx context.Context, rec *models.VerificationRecord) error {
	query := `INSERT INTO phone_verifications (` + verificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(phone_number, verification_sid) DO NOTHING`

	now := db.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	_, err := db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.PhoneNumber, rec.VerificationSID, string(rec.Status), rec.ProviderStatus,
		utcPtr(rec.VerifiedAt), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return persistErr("create verification", err)
	}
	return nil
}

func (db *DB) FindVerification(ctx context.Context, phone, sid string) (*models.VerificationRecord, error) {
	query := `SELECT ` + verificationColumns + ` FROM phone_verifications WHERE phone_number = ? AND verification_sid = ?`

	var (
		rec    models.VerificationRecord
		status string
	)
	err := db.QueryRowContext(ctx, query, phone, sid).Scan(
		&rec.ID, &rec.UserID, &rec.PhoneNumber, &rec.VerificationSID, &status, &rec.ProviderStatus,
		&rec.VerifiedAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, persistErr("find verification", err)
	}
	rec.Status = models.VerificationStatus(status)
	return &rec, nil
}

// ApplyVerificationUpdate stores rec and projects the verified flag onto the
// owning user in one transaction. The user update only flips 0 to 1, so
// replays leave updated_at alone.
func (db *DB) ApplyVerificationUpdate(ctx context.Context, rec *models.VerificationRecord, writeRecord, markUser bool) error {
	if !writeRecord && !markUser {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin verification update", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if writeRecord {
		query := `UPDATE phone_verifications
                  SET status = ?, provider_status = ?, verified_at = ?, updated_at = ?
                  WHERE id = ?`
		result, err := tx.ExecContext(ctx, query,
			string(rec.Status), rec.ProviderStatus, utcPtr(rec.VerifiedAt), rec.UpdatedAt.UTC(), rec.ID)
		if err != nil {
			return persistErr("update verification", err)
		}
		if err := requireRow(result, "update verification"); err != nil {
			return fmt.Errorf("verification %s: %w", rec.ID, err)
		}
	}

	if markUser {
		query := `UPDATE users SET phone_verified = 1, updated_at = ? WHERE id = ? AND phone_verified = 0`
		if _, err := tx.ExecContext(ctx, query, db.now(), rec.UserID); err != nil {
			return persistErr("mark user phone verified", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit verification update", err)
	}
	return nil
}
