package database

import (
	"context"
	"database/sql"
	"time"

	"charterly/internal/domain"
	"charterly/internal/models"
)

const bookingRequestColumns = `id, boat_id, user_id, customer_name, customer_email, customer_phone,
	is_multi_day, start_date, end_date, start_time, end_time, number_of_hours, number_of_passengers,
	needs_captain, special_requests, total_amount, deposit_amount, currency, status, review_notes,
	reviewed_at, payment_provider_ref, payment_link_url, payment_link_expires_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBookingRequest(row rowScanner) (*models.BookingRequest, error) {
	var (
		b       models.BookingRequest
		userID  sql.NullString
		deposit sql.NullFloat64
		status  string
	)
	err := row.Scan(
		&b.ID, &b.BoatID, &userID, &b.CustomerName, &b.CustomerEmail, &b.CustomerPhone,
		&b.IsMultiDay, &b.StartDate, &b.EndDate, &b.StartTime, &b.EndTime, &b.NumberOfHours, &b.NumberOfPassengers,
		&b.NeedsCaptain, &b.SpecialRequests, &b.TotalAmount, &deposit, &b.Currency, &status, &b.ReviewNotes,
		&b.ReviewedAt, &b.PaymentProviderRef, &b.PaymentLinkURL, &b.PaymentLinkExpiry, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		b.UserID = &userID.String
	}
	if deposit.Valid {
		b.DepositAmount = &deposit.Float64
	}
	b.Status = models.BookingStatus(status)
	return &b, nil
}

func (db *DB) CreateBookingRequest(ctx context.Context, req *models.BookingRequest) error {
	query := `INSERT INTO booking_requests (` + bookingRequestColumns + `)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := db.now()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	req.CreatedAt = req.CreatedAt.UTC()
	req.UpdatedAt = req.UpdatedAt.UTC()

	_, err := db.ExecContext(ctx, query,
		req.ID, req.BoatID, req.UserID, req.CustomerName, req.CustomerEmail, req.CustomerPhone,
		req.IsMultiDay, req.StartDate, req.EndDate, req.StartTime, req.EndTime, req.NumberOfHours, req.NumberOfPassengers,
		req.NeedsCaptain, req.SpecialRequests, req.TotalAmount, req.DepositAmount, req.Currency, string(req.Status), req.ReviewNotes,
		utcPtr(req.ReviewedAt), req.PaymentProviderRef, req.PaymentLinkURL, utcPtr(req.PaymentLinkExpiry), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return persistErr("create booking request", err)
	}
	return nil
}

func (db *DB) GetBookingRequest(ctx context.Context, id string) (*models.BookingRequest, error) {
	query := `SELECT ` + bookingRequestColumns + ` FROM booking_requests WHERE id = ?`
	b, err := scanBookingRequest(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, persistErr("get booking request", err)
	}
	return b, nil
}

// UpdateBookingRequestStatus writes the review fields unconditionally.
func (db *DB) UpdateBookingRequestStatus(ctx context.Context, id string, status models.BookingStatus, notes string, at time.Time) error {
	query := `UPDATE booking_requests SET status = ?, review_notes = ?, reviewed_at = ?, updated_at = ? WHERE id = ?`
	at = at.UTC()
	result, err := db.ExecContext(ctx, query, string(status), notes, at, at, id)
	if err != nil {
		return persistErr("update booking request status", err)
	}
	return requireRow(result, "update booking request status")
}

// UpdateBookingRequestPayment writes the payment-link fields and updated_at of req.
func (db *DB) UpdateBookingRequestPayment(ctx context.Context, req *models.BookingRequest) error {
	query := `UPDATE booking_requests
              SET payment_provider_ref = ?, payment_link_url = ?, payment_link_expires_at = ?, updated_at = ?
              WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		req.PaymentProviderRef, req.PaymentLinkURL, utcPtr(req.PaymentLinkExpiry), req.UpdatedAt.UTC(), req.ID)
	if err != nil {
		return persistErr("update booking request payment", err)
	}
	return requireRow(result, "update booking request payment")
}

func (db *DB) GetUserBookingRequests(ctx context.Context, userID string) ([]*models.BookingRequest, error) {
	query := `SELECT ` + bookingRequestColumns + ` FROM booking_requests WHERE user_id = ? ORDER BY created_at DESC`
	return db.queryBookingRequests(ctx, "get user booking requests", query, userID)
}

func (db *DB) GetBoatBookingRequests(ctx context.Context, boatID string) ([]*models.BookingRequest, error) {
	query := `SELECT ` + bookingRequestColumns + ` FROM booking_requests WHERE boat_id = ? ORDER BY start_date ASC, created_at ASC`
	return db.queryBookingRequests(ctx, "get boat booking requests", query, boatID)
}

// ListBookingRequests returns requests created in [from, to).
func (db *DB) ListBookingRequests(ctx context.Context, from, to time.Time) ([]*models.BookingRequest, error) {
	query := `SELECT ` + bookingRequestColumns + ` FROM booking_requests
              WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC`
	return db.queryBookingRequests(ctx, "list booking requests", query, from.UTC(), to.UTC())
}

// GetExpiredPaymentLinks returns AWAITING requests whose payment link expired at or before now.
func (db *DB) GetExpiredPaymentLinks(ctx context.Context, now time.Time) ([]*models.BookingRequest, error) {
	query := `SELECT ` + bookingRequestColumns + ` FROM booking_requests
              WHERE status = ? AND payment_link_expires_at IS NOT NULL AND payment_link_expires_at <= ?
              ORDER BY payment_link_expires_at ASC`
	return db.queryBookingRequests(ctx, "get expired payment links", query, string(models.StatusAwaiting), now.UTC())
}

func (db *DB) queryBookingRequests(ctx context.Context, op, query string, args ...interface{}) ([]*models.BookingRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistErr(op, err)
	}
	defer rows.Close()

	out := []*models.BookingRequest{}
	for rows.Next() {
		b, err := scanBookingRequest(rows)
		if err != nil {
			return nil, persistErr(op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr(op, err)
	}
	return out, nil
}

func requireRow(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return persistErr(op, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
