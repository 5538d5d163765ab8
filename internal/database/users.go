package database

import (
	"context"

	"charterly/internal/models"
)

// UpsertUser mirrors a user from the identity provider. phone_verified is never
// cleared here; it only changes through ApplyVerificationUpdate.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (id, email, name, phone, role, phone_verified, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            email = excluded.email,
            name = excluded.name,
            phone = excluded.phone,
            role = excluded.role,
            phone_verified = MAX(users.phone_verified, excluded.phone_verified),
            updated_at = excluded.updated_at
    `

	now := db.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	_, err := db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Phone, string(user.Role), user.PhoneVerified,
		user.CreatedAt.UTC(), user.UpdatedAt,
	)
	if err != nil {
		return persistErr("upsert user", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, email, name, phone, role, phone_verified, created_at, updated_at FROM users WHERE id = ?`

	var (
		user models.User
		role string
	)
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.Name, &user.Phone, &role, &user.PhoneVerified, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, persistErr("get user", err)
	}
	user.Role = models.Role(role)
	return &user, nil
}
