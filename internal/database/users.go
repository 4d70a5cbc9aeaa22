package database

import (
	"context"
	"database/sql"
	"fmt"

	"skillswap/pkg/types"
)

// UpsertUser creates or updates a pricing profile. created_at is kept on update.
func (m *Manager) UpsertUser(ctx context.Context, user *types.User) error {
	return m.executeWrite(ctx, func(db *sql.DB) error {
		query := m.q(`
			INSERT INTO users (id, name, price4, price6, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				price4 = excluded.price4,
				price6 = excluded.price6,
				updated_at = excluded.updated_at
		`)
		_, err := db.ExecContext(ctx, query,
			user.ID,
			user.Name,
			user.Price4,
			user.Price6,
			user.CreatedAt.UTC(),
			user.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a pricing profile by id
func (m *Manager) GetUser(ctx context.Context, userID string) (*types.User, error) {
	query := m.q(`SELECT id, name, price4, price6, created_at, updated_at FROM users WHERE id = ?`)

	var u types.User
	err := m.db.QueryRowContext(ctx, query, userID).Scan(
		&u.ID, &u.Name, &u.Price4, &u.Price6, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "user")
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}
