package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/p-blackswan/tally/internal/models"
)

// CreateUser inserts u, assigning an id when empty.
func (r *Repo) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := r.nowMs()
	u.CreatedAt = fromMs(now)

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, name, email, avatar, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, nullString(u.Avatar), now,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with id, or nil when it does not exist.
func (r *Repo) GetUser(ctx context.Context, id string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, avatar, created_at FROM users WHERE id = ?`, id)
}

// UserByEmail looks a user up by email, case-insensitively.
func (r *Repo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT id, name, email, avatar, created_at FROM users WHERE lower(email) = ?`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (r *Repo) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListUsers returns the directory ordered by name.
func (r *Repo) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, email, avatar, created_at FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u         models.User
		avatar    sql.NullString
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &avatar, &createdAt); err != nil {
		return nil, err
	}
	u.Avatar = avatar.String
	u.CreatedAt = fromMs(createdAt)
	return &u, nil
}
