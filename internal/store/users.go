// ABOUTME: User persistence for the SQLite store
// ABOUTME: Registration and the active-user lookup used by identity resolution

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateUser inserts a user and sets user.ID to the assigned id.
// Returns ErrDuplicateUser if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.PreferredLanguage == "" {
		user.PreferredLanguage = "en"
	}

	query := `
		INSERT INTO users (email, first_name, last_name, preferred_language, is_support, is_active, is_deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PreferredLanguage,
		boolToInt(user.IsSupport),
		boolToInt(user.IsActive),
		boolToInt(user.IsDeleted),
		user.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	user.ID = id

	s.logger.Debug("created user", "id", id, "support", user.IsSupport)
	return nil
}

// GetActiveUser retrieves a user that is active and not deleted.
// The activity filter is part of the query so the decision is made in one read.
func (s *SQLiteStore) GetActiveUser(ctx context.Context, id int64) (*User, error) {
	query := `
		SELECT id, email, first_name, last_name, preferred_language, is_support, is_active, is_deleted, created_at
		FROM users
		WHERE id = ? AND is_active = 1 AND is_deleted = 0
	`

	var user User
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PreferredLanguage,
		&user.IsSupport,
		&user.IsActive,
		&user.IsDeleted,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetUserActive toggles the is_active flag. Used by the CLI to disable accounts.
func (s *SQLiteStore) SetUserActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser soft-deletes a user. The row stays so history keeps its sender.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET is_deleted = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted user", "id", id)
	return nil
}
