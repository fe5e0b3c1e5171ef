package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a username lookup finds nothing.
var ErrUserNotFound = errors.New("user not found")

type (
	// UserStore persists operator accounts for the sign-in endpoint.
	UserStore struct {
		conn *Connection
	}

	// User is an operator account. PasswordHash is a bcrypt hash; the
	// plaintext password never touches storage.
	User struct {
		ID           uuid.UUID
		Username     string
		PasswordHash string
		Role         string
		CreatedAt    time.Time
	}
)

// NewUserStore creates a user store backed by the given connection.
func NewUserStore(conn *Connection) *UserStore {
	return &UserStore{conn: conn}
}

// FindByUsername returns the user with the given username, or ErrUserNotFound.
func (s *UserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	var user User

	err := s.conn.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}

		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}

// EnsureUser creates the user if no account with that username exists yet.
// Existing accounts are left untouched, so re-running startup seeding never
// rotates a password. Reports whether a row was created.
func (s *UserStore) EnsureUser(ctx context.Context, username, passwordHash, role string) (bool, error) {
	result, err := s.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO NOTHING
	`, uuid.New(), username, passwordHash, role)
	if err != nil {
		return false, fmt.Errorf("failed to seed user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
