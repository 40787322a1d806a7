package storage

import (
	"context"
	"database/sql"
	"fmt"

	"finance-tracker/internal/models"
)

const userColumns = "id, username, email, password_hash, created_at"

// CreateUser creates a new user with the given username and password hash.
// An empty email is stored as NULL. Returns ErrDuplicate if the username or
// email is already taken; the failed insert leaves no row behind.
func (db *DB) CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error) {
	var emailArg any
	if email != "" {
		emailArg = email
	}

	result, err := db.conn.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		username, emailArg, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create user %q: %w", username, ErrDuplicate)
		}
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?",
		id,
	)
	return scanUser(row)
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?",
		username,
	)
	return scanUser(row)
}

// GetUserByUsernameOrEmail retrieves the user whose username or email equals
// identity. Username matches win over email matches.
func (db *DB) GetUserByUsernameOrEmail(ctx context.Context, identity string) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+` FROM users
		WHERE username = ? OR email = ?
		ORDER BY CASE WHEN username = ? THEN 0 ELSE 1 END
		LIMIT 1`,
		identity, identity, identity,
	)
	return scanUser(row)
}

// UpdatePasswordHash overwrites the stored hash for username.
func (db *DB) UpdatePasswordHash(ctx context.Context, username, passwordHash string) error {
	result, err := db.conn.ExecContext(ctx,
		"UPDATE users SET password_hash = ? WHERE username = ?",
		passwordHash, username,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u     models.User
		email sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, mapNoRows(err)
	}
	if email.Valid {
		u.Email = &email.String
	}
	return &u, nil
}
