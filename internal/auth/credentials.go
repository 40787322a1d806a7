package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finance-tracker/internal/models"
	"finance-tracker/internal/storage"
)

var (
	// ErrDuplicateIdentity is returned when registering a taken username or email.
	ErrDuplicateIdentity = errors.New("auth: identity already exists")
	// ErrAuthFailure covers both unknown users and wrong passwords.
	ErrAuthFailure = errors.New("auth: invalid username or password")
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("auth: user not found")
	// ErrMissingCredentials is returned when a username or password is empty.
	ErrMissingCredentials = errors.New("auth: username and password are required")
)

// UserStore is the persistence the credential store needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, passwordHash string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByUsernameOrEmail(ctx context.Context, identity string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
}

// Credentials registers and authenticates users.
type Credentials struct {
	users UserStore
}

// NewCredentials creates a credential store backed by users.
func NewCredentials(users UserStore) *Credentials {
	return &Credentials{users: users}
}

// Register creates a user. Uniqueness is left to the store's unique index so
// that concurrent registrations of one username yield exactly one success.
func (c *Credentials) Register(ctx context.Context, username, password, email string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := c.users.CreateUser(ctx, username, email, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate returns the user for a matching username and password.
func (c *Credentials) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrAuthFailure
	}

	user, err := c.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAuthFailure
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrAuthFailure
	}
	return user, nil
}

// ResetPassword overwrites the password of username without any proof of
// identity beyond the username itself.
func (c *Credentials) ResetPassword(ctx context.Context, username, newPassword string) error {
	username = strings.TrimSpace(username)
	if username == "" || newPassword == "" {
		return ErrMissingCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := c.users.UpdatePasswordHash(ctx, username, hash); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// User returns the user with the given ID.
func (c *Credentials) User(ctx context.Context, id int64) (*models.User, error) {
	user, err := c.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// LookupContact finds a user by username or email.
func (c *Credentials) LookupContact(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	identity := strings.TrimSpace(usernameOrEmail)
	if identity == "" {
		return nil, ErrNotFound
	}
	user, err := c.users.GetUserByUsernameOrEmail(ctx, identity)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}
