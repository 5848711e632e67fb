package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("conflict")

// DateLayout is the storage layout for birthdays.
const DateLayout = "2006-01-02"

// User represents a registered chat user.
type User struct {
	ID           int64
	Login        string
	PasswordHash string
	Username     string
	Birthday     time.Time
	City         string
	Description  string
	CreatedAt    time.Time
}

// NewUser carries the fields needed to create a user record.
type NewUser struct {
	Login        string
	PasswordHash string
	Username     string
	Birthday     time.Time
	City         string
	Description  string
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser inserts a user and returns it with the assigned ID.
	// Returns ErrConflict if the login is taken.
	CreateUser(ctx context.Context, u NewUser) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByLogin retrieves a user by login.
	GetUserByLogin(ctx context.Context, login string) (*User, error)

	// ListUsers returns every registered user ordered by ID.
	ListUsers(ctx context.Context) ([]*User, error)
}

// FriendStore handles directed friend edges.
type FriendStore interface {
	// AddFriendEdge records that fromID added toID. Adding an existing edge is a no-op.
	AddFriendEdge(ctx context.Context, fromID, toID int64) error

	// ListMutualFriendIDs returns the ids that have an edge to and from userID.
	ListMutualFriendIDs(ctx context.Context, userID int64) ([]int64, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	FriendStore

	// Close closes the underlying database connection.
	Close() error
}
