package repository

import (
	"context"
	"errors"
	"time"

	"lexpertease/internal/model"
)

var (
	// ErrNotFound is returned when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("duplicate key")
)

// UserRepository defines credential store operations.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id string, role model.Role) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
}

// SessionRepository defines session store operations.
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// Consume revokes the active session holding token and returns it.
	// Only one of several concurrent callers can consume a given token;
	// the others get ErrNotFound.
	Consume(ctx context.Context, token string, typ model.SessionType, now time.Time) (*model.Session, error)
	Revoke(ctx context.Context, userID, token string, typ model.SessionType) error
	RevokeAll(ctx context.Context, userID string, typ model.SessionType) error
	// PurgeExpired deletes sessions that expired before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordResetRepository defines reset-token store operations.
type PasswordResetRepository interface {
	Create(ctx context.Context, reset *model.PasswordReset) error
	// InvalidateForUser marks every unused token of the user as used.
	InvalidateForUser(ctx context.Context, userID string) error
	// Consume marks the unused, unexpired token as used and returns it.
	Consume(ctx context.Context, token string, now time.Time) (*model.PasswordReset, error)
	// PurgeExpired deletes tokens that are used or expired before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store groups the repositories sharing one database handle.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	PasswordResets() PasswordResetRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
