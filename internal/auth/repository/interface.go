package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is a stored account.
type User struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	HashedPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session is a stored login session. Only the token hash is persisted.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateUserParams contains parameters for creating a user.
type CreateUserParams struct {
	ID             uuid.UUID
	Email          string
	FullName       string
	HashedPassword string
}

// UpdateUserParams contains the optional fields of a profile update.
type UpdateUserParams struct {
	FullName       *string
	Email          *string
	HashedPassword *string
}

// UserReader provides read access to users.
type UserReader interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	EmailTaken(ctx context.Context, email string, excludeUserID *uuid.UUID) (bool, error)
}

// UserWriter provides write access to users.
type UserWriter interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (User, error)
}

// SessionStore manages login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, sessionID uuid.UUID) (Session, error)
	DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// AuthRepository combines all auth storage operations.
type AuthRepository interface {
	UserReader
	UserWriter
	SessionStore
}
