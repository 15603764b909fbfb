package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	msgUserNotFound    = "user not found"
	msgSessionNotFound = "session not found"
	msgEmailTaken      = "email already registered"

	pgUniqueViolation = "23505"
)

const (
	userColumns = `id, email, full_name, hashed_password, created_at, updated_at`

	insertUserQuery = `
		INSERT INTO users (id, email, full_name, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	getUserByIDQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`

	emailTakenQuery = `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE LOWER(email) = LOWER($1) AND ($2::uuid IS NULL OR id <> $2)
		)`

	updateUserQuery = `
		UPDATE users SET
			full_name = COALESCE($2, full_name),
			email = COALESCE($3, email),
			hashed_password = COALESCE($4, hashed_password),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	insertSessionQuery = `
		INSERT INTO sessions (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)`

	getSessionQuery = `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM sessions
		WHERE id = $1`

	deleteSessionQuery = `DELETE FROM sessions WHERE id = $1 AND user_id = $2`

	deleteExpiredSessionsQuery = `DELETE FROM sessions WHERE expires_at <= $1`
)

// Repository implements AuthRepository with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new auth repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ AuthRepository = (*Repository)(nil)

func (r *Repository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, insertUserQuery,
		params.ID, params.Email, params.FullName, params.HashedPassword,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, apperr.Conflict(msgEmailTaken)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, userID uuid.UUID) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, getUserByIDQuery, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(msgUserNotFound)
		}
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, getUserByEmailQuery, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(msgUserNotFound)
		}
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *Repository) EmailTaken(ctx context.Context, email string, excludeUserID *uuid.UUID) (bool, error) {
	var taken bool
	if err := r.pool.QueryRow(ctx, emailTakenQuery, email, excludeUserID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check email taken: %w", err)
	}
	return taken, nil
}

func (r *Repository) UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, updateUserQuery,
		userID, params.FullName, params.Email, params.HashedPassword,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, apperr.NotFound(msgUserNotFound)
		}
		if isUniqueViolation(err) {
			return User{}, apperr.Conflict(msgEmailTaken)
		}
		return User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (r *Repository) CreateSession(ctx context.Context, session Session) error {
	if _, err := r.pool.Exec(ctx, insertSessionQuery,
		session.ID, session.UserID, session.TokenHash, session.ExpiresAt,
	); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *Repository) GetSession(ctx context.Context, sessionID uuid.UUID) (Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, getSessionQuery, sessionID).Scan(
		&s.ID, &s.UserID, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, apperr.NotFound(msgSessionNotFound)
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	if _, err := r.pool.Exec(ctx, deleteSessionQuery, sessionID, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, deleteExpiredSessionsQuery, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
