package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"crm_backend/internal/auth/lockout"
	"crm_backend/internal/auth/password"
	"crm_backend/internal/auth/repository"
	"crm_backend/internal/auth/token"
	"crm_backend/internal/auth/transport"
	"crm_backend/internal/events"
	"crm_backend/platform/apperr"
	"crm_backend/platform/config"
	"crm_backend/platform/httpkit"
	"crm_backend/platform/logger"
	"crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

const (
	msgInvalidCredentials = "invalid email or password"
	msgTooManyAttempts    = "too many failed login attempts, try again later"
	msgEmailTaken         = "email already registered"
	msgSessionInvalid     = "session expired or revoked"
)

type Service struct {
	repo  repository.AuthRepository
	cfg   config.AuthServiceConfig
	guard lockout.Guard
	bus   events.Bus
	log   *logger.Logger
	now   func() time.Time
}

func New(repo repository.AuthRepository, cfg config.AuthServiceConfig, guard lockout.Guard, bus events.Bus, log *logger.Logger) *Service {
	if guard == nil {
		guard = lockout.Noop{}
	}
	return &Service{repo: repo, cfg: cfg, guard: guard, bus: bus, log: log, now: time.Now}
}

// Register creates an account and opens its first session.
func (s *Service) Register(ctx context.Context, req transport.RegisterRequest) (transport.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	taken, err := s.repo.EmailTaken(ctx, email, nil)
	if err != nil {
		return transport.AuthResponse{}, err
	}
	if taken {
		s.log.AuthEvent("register", email, false, "email taken")
		return transport.AuthResponse{}, apperr.Conflict(msgEmailTaken)
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return transport.AuthResponse{}, err
	}

	user, err := s.repo.CreateUser(ctx, repository.CreateUserParams{
		ID:             uuid.Must(uuid.NewV7()),
		Email:          email,
		FullName:       sanitize.Text(req.FullName),
		HashedPassword: hash,
	})
	if err != nil {
		return transport.AuthResponse{}, err
	}

	resp, err := s.openSession(ctx, user)
	if err != nil {
		return transport.AuthResponse{}, err
	}

	s.log.AuthEvent("register", email, true, "")
	if s.bus != nil {
		s.bus.Publish(ctx, events.UserRegistered{
			BaseEvent: events.NewBaseEvent(),
			UserID:    user.ID,
			Email:     user.Email,
			FullName:  user.FullName,
		})
	}
	return resp, nil
}

// Login verifies credentials and opens a new session. Repeated failures for
// the same email are locked out by the guard.
func (s *Service) Login(ctx context.Context, req transport.LoginRequest) (transport.AuthResponse, error) {
	email := normalizeEmail(req.Email)

	locked, err := s.guard.Locked(ctx, email)
	if err != nil {
		s.log.Warn("login lockout check failed", "error", err)
	}
	if locked {
		s.log.AuthEvent("login", email, false, "locked out")
		return transport.AuthResponse{}, apperr.TooManyRequests(msgTooManyAttempts)
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.recordFailure(ctx, email, "unknown email")
			return transport.AuthResponse{}, apperr.Unauthorized(msgInvalidCredentials)
		}
		return transport.AuthResponse{}, err
	}

	if err := password.Compare(user.HashedPassword, req.Password); err != nil {
		s.recordFailure(ctx, email, "wrong password")
		return transport.AuthResponse{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	if err := s.guard.Reset(ctx, email); err != nil {
		s.log.Warn("login lockout reset failed", "error", err)
	}

	resp, err := s.openSession(ctx, user)
	if err != nil {
		return transport.AuthResponse{}, err
	}
	s.log.AuthEvent("login", email, true, "")
	return resp, nil
}

// Logout revokes only the given session.
func (s *Service) Logout(ctx context.Context, userID, sessionID uuid.UUID) error {
	if err := s.repo.DeleteSession(ctx, sessionID, userID); err != nil {
		return err
	}
	s.log.Info("session revoked", "userId", userID, "sessionId", sessionID)
	return nil
}

// ValidateSession implements httpkit.SessionValidator.
func (s *Service) ValidateSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Unauthorized(msgSessionInvalid)
		}
		return err
	}
	if session.UserID != userID || !session.ExpiresAt.After(s.now()) {
		return apperr.Unauthorized(msgSessionInvalid)
	}
	return nil
}

// GetMe returns the profile of userID.
func (s *Service) GetMe(ctx context.Context, userID uuid.UUID) (transport.UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return transport.UserResponse{}, err
	}
	return toUserResponse(user), nil
}

// UpdateMe applies a partial profile update. A changed email must not belong
// to another account, compared case-insensitively.
func (s *Service) UpdateMe(ctx context.Context, userID uuid.UUID, req transport.UpdateMeRequest) (transport.UserResponse, error) {
	params := repository.UpdateUserParams{FullName: sanitize.TextPtr(req.FullName)}

	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		taken, err := s.repo.EmailTaken(ctx, email, &userID)
		if err != nil {
			return transport.UserResponse{}, err
		}
		if taken {
			return transport.UserResponse{}, apperr.Conflict(msgEmailTaken)
		}
		params.Email = &email
	}

	if req.Password != nil {
		hash, err := password.Hash(*req.Password)
		if err != nil {
			return transport.UserResponse{}, err
		}
		params.HashedPassword = &hash
	}

	user, err := s.repo.UpdateUser(ctx, userID, params)
	if err != nil {
		return transport.UserResponse{}, err
	}
	s.log.Info("profile updated", "userId", userID)
	return toUserResponse(user), nil
}

// ResolveUserID maps an account email to its user ID.
func (s *Service) ResolveUserID(ctx context.Context, email string) (uuid.UUID, error) {
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}

// CleanupExpiredSessions deletes sessions whose expiry has passed.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("expired sessions removed", "count", n)
	}
	return n, nil
}

func (s *Service) openSession(ctx context.Context, user repository.User) (transport.AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.GetSessionTTL())
	sessionID := uuid.Must(uuid.NewV7())

	raw, err := httpkit.IssueSessionToken(s.cfg.GetJWTSecret(), user.ID, sessionID, now, expiresAt)
	if err != nil {
		return transport.AuthResponse{}, err
	}

	if err := s.repo.CreateSession(ctx, repository.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: token.HashSHA256(raw),
		ExpiresAt: expiresAt,
	}); err != nil {
		return transport.AuthResponse{}, err
	}

	return transport.AuthResponse{
		User:         toUserResponse(user),
		SessionToken: raw,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, email, reason string) {
	s.log.AuthEvent("login", email, false, reason)
	if err := s.guard.RecordFailure(ctx, email); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("login failure not recorded", "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

func toUserResponse(u repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
