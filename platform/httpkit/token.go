package httpkit

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeSession = "access"

// ErrInvalidToken is returned for any token that fails signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// SessionClaims are the identifiers carried by a session token.
type SessionClaims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	ExpiresAt time.Time
}

// IssueSessionToken signs an HS256 token binding userID to sessionID until expiresAt.
func IssueSessionToken(secret string, userID, sessionID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"sid":  sessionID.String(),
		"type": tokenTypeSession,
		"iat":  issuedAt.Unix(),
		"exp":  expiresAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken verifies rawToken and returns its claims.
func ParseSessionToken(secret, rawToken string) (SessionClaims, error) {
	parsed, err := jwt.Parse(rawToken, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return SessionClaims{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return SessionClaims{}, ErrInvalidToken
	}
	if tokenType, _ := claims["type"].(string); tokenType != tokenTypeSession {
		return SessionClaims{}, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return SessionClaims{}, ErrInvalidToken
	}
	sid, _ := claims["sid"].(string)
	sessionID, err := uuid.Parse(sid)
	if err != nil {
		return SessionClaims{}, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return SessionClaims{}, ErrInvalidToken
	}

	return SessionClaims{UserID: userID, SessionID: sessionID, ExpiresAt: exp.Time}, nil
}
