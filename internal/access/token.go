package access

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "fuelgrid"

// TokenIssuer mints and verifies bearer tokens bound to sessions. Tokens are
// HS256 JWTs; the session id travels in the sid claim so the HTTP layer can
// re-check session liveness against the store.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// TokenClaims are the verified claims the HTTP layer consumes.
type TokenClaims struct {
	SessionID string `json:"sid"`
	TenantID  string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// NewTokenIssuer constructs a TokenIssuer with the given signing secret.
func NewTokenIssuer(secret string, now func() time.Time) (*TokenIssuer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("access: token secret is required")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{secret: []byte(secret), now: now}, nil
}

// Issue signs a token for the session; the token expires with the session's
// access window.
func (t *TokenIssuer) Issue(sess *Session) (string, error) {
	if sess == nil || sess.ID == "" {
		return "", errors.New("access: session is required")
	}
	now := t.now().UTC()
	claims := TokenClaims{
		SessionID: sess.ID,
		TenantID:  sess.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseAndValidate verifies the token signature and required claims.
func (t *TokenIssuer) ParseAndValidate(token string) (*TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return t.now().UTC() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != tokenIssuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
