// Package auth verifies session tokens issued by the identity provider.
package auth

import (
	"errors"
	"fmt"
	"time"

	"charterly/internal/config"
	"charterly/internal/domain"
	"charterly/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// Claims is the session payload shared with the identity provider.
type Claims struct {
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_verified"`
	jwt.RegisteredClaims
}

type Manager struct {
	signingKey []byte
	issuer     string
	now        func() time.Time
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("empty signing key")
	}
	return &Manager{signingKey: []byte(cfg.SigningKey), issuer: cfg.Issuer, now: time.Now}, nil
}

// Issue signs a session token. The identity provider owns issuance in
// production; this exists for tooling and tests.
func (m *Manager) Issue(actor domain.Actor, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		Role:          string(actor.Role),
		EmailVerified: actor.EmailVerified,
		PhoneVerified: actor.PhoneVerified,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt failed: %w", err)
	}
	return token, nil
}

// Parse verifies the token and returns the caller identity.
func (m *Manager) Parse(raw string) (domain.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(m.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	}, opts...)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return domain.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	role := models.Role(claims.Role)
	if role != models.RoleAdmin {
		role = models.RoleUser
	}

	return domain.Actor{
		UserID:        claims.Subject,
		Role:          role,
		EmailVerified: claims.EmailVerified,
		PhoneVerified: claims.PhoneVerified,
	}, nil
}
