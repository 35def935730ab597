// Package auth resolves bearer tokens to principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/coachline/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Claims are the access-token claims issued by the account service.
type Claims struct {
	UserID    string `json:"_id"`
	Role      string `json:"role"`
	SessionID string `json:"sessionId,omitempty"`
	jwt.RegisteredClaims
}

// SessionChecker confirms a login session is still valid for a user.
type SessionChecker interface {
	SessionValid(ctx context.Context, sessionID string, user domain.UserID) (bool, error)
}

// JWTVerifier verifies HS256 access tokens.
type JWTVerifier struct {
	secret   []byte
	sessions SessionChecker
}

// NewJWTVerifier builds a verifier; sessions may be nil to skip the session check.
func NewJWTVerifier(secret string, sessions SessionChecker) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), sessions: sessions}
}

// Resolve reports every failure as domain.ErrUnauthorized.
func (v *JWTVerifier) Resolve(ctx context.Context, credential string) (domain.Principal, error) {
	claims, err := v.parse(credential)
	if err != nil {
		log.Debug().Err(err).Str("module", "auth").Msg("token rejected")
		return domain.Principal{}, domain.ErrUnauthorized
	}
	p, err := domain.NewPrincipal(domain.UserID(claims.UserID), claims.Role)
	if err != nil {
		log.Debug().Str("module", "auth").Str("role", claims.Role).Msg("token with unknown role")
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if v.sessions != nil {
		if claims.SessionID == "" {
			return domain.Principal{}, domain.ErrUnauthorized
		}
		ok, err := v.sessions.SessionValid(ctx, claims.SessionID, p.ID)
		if err != nil {
			log.Error().Err(err).Str("module", "auth").Str("user", claims.UserID).Msg("session lookup failed")
			return domain.Principal{}, domain.ErrUnauthorized
		}
		if !ok {
			return domain.Principal{}, domain.ErrUnauthorized
		}
	}
	return p, nil
}

func (v *JWTVerifier) parse(token string) (*Claims, error) {
	if len(v.secret) == 0 {
		return nil, errors.New("auth secret not configured")
	}
	token = StripBearer(token)
	if token == "" {
		return nil, errors.New("missing token")
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, errors.New("token without user id")
	}
	return claims, nil
}

// Issue signs a token for a user; ttl 0 means no expiry. Used by the token command and tests.
func Issue(secret string, user domain.UserID, role, sessionID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("auth secret not configured")
	}
	now := time.Now()
	claims := Claims{
		UserID:    string(user),
		Role:      role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// StripBearer trims a credential and drops an optional case-insensitive "Bearer " prefix.
func StripBearer(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) > 6 && strings.EqualFold(s[:6], "bearer") && (s[6] == ' ' || s[6] == '\t') {
		return strings.TrimSpace(s[7:])
	}
	return s
}
