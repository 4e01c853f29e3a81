// Package token issues and verifies the signed bearer tokens that carry a
// logged-in user's identity between requests.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/calloway/stitch/internal/domain"
)

// DefaultTTL is how long an issued user token stays valid.
const DefaultTTL = 24 * time.Hour * 7

// Service signs and verifies user tokens with an HMAC secret.
type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret string, ttl time.Duration) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &Service{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for the user.
func (s *Service) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.ttl).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", domain.WrapError(err, domain.EINTERNAL, "token.Issue", "Failed to sign token")
	}
	return signed, nil
}

// Verify parses and validates a token string and returns the user ID it
// was issued for. Expired or tampered tokens fail with EUNAUTHORIZED.
func (s *Service) Verify(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !t.Valid {
		return "", domain.Unauthorized("token.Verify", "Invalid or expired token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.Unauthorized("token.Verify", "Invalid token claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.Unauthorized("token.Verify", "Token is missing a subject")
	}
	return sub, nil
}
