// Package auth mints and verifies the bearer tokens the HTTP surface
// requires on every route but download. A token carries an expiry, an
// issued-at time, and a fixed subject the deployment is configured to
// accept; anything else the caller supplies travels along as additional
// claims.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/errtypes"
)

// Manager mints and verifies bearer tokens for one configured subject.
type Manager struct {
	secret   []byte
	method   jwt.SigningMethod
	subject  string
	duration time.Duration
}

// NewManager returns a Manager from cfg's JWT_SECRET/JWT_ALGORITHM/
// JWT_SUBJECT/JWT_DURATION settings. Only HMAC signing methods are
// supported: the config carries a single shared secret string, which
// has no sensible asymmetric-key interpretation.
func NewManager(cfg *config.Config) (*Manager, error) {
	method := jwt.GetSigningMethod(cfg.JWTAlgorithm)
	if method == nil {
		return nil, errtypes.BadRequest("unknown JWT algorithm " + cfg.JWTAlgorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errtypes.NotSupported("non-HMAC JWT algorithm " + cfg.JWTAlgorithm)
	}
	return &Manager{
		secret:   []byte(cfg.JWTSecret),
		method:   method,
		subject:  cfg.JWTSubject,
		duration: time.Duration(cfg.JWTDuration) * time.Minute,
	}, nil
}

// CreateToken mints a signed token for subject carrying data as
// additional claims, expiring after expiresDelta (or m.duration, if
// expiresDelta is zero).
func (m *Manager) CreateToken(data map[string]any, subject string, expiresDelta time.Duration) (string, error) {
	if expiresDelta == 0 {
		expiresDelta = m.duration
	}
	now := time.Now().UTC()
	claims := jwt.MapClaims{}
	for k, v := range data {
		claims[k] = v
	}
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(expiresDelta).Unix()
	claims["sub"] = subject

	token := jwt.NewWithClaims(m.method, claims)
	return token.SignedString(m.secret)
}

// DecodeToken verifies tokenString's signature and expiry, and that its
// subject matches the configured one, returning its claims.
func (m *Manager) DecodeToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if t.Method != m.method {
			return nil, errtypes.InvalidCredentials("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{m.method.Alg()}))
	if err != nil || !token.Valid {
		return nil, errtypes.InvalidCredentials("invalid or expired token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errtypes.InvalidCredentials("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub != m.subject {
		return nil, errtypes.InvalidCredentials("unexpected token subject")
	}
	return claims, nil
}

// ValidateBearerHeader extracts and verifies the token from an
// "Authorization: Bearer <token>" header value. The BYPASS_AUTHORIZATION
// config toggle (the original's JWT_DISABLE escape hatch for local
// development) is handled by the caller, not here: skipping verification
// is a routing decision, not a token-validation one.
func (m *Manager) ValidateBearerHeader(header string) error {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return errtypes.InvalidCredentials("missing bearer details")
	}
	token := strings.TrimPrefix(header, prefix)
	_, err := m.DecodeToken(token)
	return err
}
