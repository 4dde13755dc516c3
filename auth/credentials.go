package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any login failure. Callers must not
// tell the user which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialStore verifies dashboard logins and holds the token signing secret
type CredentialStore interface {
	Verify(username, secret string) error
	TokenSecret() []byte
}

// EnvCredentialStore is a single-operator credential store fed from the
// environment. A bcrypt hash is preferred; a plaintext password is accepted
// for local development and hashed at load so comparisons stay constant-time.
type EnvCredentialStore struct {
	username    string
	passwordKey []byte
	tokenSecret []byte
}

// NewEnvCredentialStore builds the store from resolved config values.
// passwordHash wins over password when both are set.
func NewEnvCredentialStore(username, password, passwordHash, jwtSecret string) (*EnvCredentialStore, error) {
	if username == "" {
		return nil, fmt.Errorf("dashboard username not configured")
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret not configured")
	}

	key := []byte(passwordHash)
	if passwordHash == "" {
		if password == "" {
			return nil, fmt.Errorf("dashboard password not configured")
		}
		hashed, err := HashPassword(password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash dashboard password: %w", err)
		}
		key = []byte(hashed)
	}

	return &EnvCredentialStore{
		username:    username,
		passwordKey: key,
		tokenSecret: []byte(jwtSecret),
	}, nil
}

// Verify checks a username/password pair against the configured operator
func (s *EnvCredentialStore) Verify(username, secret string) error {
	if username != s.username {
		// Still burn a bcrypt comparison so the two failure paths take
		// comparable time.
		_ = bcrypt.CompareHashAndPassword(s.passwordKey, []byte(secret))
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordKey, []byte(secret)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// TokenSecret returns the HMAC signing key for dashboard tokens
func (s *EnvCredentialStore) TokenSecret() []byte {
	return s.tokenSecret
}

// HashPassword hashes a plaintext password for storage. Never store plaintext.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GenerateDashboardToken issues a signed token for an authenticated operator
func GenerateDashboardToken(username string, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub":   username,
		"scope": "dashboard",
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseDashboardToken validates a token and returns the operator username
func ParseDashboardToken(tokenString string, secret []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if scope, _ := claims["scope"].(string); scope != "dashboard" {
		return "", fmt.Errorf("token scope mismatch")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return sub, nil
}
