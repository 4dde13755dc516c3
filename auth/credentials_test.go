package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestNewEnvCredentialStore_RequiresFields(t *testing.T) {
	cases := []struct {
		name                                      string
		username, password, passwordHash, secret string
	}{
		{"missing username", "", "pw", "", "secret"},
		{"missing jwt secret", "ops", "pw", "", ""},
		{"missing password and hash", "ops", "", "", "secret"},
	}
	for _, tc := range cases {
		if _, err := NewEnvCredentialStore(tc.username, tc.password, tc.passwordHash, tc.secret); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestVerify_PlaintextPassword(t *testing.T) {
	store, err := NewEnvCredentialStore("ops", "hunter22", "", "secret")
	if err != nil {
		t.Fatalf("NewEnvCredentialStore: %v", err)
	}

	if err := store.Verify("ops", "hunter22"); err != nil {
		t.Errorf("valid credentials rejected: %v", err)
	}
	if err := store.Verify("ops", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v; want ErrInvalidCredentials", err)
	}
	if err := store.Verify("root", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong username: err = %v; want ErrInvalidCredentials", err)
	}
}

func TestVerify_HashWinsOverPassword(t *testing.T) {
	hash, err := HashPassword("realpw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store, err := NewEnvCredentialStore("ops", "otherpw", hash, "secret")
	if err != nil {
		t.Fatalf("NewEnvCredentialStore: %v", err)
	}

	if err := store.Verify("ops", "realpw"); err != nil {
		t.Errorf("hash-backed password rejected: %v", err)
	}
	if err := store.Verify("ops", "otherpw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("plaintext should be ignored when a hash is set: err = %v", err)
	}
}

func TestDashboardToken_RoundTrip(t *testing.T) {
	secret := []byte("token-secret")

	token, expiresAt, err := GenerateDashboardToken("ops", secret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateDashboardToken: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute || remaining > 61*time.Minute {
		t.Errorf("expiry = %v out; want about 1h", remaining)
	}

	username, err := ParseDashboardToken(token, secret)
	if err != nil {
		t.Fatalf("ParseDashboardToken: %v", err)
	}
	if username != "ops" {
		t.Errorf("subject = %q; want ops", username)
	}
}

func TestDashboardToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateDashboardToken("ops", []byte("right"), time.Hour)
	if err != nil {
		t.Fatalf("GenerateDashboardToken: %v", err)
	}
	if _, err := ParseDashboardToken(token, []byte("wrong")); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
}

func TestDashboardToken_Expired(t *testing.T) {
	token, _, err := GenerateDashboardToken("ops", []byte("secret"), -time.Hour)
	if err != nil {
		t.Fatalf("GenerateDashboardToken: %v", err)
	}
	if _, err := ParseDashboardToken(token, []byte("secret")); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestDashboardToken_ScopeMismatch(t *testing.T) {
	secret := []byte("secret")
	claims := jwt.MapClaims{
		"sub":   "ops",
		"scope": "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"iat":   time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseDashboardToken(token, secret); err == nil {
		t.Fatalf("token with a foreign scope accepted")
	}
}

func TestDashboardToken_MissingSubject(t *testing.T) {
	secret := []byte("secret")
	claims := jwt.MapClaims{
		"scope": "dashboard",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if _, err := ParseDashboardToken(token, secret); err == nil {
		t.Fatalf("token without a subject accepted")
	}
}
