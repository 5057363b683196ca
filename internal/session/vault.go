package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/caja/pkg/types"
)

// Secret store keys.
const (
	tokenKey      = "session-token"
	signingKeyKey = "signing-key"
)

// DefaultMaxAge bounds how long a saved session can be resumed.
const DefaultMaxAge = 30 * 24 * time.Hour

// ErrNoSession is returned by Load when nothing usable is saved.
var ErrNoSession = errors.New("no saved session")

// Claims is the payload of a saved session. Fingerprint is derived from the
// password hash current at login, so a password change elsewhere makes the
// token stale.
type Claims struct {
	UserID      int64  `json:"uid"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// Username returns the subject.
func (c *Claims) Username() string { return c.Subject }

// Vault saves and restores the session token.
type Vault struct {
	store  SecretStore
	maxAge time.Duration
	now    func() time.Time
}

// NewVault returns a vault on store. A non-positive maxAge uses
// DefaultMaxAge.
func NewVault(store SecretStore, maxAge time.Duration) *Vault {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Vault{store: store, maxAge: maxAge, now: time.Now}
}

// Fingerprint returns the SHA-256 of a stored password hash.
func Fingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])
}

// Save signs and stores a token for u.
func (v *Vault) Save(_ context.Context, u types.User) error {
	key, err := v.signingKey(true)
	if err != nil {
		return err
	}
	now := v.now()
	claims := Claims{
		UserID:      u.ID,
		Fingerprint: Fingerprint(u.PasswordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.maxAge)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return fmt.Errorf("signing session: %w", err)
	}
	if err := v.store.Set(tokenKey, token); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load returns the saved claims. It returns ErrNoSession when nothing is
// saved and an error wrapping ErrNoSession for a token that is tampered,
// expired or signed with another key.
func (v *Vault) Load(_ context.Context) (*Claims, error) {
	token, err := v.store.Get(tokenKey)
	if errors.Is(err, ErrSecretNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	key, err := v.signingKey(false)
	if errors.Is(err, ErrSecretNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" || claims.UserID == 0 || claims.Fingerprint == "" {
		return nil, fmt.Errorf("%w: incomplete claims", ErrNoSession)
	}
	return claims, nil
}

// Clear removes the saved token. The signing key stays.
func (v *Vault) Clear(_ context.Context) error {
	if err := v.store.Delete(tokenKey); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// signingKey returns the HMAC key, generating and storing one when create is
// set and none exists.
func (v *Vault) signingKey(create bool) ([]byte, error) {
	enc, err := v.store.Get(signingKeyKey)
	if err == nil {
		return base64.StdEncoding.DecodeString(enc)
	}
	if !errors.Is(err, ErrSecretNotFound) || !create {
		return nil, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	if err := v.store.Set(signingKeyKey, base64.StdEncoding.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("saving signing key: %w", err)
	}
	return key, nil
}

