// Package password hashes and verifies operator passwords with bcrypt. It is
// the single hashing standard for every backend and seed path.
package password

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmpty is returned when hashing an empty password.
var ErrEmpty = errors.New("password must not be empty")

// cost is the bcrypt work factor. Tests lower it through SetCost.
var cost = bcrypt.DefaultCost

// SetCost changes the work factor and returns the previous value. Values
// outside bcrypt's range are clamped.
func SetCost(c int) int {
	prev := cost
	switch {
	case c < bcrypt.MinCost:
		c = bcrypt.MinCost
	case c > bcrypt.MaxCost:
		c = bcrypt.MaxCost
	}
	cost = c
	return prev
}

// Hash returns the bcrypt hash of plain.
func Hash(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmpty
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether plain matches hash. A malformed hash never matches.
func Verify(hash, plain string) bool {
	if !IsHash(hash) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

var (
	dummyMu   sync.Mutex
	dummy     []byte
	dummyCost int
)

// dummyHash returns a hash of a fixed password at the current cost.
func dummyHash() []byte {
	dummyMu.Lock()
	defer dummyMu.Unlock()
	if dummy == nil || dummyCost != cost {
		h, err := bcrypt.GenerateFromPassword([]byte("no stored password"), cost)
		if err != nil {
			return nil
		}
		dummy, dummyCost = h, cost
	}
	return dummy
}

// VerifyNone spends the same work as Verify without a stored hash, so a
// missing account costs as much as a wrong password. It never matches.
func VerifyNone(plain string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(plain))
}

// IsHash reports whether value looks like a bcrypt hash.
func IsHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
