// Package auth holds the terminal's session state and gates protected
// operations by permission.
package auth

import (
	"errors"
	"fmt"
	"unicode"
)

// Policy violations. Each error returned by ValidateUsername or
// ValidatePassword wraps one of these.
var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrWeakPassword    = errors.New("weak password")
)

// Username and password policy bounds.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 20
	MinPasswordLen = 8
)

// ValidateUsername accepts 3 to 20 characters: a leading ASCII letter
// followed by letters, digits or underscores.
func ValidateUsername(username string) error {
	if n := len(username); n < MinUsernameLen || n > MaxUsernameLen {
		return fmt.Errorf("%w: must be %d to %d characters", ErrInvalidUsername, MinUsernameLen, MaxUsernameLen)
	}
	for i, r := range username {
		letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if i == 0 && !letter {
			return fmt.Errorf("%w: must start with a letter", ErrInvalidUsername)
		}
		if !letter && r != '_' && (r < '0' || r > '9') {
			return fmt.Errorf("%w: only letters, digits and underscores are allowed", ErrInvalidUsername)
		}
	}
	return nil
}

// ValidatePassword requires at least 8 characters with an upper-case
// letter, a lower-case letter and a digit.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLen {
		return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassword, MinPasswordLen)
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !upper:
		return fmt.Errorf("%w: needs an upper-case letter", ErrWeakPassword)
	case !lower:
		return fmt.Errorf("%w: needs a lower-case letter", ErrWeakPassword)
	case !digit:
		return fmt.Errorf("%w: needs a digit", ErrWeakPassword)
	}
	return nil
}
