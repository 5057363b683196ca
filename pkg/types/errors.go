package types

import "errors"

// Storage errors returned by both backends and the façade.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrConstraint    = errors.New("constraint violation")
	ErrUsernameTaken = errors.New("username already taken")
	ErrClosed        = errors.New("store is closed")
)

// Domain errors raised by callers before a write reaches the store.
var (
	ErrInsufficientPayment = errors.New("payment is less than the sale total")
	ErrInsufficientStock   = errors.New("adjustment would make stock negative")
	ErrInvalidQuantity     = errors.New("quantity must be positive")
)
