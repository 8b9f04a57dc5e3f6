package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrProductNotFound   = errors.New("product not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrSupplierNotFound  = errors.New("supplier not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionRevoked    = errors.New("session has been revoked")
	ErrAlreadyExists     = errors.New("resource already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLockTimeout       = errors.New("timed out waiting for product lock")
)

// Invalid wraps ErrValidation with a description of the offending input.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
