package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel errors surfaced by services; handlers map these to status codes
// and machine-readable error codes.
var (
	// ErrInvalidCredentials covers unknown username and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailUnverified rejects logins for accounts that never confirmed
	// their address, regardless of password correctness.
	ErrEmailUnverified = errors.New("email not verified")

	// ErrInvalidToken covers malformed and mis-typed tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired marks a structurally valid token past its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrForbidden rejects operations on rows the caller does not own.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError carries field-scoped messages so clients can surface them
// inline per form field. Conflict marks duplicate-identity failures.
type ValidationError struct {
	Fields   map[string]string
	Conflict bool
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func conflictError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}, Conflict: true}
}
