// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested card does not exist or is not owned
	// by the caller. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")

	// ErrOwnerNotFound indicates the referenced owner account is absent.
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrVersionConflict indicates optimistic concurrency failure (version mismatch on write).
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidOperation indicates a state-machine or business-rule violation.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInsufficientFunds indicates a debit would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCrypto indicates card number encryption or decryption failure.
	ErrCrypto = errors.New("crypto failure")

	// ErrIssuanceFailed indicates the unique card number generator exhausted its retries.
	ErrIssuanceFailed = errors.New("card issuance failed")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)

// InvalidOperationf builds a business-rule violation with a human-readable reason.
func InvalidOperationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidOperation)...)
}
