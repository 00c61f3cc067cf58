// Package limiter throttles repeated login failures per account and source address.
package limiter

import (
	"context"
	"time"
)

// Limiter tracks login attempts and temporary lockouts keyed by
// username plus a hash of the caller's IP.
type Limiter interface {
	// Allow reports whether a login attempt may proceed. When blocked,
	// the duration says how long until the lock lifts.
	Allow(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
	// Success clears the failure counter after a correct login.
	Success(ctx context.Context, username string, ipHash []byte) error
	// Failure counts a bad attempt and reports whether it tripped a lockout.
	Failure(ctx context.Context, username string, ipHash []byte) (bool, time.Duration, error)
}
