// Package services implements the business logic of the eligibility gating
// engine. This file defines the explicit retry policy applied to external
// platform calls. The policy is a value handed to the components that need
// it, not an implicit wrapper around arbitrary calls.
package services

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of a fallible operation with exponential
// backoff. The zero value is not useful; construct with DefaultRetryPolicy
// or set the fields explicitly.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the external-API retry posture: up to 3
// attempts with exponential backoff between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
	}
}

// Do runs op until it succeeds, the attempt budget is spent, or ctx is
// canceled. The last error is returned on exhaustion.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		bo.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		bo.MaxInterval = p.MaxInterval
	}
	return backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}
