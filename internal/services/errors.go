// Package services implements the business logic of the eligibility gating
// engine: status resolution, the referral lifecycle, broadcast batching, live
// requests, and the prediction placeholder. This file centralizes
// service-level error values so they can be consistently returned by service
// methods and checked by callers.
package services

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned when a non-admin invokes an admin-only
	// action. Rejected locally; never propagated as a crash.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDuplicateLiveRequest is returned when a user who already has an
	// outstanding live request files another one.
	ErrDuplicateLiveRequest = errors.New("live request already pending")
)

// CooldownError reports that a user requested a prediction before their
// cooldown elapsed. Remaining is the time left until the next request is
// allowed.
type CooldownError struct {
	Remaining time.Duration
}

// Error implements the error interface.
func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active: %s remaining", e.Remaining.Round(time.Second))
}
