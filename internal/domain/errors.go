package domain

import (
	"context"
	"errors"
)

// Input errors: returned before any network call.
var (
	ErrInvalidAddress    = errors.New("address is empty")
	ErrMissingCredential = errors.New("geocoder api key is not set")
)

// Provider errors: returned by a Provider after its own retry policy is exhausted.
var (
	ErrUnauthorized = errors.New("geocoder rejected the api key")
	ErrRateLimited  = errors.New("geocoder rate limit exceeded")
	ErrTransient    = errors.New("geocoder unreachable")
	ErrProvider     = errors.New("geocoder request failed")
)

// Selection errors: the provider answered but nothing usable came back.
var (
	ErrNoCandidate   = errors.New("no candidate inside region bounds")
	ErrMatchRejected = errors.New("resolved address does not match input")
)

// Outcome labels used in logs, metrics, and incident records.
const (
	OutcomeResolved     = "resolved"
	OutcomeRejected     = "rejected"
	OutcomeNoCandidate  = "no_candidate"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRateLimited  = "rate_limited"
	OutcomeTransient    = "transient"
	OutcomeInvalidInput = "invalid_input"
	OutcomeCanceled     = "canceled"
	OutcomeFailed       = "failed"
)

// Outcome classifies a Resolve error into a stable label. A nil error is
// OutcomeResolved.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeResolved
	case errors.Is(err, ErrMatchRejected):
		return OutcomeRejected
	case errors.Is(err, ErrNoCandidate):
		return OutcomeNoCandidate
	case errors.Is(err, ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, ErrTransient):
		return OutcomeTransient
	case errors.Is(err, ErrInvalidAddress), errors.Is(err, ErrMissingCredential):
		return OutcomeInvalidInput
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeFailed
	}
}
