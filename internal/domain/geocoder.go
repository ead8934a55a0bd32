package domain

import "context"

// Provider looks an address up in an external geocoding service. It applies
// its own retry policy and returns the candidates in provider rank order.
// Errors wrap one of ErrMissingCredential, ErrUnauthorized, ErrRateLimited,
// ErrTransient, ErrProvider, or a context error.
type Provider interface {
	Lookup(ctx context.Context, address string) ([]GeoCandidate, error)
}

// AddressResolver turns a raw address into validated coordinates.
type AddressResolver interface {
	Resolve(ctx context.Context, address string) (Resolution, error)
}
