package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Resolution is the outcome of resolving one address. Lat and Lon are set
// only on success; a rejected match keeps the provider address and the
// decision for reporting but no coordinates.
type Resolution struct {
	Lat string
	Lon string

	Normalized NormalizedAddress
	// Query is the text whose lookup produced the candidates.
	Query        string
	UsedFallback bool

	ResolvedAddress string
	Candidate       ScoredCandidate
	Match           *MatchDecision
}

// Resolved reports whether the resolution carries coordinates.
func (r Resolution) Resolved() bool { return r.Lat != "" && r.Lon != "" }

// ResolverOptions select the engine variant.
type ResolverOptions struct {
	Weights ScoringWeights
	// ValidateMatch enables the strict variant: street corrections in the
	// normalizer and cross-validation of the resolved address.
	ValidateMatch bool
	// FuzzyStreetWords tolerates one-edit differences in long street words.
	FuzzyStreetWords bool
}

// DefaultResolverOptions returns the lenient variant with default weights.
func DefaultResolverOptions() ResolverOptions {
	return ResolverOptions{Weights: DefaultWeights()}
}

// credentialed is implemented by providers that know up front whether they
// hold an API key.
type credentialed interface {
	HasCredential() bool
}

// Resolver is the single entry point of the address engine. It holds only
// read-only configuration and is safe for concurrent use.
type Resolver struct {
	provider   Provider
	normalizer *Normalizer
	selector   Selector
	validator  *MatchValidator
	logger     *slog.Logger
}

// NewResolver wires a provider into the engine.
func NewResolver(provider Provider, opts ResolverOptions, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		provider:   provider,
		normalizer: NewNormalizer(opts.ValidateMatch),
		selector:   NewSelector(opts.Weights),
		logger:     logger,
	}
	if opts.ValidateMatch {
		r.validator = NewMatchValidator(opts.FuzzyStreetWords)
	}
	return r
}

// Resolve normalizes address, looks it up (falling back to the raw text),
// selects the best in-region candidate and, in the strict variant, validates
// it against the input. Every failure is returned as an error classifiable
// with Outcome; none of them is fatal to the caller.
func (r *Resolver) Resolve(ctx context.Context, address string) (Resolution, error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		return Resolution{}, ErrInvalidAddress
	}
	if c, ok := r.provider.(credentialed); ok && !c.HasCredential() {
		return Resolution{}, ErrMissingCredential
	}

	res := Resolution{Normalized: r.normalizer.Normalize(raw)}

	candidates, err := r.lookup(ctx, raw, &res)
	if err != nil {
		return res, err
	}

	best, ok := r.selector.Select(candidates, raw)
	if !ok {
		return res, fmt.Errorf("%w: %d candidates for %q", ErrNoCandidate, len(candidates), res.Query)
	}
	res.Candidate = best
	res.ResolvedAddress = best.FullAddress()
	r.logger.Debug("geocode candidate selected",
		"query", res.Query,
		"name", best.Name,
		"description", best.Description,
		"score", best.Score,
		"rank", best.Rank,
	)

	if r.validator != nil {
		decision := r.validator.Accept(raw, res.ResolvedAddress)
		res.Match = &decision
		if !decision.Accepted {
			return res, fmt.Errorf("%w: %s", ErrMatchRejected, decision.Reason)
		}
	}

	res.Lat = FormatCoord(best.Lat)
	res.Lon = FormatCoord(best.Lon)
	return res, nil
}

// lookup queries the normalized text first and the raw text second. The
// fallback is skipped when it would repeat the same request or cannot help.
func (r *Resolver) lookup(ctx context.Context, raw string, res *Resolution) ([]GeoCandidate, error) {
	res.Query = res.Normalized.String()
	candidates, err := r.provider.Lookup(ctx, res.Query)
	if err == nil && len(candidates) > 0 {
		return candidates, nil
	}
	if raw == res.Query || !canFallback(err) {
		return candidates, err
	}

	r.logger.Debug("geocode retrying with raw address", "normalized", res.Query, "error", err)
	res.Query = raw
	res.UsedFallback = true
	return r.provider.Lookup(ctx, raw)
}

func canFallback(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrMissingCredential):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
