package yandex

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

// CachedGeocoder wraps a Provider with an in-memory LRU cache keyed by query text.
type CachedGeocoder struct {
	inner   domain.Provider
	cache   *lru.Cache[string, []domain.GeoCandidate]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a provider.
func NewCachedGeocoder(inner domain.Provider, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New[string, []domain.GeoCandidate](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedGeocoder) Lookup(ctx context.Context, address string) ([]domain.GeoCandidate, error) {
	if candidates, ok := c.cache.Get(address); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return slices.Clone(candidates), nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	candidates, err := c.inner.Lookup(ctx, address)
	if err != nil {
		return candidates, err
	}
	// Only cache non-empty results so "not found" can be retried later.
	if len(candidates) > 0 {
		c.cache.Add(address, slices.Clone(candidates))
	}
	return candidates, nil
}

// HasCredential forwards to the wrapped provider when it knows.
func (c *CachedGeocoder) HasCredential() bool {
	if cp, ok := c.inner.(interface{ HasCredential() bool }); ok {
		return cp.HasCredential()
	}
	return true
}

// Len returns the number of cached queries.
func (c *CachedGeocoder) Len() int { return c.cache.Len() }
