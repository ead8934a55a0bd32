package yandex

import (
	"log/slog"

	"github.com/couchcryptid/incident-geocode-etl/internal/config"
	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

// NewResolver wires the client, its LRU cache, and the address engine from
// configuration. It returns a nil resolver when geocoding is disabled.
func NewResolver(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) (*domain.Resolver, error) {
	if !cfg.GeocoderEnabled {
		metrics.GeocodeEnabled.Set(0)
		logger.Info("geocoding disabled")
		return nil, nil //nolint:nilnil // disabled is not an error
	}

	client := NewClient(ConfigFrom(cfg), metrics, logger)
	cached, err := NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)
	if err != nil {
		return nil, err
	}
	resolver := domain.NewResolver(cached, domain.ResolverOptions{
		Weights:          cfg.ScoringWeights,
		ValidateMatch:    cfg.GeocoderStrict,
		FuzzyStreetWords: cfg.GeocoderFuzzyStreets,
	}, logger)

	metrics.GeocodeEnabled.Set(1)
	logger.Info("geocoding enabled",
		"url", cfg.GeocoderURL,
		"strict", cfg.GeocoderStrict,
		"cache_size", cfg.GeocoderCacheSize,
		"rps", cfg.GeocoderRPS,
		"workers", cfg.GeocoderWorkers,
	)
	return resolver, nil
}
