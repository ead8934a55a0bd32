package yandex

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/incident-geocode-etl/internal/config"
	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

func resolverConfig(url string) *config.Config {
	return &config.Config{
		GeocoderAPIKey:     testAPIKey,
		GeocoderEnabled:    true,
		GeocoderURL:        url,
		GeocoderMaxRetries: 1,
		GeocoderResults:    5,
		GeocoderLang:       "ru_RU",
		GeocoderCacheSize:  10,
		ScoringWeights:     domain.DefaultWeights(),
	}
}

func TestNewResolver_Disabled(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	cfg := resolverConfig("http://unused")
	cfg.GeocoderEnabled = false

	r, err := NewResolver(cfg, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Nil(t, r)
	assert.Zero(t, testutil.ToFloat64(metrics.GeocodeEnabled))
}

func TestNewResolver_EndToEnd(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeResponse(t, w, member("улица Арбат, 10", "Москва, Россия", "37.5912 55.7494", "Россия, Москва, улица Арбат, 10"))
	}))
	defer srv.Close()

	metrics := observability.NewMetricsForTesting()
	r, err := NewResolver(resolverConfig(srv.URL), metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.GeocodeEnabled), 1e-9)

	for range 2 {
		res, err := r.Resolve(context.Background(), "мск, арбат 10")
		require.NoError(t, err)
		assert.Equal(t, "55.749400", res.Lat)
		assert.Equal(t, "37.591200", res.Lon)
	}
	assert.Equal(t, 1, calls, "second resolve is served from the cache")
}

func TestNewResolver_InvalidCacheSize(t *testing.T) {
	cfg := resolverConfig("http://unused")
	cfg.GeocoderCacheSize = 0

	_, err := NewResolver(cfg, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
