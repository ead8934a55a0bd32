package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/incident-geocode-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/incident-geocode-etl/internal/adapter/kafka"
	"github.com/couchcryptid/incident-geocode-etl/internal/adapter/yandex"
	"github.com/couchcryptid/incident-geocode-etl/internal/config"
	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
	"github.com/couchcryptid/incident-geocode-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Geocoding is feature-flagged via GEOCODER_ENABLED / GEOCODER_API_KEY.
	resolver, err := yandex.NewResolver(cfg, metrics, logger)
	if err != nil {
		logger.Error("failed to build geocoder", "error", err)
		os.Exit(1)
	}
	// Keep a nil *Resolver out of the interface so consumers see "disabled".
	var addressResolver domain.AddressResolver
	if resolver != nil {
		addressResolver = resolver
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(addressResolver, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, pipeline.Options{
		BatchSize: cfg.BatchSize,
		Workers:   cfg.GeocoderWorkers,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, addressResolver, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
