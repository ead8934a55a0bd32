package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

// IncidentTransformer implements Transformer using domain transform
// functions with optional geocoding enrichment.
type IncidentTransformer struct {
	resolver domain.AddressResolver
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewTransformer creates an IncidentTransformer. Pass a nil resolver to
// disable geocoding; records then pass through with GeoSource "skipped".
func NewTransformer(resolver domain.AddressResolver, metrics *observability.Metrics, logger *slog.Logger) *IncidentTransformer {
	return &IncidentTransformer{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
	}
}

func (t *IncidentTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	event, err := domain.ParseRawEvent(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}

	event = domain.EnrichIncident(event)
	event = domain.EnrichWithGeocoding(ctx, event, t.resolver, t.logger)
	recordResolution(t.metrics, event)

	return domain.SerializeIncidentEvent(event)
}

// recordResolution counts resolver outcomes. Rows that never reached the
// resolver carry no outcome and are not counted.
func recordResolution(m *observability.Metrics, event domain.IncidentEvent) {
	if m == nil || event.GeoOutcome == "" {
		return
	}
	m.Resolutions.WithLabelValues(event.GeoOutcome).Inc()
}
