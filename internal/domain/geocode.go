package domain

import (
	"context"
	"errors"
	"log/slog"
)

// EnrichWithGeocoding resolves the event's address and records the outcome.
// It never fails: a row that cannot be resolved keeps its fields and carries
// GeoSource and GeoOutcome explaining why (graceful degradation).
func EnrichWithGeocoding(ctx context.Context, event IncidentEvent, resolver AddressResolver, logger *slog.Logger) IncidentEvent {
	if !event.Geo.IsZero() {
		event.GeoSource = GeoSourceOriginal
		return event
	}
	if resolver == nil || event.Address == "" {
		event.GeoSource = GeoSourceSkipped
		return event
	}

	res, err := resolver.Resolve(ctx, event.Address)
	event = applyResolution(event, res)
	event.GeoOutcome = Outcome(err)

	switch {
	case err == nil:
		event.Geo = Geo{Lat: res.Lat, Lon: res.Lon}
		event.GeoSource = GeoSourceResolved
	case errors.Is(err, ErrMatchRejected):
		logger.Warn("geocode rejected",
			"event_id", event.ID,
			"address", event.Address,
			"resolved", res.ResolvedAddress,
			"reason", event.GeoReason,
		)
		event.GeoSource = GeoSourceRejected
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrMissingCredential):
		logger.Error("geocode not authorized", "event_id", event.ID, "error", err)
		event.GeoSource = GeoSourceFailed
	default:
		logger.Warn("geocode failed",
			"event_id", event.ID,
			"address", event.Address,
			"outcome", event.GeoOutcome,
			"error", err,
		)
		event.GeoSource = GeoSourceFailed
	}
	return event
}

func applyResolution(event IncidentEvent, res Resolution) IncidentEvent {
	event.NormalizedAddress = res.Normalized.String()
	event.GeoQuery = res.Query
	event.ResolvedAddress = res.ResolvedAddress
	if res.ResolvedAddress != "" {
		event.GeoScore = res.Candidate.Score
	}
	if m := res.Match; m != nil {
		event.GeoReason = m.Reason
		event.HouseInput = m.HouseInput
		event.HouseResolved = m.HouseResolved
		event.StreetInput = m.StreetInput
		event.StreetResolved = m.StreetResolved
	}
	return event
}
