package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// moscowTime is the journals' wall clock. Moscow has kept UTC+3 without DST since 2014.
var moscowTime = time.FixedZone("MSK", 3*60*60)

// occurredAtLayouts are tried in order; layouts without a zone are read as Moscow time.
var occurredAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

// ParseRawEvent deserializes a RawEvent's value into an IncidentEvent.
func ParseRawEvent(raw RawEvent) (IncidentEvent, error) {
	var rec RawIncidentRecord
	if err := json.Unmarshal(raw.Value, &rec); err != nil {
		return IncidentEvent{}, fmt.Errorf("parse raw event: %w", err)
	}
	event := NewIncident(rec, raw.Timestamp)
	event.RawPayload = raw.Value
	return event, nil
}

// NewIncident builds an event from a flat record. fallback stands in for a
// missing or unreadable occurred_at.
func NewIncident(rec RawIncidentRecord, fallback time.Time) IncidentEvent {
	address := collapseSpaces(rec.Address)

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = generateID(rec.Kind, address, strings.TrimSpace(rec.OccurredAt), rec.Row)
	}

	return IncidentEvent{
		ID:          id,
		Kind:        normalizeKind(rec.Kind),
		Description: strings.TrimSpace(rec.Description),
		Address:     address,
		OccurredAt:  parseOccurredAt(rec.OccurredAt, fallback),
		Row:         rec.Row,
		Geo:         parseGeo(rec.Lat, rec.Lon),
	}
}

// SerializeIncidentEvent encodes an event for the sink topic, keyed by ID.
func SerializeIncidentEvent(event IncidentEvent) (OutputEvent, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize incident event: %w", err)
	}
	headers := map[string]string{
		"kind":       event.Kind,
		"geo_source": event.GeoSource,
	}
	if !event.ProcessedAt.IsZero() {
		headers["processed_at"] = event.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return OutputEvent{
		Key:     []byte(event.ID),
		Value:   value,
		Headers: headers,
	}, nil
}

// parseGeo accepts either decimal separator. A pair that does not parse, or
// lies at 0,0, is treated as missing.
func parseGeo(lat, lon string) Geo {
	la, okLat := parseCoord(lat)
	lo, okLon := parseCoord(lon)
	if !okLat || !okLon || (la == 0 && lo == 0) {
		return Geo{}
	}
	return Geo{Lat: FormatCoord(la), Lon: FormatCoord(lo)}
}

func parseCoord(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseOccurredAt falls back to the message timestamp when the record's own
// time is missing or unreadable.
func parseOccurredAt(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range occurredAtLayouts {
		if t, err := time.ParseInLocation(layout, value, moscowTime); err == nil {
			return t.UTC()
		}
	}
	if fallback.IsZero() {
		return time.Time{}
	}
	return fallback.UTC()
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// generateID produces a deterministic ID from the record's key fields so a
// replayed message maps to the same incident.
func generateID(kind, address, occurredAt string, row int) string {
	input := fmt.Sprintf("%s|%s|%s|%d", normalizeKind(kind), fold(address), occurredAt, row)
	hash := sha256.Sum256([]byte(input))
	short := hex.EncodeToString(hash[:8])
	if kind := normalizeKind(kind); kind != "" {
		return kind + "-" + short
	}
	return short
}

// EnrichIncident stamps the processing time. Geocoding is a separate step
// because it needs a resolver and a context.
func EnrichIncident(event IncidentEvent) IncidentEvent {
	event.ProcessedAt = clock.Now()
	return event
}
