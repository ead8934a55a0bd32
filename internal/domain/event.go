package domain

import (
	"context"
	"time"
)

// RawIncidentRecord is the flat JSON shape the collector publishes for each
// journal row. Coordinates arrive as text because journals mix "55.75" and
// "55,75"; most rows carry none.
type RawIncidentRecord struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	OccurredAt  string `json:"occurred_at"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Row         int    `json:"row"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// Geo is a WGS-84 coordinate pair rendered with six decimals, e.g. "55.755800".
type Geo struct {
	Lat string `json:"lat,omitempty"`
	Lon string `json:"lon,omitempty"`
}

// IsZero reports whether the pair is missing either coordinate.
func (g Geo) IsZero() bool { return g.Lat == "" || g.Lon == "" }

// Geo sources recorded on an incident.
const (
	GeoSourceResolved = "resolved" // coordinates from the geocoder
	GeoSourceRejected = "rejected" // geocoder answered, match validation refused it
	GeoSourceFailed   = "failed"
	GeoSourceOriginal = "original" // the record already had coordinates
	GeoSourceSkipped  = "skipped"  // no address, or geocoding disabled
)

// IncidentEvent is the parsed incident after enrichment.
type IncidentEvent struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind,omitempty"`
	Description string    `json:"description,omitempty"`
	Address     string    `json:"address"`
	OccurredAt  time.Time `json:"occurred_at"`
	Row         int       `json:"row,omitempty"`
	Geo         Geo       `json:"geo"`

	// Geocoding enrichment fields.
	NormalizedAddress string  `json:"normalized_address,omitempty"`
	GeoQuery          string  `json:"geo_query,omitempty"`
	ResolvedAddress   string  `json:"resolved_address,omitempty"`
	GeoScore          float64 `json:"geo_score,omitempty"`
	GeoSource         string  `json:"geo_source,omitempty"`
	GeoOutcome        string  `json:"geo_outcome,omitempty"`
	GeoReason         string  `json:"geo_reason,omitempty"`
	HouseInput        string  `json:"house_input,omitempty"`
	HouseResolved     string  `json:"house_resolved,omitempty"`
	StreetInput       string  `json:"street_input,omitempty"`
	StreetResolved    string  `json:"street_resolved,omitempty"`

	RawPayload  []byte    `json:"-"`
	ProcessedAt time.Time `json:"processed_at"`
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}
