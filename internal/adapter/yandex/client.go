package yandex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/incident-geocode-etl/internal/config"
	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

const defaultUserAgent = "incident-geocode-etl/1.0"

// Config holds the client settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int // total attempts per lookup, at least 1
	Results    int
	Lang       string
	Kind       string
	Bounds     domain.RegionBounds

	// RateLimitBackoff is the first wait after a 429; it doubles up to
	// MaxBackoff. A MaxBackoff below RateLimitBackoff is raised to it.
	RateLimitBackoff time.Duration
	MaxBackoff       time.Duration
	// RetryDelay is the fixed wait after a transport failure or timeout.
	RetryDelay time.Duration
	// RequestsPerSecond paces every attempt; 0 disables pacing.
	RequestsPerSecond float64
	UserAgent         string
}

// ConfigFrom maps service configuration to client settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		APIKey:            cfg.GeocoderAPIKey,
		BaseURL:           cfg.GeocoderURL,
		Timeout:           cfg.GeocoderTimeout,
		MaxRetries:        cfg.GeocoderMaxRetries,
		Results:           cfg.GeocoderResults,
		Lang:              cfg.GeocoderLang,
		Kind:              cfg.GeocoderKind,
		Bounds:            domain.MoscowRegion,
		RateLimitBackoff:  cfg.GeocoderRateLimitBackoff,
		MaxBackoff:        cfg.GeocoderMaxBackoff,
		RetryDelay:        cfg.GeocoderRetryDelay,
		RequestsPerSecond: cfg.GeocoderRPS,
	}
}

// Client implements domain.Provider using the Yandex HTTP Geocoder. One
// Client is shared by all workers so its limiter caps the combined rate.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Yandex geocoding client.
func NewClient(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = config.DefaultGeocoderURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	cfg.MaxBackoff = max(cfg.MaxBackoff, cfg.RateLimitBackoff)
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    newLimiter(cfg.RequestsPerSecond),
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return strings.TrimSpace(c.cfg.APIKey) != ""
}

// Lookup queries the geocoder for address, retrying rate-limit responses with
// exponential backoff and transport failures with a fixed delay. Other
// failures are returned at once.
func (c *Client) Lookup(ctx context.Context, address string) ([]domain.GeoCandidate, error) {
	if !c.HasCredential() {
		return nil, domain.ErrMissingCredential
	}

	attempts := max(c.cfg.MaxRetries, 1)
	backoff := c.cfg.RateLimitBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		candidates, err := c.do(ctx, address)
		if err == nil {
			return candidates, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var delay time.Duration
		var reason string
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			delay, reason = backoff, "rate_limited"
			backoff = retry.NextBackoff(backoff, c.cfg.MaxBackoff)
		case errors.Is(err, domain.ErrTransient):
			delay, reason = c.cfg.RetryDelay, "transport"
		default:
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		c.metrics.GeocodeRetries.WithLabelValues(reason).Inc()
		c.logger.Warn("geocode request retrying",
			"attempt", attempt,
			"max_attempts", attempts,
			"reason", reason,
			"delay", delay,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w (after %d attempts)", lastErr, attempts)
}

// wait blocks on the shared limiter. A wait that would outlive the context
// deadline counts as the deadline passing.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("rate limiter: %w: %v", context.DeadlineExceeded, err)
	}
	return nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func (c *Client) requestURL(address string) string {
	params := url.Values{
		"apikey":  {c.cfg.APIKey},
		"geocode": {address},
		"format":  {"json"},
		"results": {strconv.Itoa(c.cfg.Results)},
		"lang":    {c.cfg.Lang},
		"bbox":    {c.cfg.Bounds.BBox()},
	}
	if c.cfg.Kind != "" {
		params.Set("kind", c.cfg.Kind)
	}
	return c.cfg.BaseURL + "?" + params.Encode()
}

// do performs a single attempt.
func (c *Client) do(ctx context.Context, address string) ([]domain.GeoCandidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(address), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", domain.ErrProvider, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(c.clock.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.metrics.GeocodeRequests.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.metrics.GeocodeRequests.WithLabelValues("unauthorized").Inc()
		c.logger.Error("geocoder rejected api key", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", domain.ErrUnauthorized, resp.StatusCode)
	case http.StatusTooManyRequests:
		c.metrics.GeocodeRequests.WithLabelValues("rate_limited").Inc()
		return nil, fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.metrics.GeocodeRequests.WithLabelValues("http_error").Inc()
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrProvider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var yr response
	if err := json.NewDecoder(resp.Body).Decode(&yr); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.metrics.GeocodeRequests.WithLabelValues("decode_error").Inc()
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrProvider, err)
	}

	candidates := yr.candidates(c.logger)
	if len(candidates) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
	} else {
		c.metrics.GeocodeRequests.WithLabelValues("ok").Inc()
	}
	return candidates, nil
}

// Yandex Geocoder response types.

type response struct {
	Response responseBody `json:"response"`
}

type responseBody struct {
	Collection collection `json:"GeoObjectCollection"`
}

type collection struct {
	FeatureMember []featureMember `json:"featureMember"`
}

type featureMember struct {
	GeoObject geoObject `json:"GeoObject"`
}

type geoObject struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Point       point            `json:"Point"`
	MetaData    metaDataProperty `json:"metaDataProperty"`
}

type point struct {
	Pos string `json:"pos"` // "<lon> <lat>"
}

type metaDataProperty struct {
	GeocoderMetaData geocoderMetaData `json:"GeocoderMetaData"`
}

type geocoderMetaData struct {
	Text      string `json:"text"`
	Kind      string `json:"kind"`
	Precision string `json:"precision"`
}

// candidates converts feature members in response order. Members without a
// readable position are skipped but keep their rank slot.
func (r response) candidates(logger *slog.Logger) []domain.GeoCandidate {
	members := r.Response.Collection.FeatureMember
	out := make([]domain.GeoCandidate, 0, len(members))
	for rank, m := range members {
		obj := m.GeoObject
		lat, lon, ok := parsePos(obj.Point.Pos)
		if !ok {
			logger.Debug("geocode candidate without position", "rank", rank, "pos", obj.Point.Pos)
			continue
		}
		out = append(out, domain.GeoCandidate{
			Lat:         lat,
			Lon:         lon,
			Name:        obj.Name,
			Description: obj.Description,
			Address:     obj.MetaData.GeocoderMetaData.Text,
			Kind:        obj.MetaData.GeocoderMetaData.Kind,
			Precision:   obj.MetaData.GeocoderMetaData.Precision,
			Rank:        rank,
		})
	}
	return out
}

// parsePos reads the "<lon> <lat>" pair Yandex uses.
func parsePos(pos string) (lat, lon float64, ok bool) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return 0, 0, false
	}
	lon, errLon := strconv.ParseFloat(fields[0], 64)
	lat, errLat := strconv.ParseFloat(fields[1], 64)
	if errLon != nil || errLat != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
