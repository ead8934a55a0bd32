package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

// DefaultGeocoderURL is the Yandex HTTP Geocoder endpoint.
const DefaultGeocoderURL = "https://geocode-maps.yandex.ru/1.x/"

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Geocoder configuration.
	GeocoderAPIKey           string
	GeocoderEnabled          bool
	GeocoderURL              string
	GeocoderTimeout          time.Duration
	GeocoderMaxRetries       int
	GeocoderResults          int
	GeocoderLang             string
	GeocoderKind             string
	GeocoderRPS              float64
	GeocoderRateLimitBackoff time.Duration
	GeocoderMaxBackoff       time.Duration
	GeocoderRetryDelay       time.Duration
	GeocoderCacheSize        int
	GeocoderStrict           bool
	GeocoderFuzzyStreets     bool
	GeocoderWorkers          int

	ScoringWeights domain.ScoringWeights
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-incident-records"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "geocoded-incidents"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "incident-geocode-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		GeocoderAPIKey: strings.TrimSpace(os.Getenv("GEOCODER_API_KEY")),
		GeocoderURL:    sharedcfg.EnvOrDefault("GEOCODER_URL", DefaultGeocoderURL),
		GeocoderLang:   sharedcfg.EnvOrDefault("GEOCODER_LANG", "ru_RU"),
		GeocoderKind:   os.Getenv("GEOCODER_KIND"),
	}

	p := &parser{}
	cfg.GeocoderEnabled = p.boolean("GEOCODER_ENABLED", cfg.GeocoderAPIKey != "")
	cfg.GeocoderTimeout = p.duration("GEOCODER_TIMEOUT", 10*time.Second)
	cfg.GeocoderMaxRetries = p.positiveInt("GEOCODER_MAX_RETRIES", 3)
	cfg.GeocoderResults = p.positiveInt("GEOCODER_RESULTS", 5)
	cfg.GeocoderRPS = p.nonNegativeFloat("GEOCODER_RPS", 10)
	cfg.GeocoderRateLimitBackoff = p.duration("GEOCODER_RATE_LIMIT_BACKOFF", 2*time.Second)
	cfg.GeocoderMaxBackoff = p.duration("GEOCODER_MAX_BACKOFF", 30*time.Second)
	cfg.GeocoderRetryDelay = p.duration("GEOCODER_RETRY_DELAY", time.Second)
	cfg.GeocoderCacheSize = p.positiveInt("GEOCODER_CACHE_SIZE", 1000)
	cfg.GeocoderStrict = p.boolean("GEOCODER_STRICT", false)
	cfg.GeocoderFuzzyStreets = p.boolean("GEOCODER_FUZZY_STREETS", false)
	cfg.GeocoderWorkers = p.positiveInt("GEOCODER_WORKERS", 4)

	// The candidate cut-off stays fixed; GEOCODER_RESULTS only changes how many
	// candidates are fetched.
	defaults := domain.DefaultWeights()
	cfg.ScoringWeights = domain.ScoringWeights{
		CityMatch:       p.nonNegativeFloat("SCORE_CITY", defaults.CityMatch),
		RegionMatch:     p.nonNegativeFloat("SCORE_REGION", defaults.RegionMatch),
		HouseMatch:      p.nonNegativeFloat("SCORE_HOUSE", defaults.HouseMatch),
		DistancePenalty: p.nonNegativeFloat("SCORE_DISTANCE", defaults.DistancePenalty),
		RankBonus:       p.nonNegativeFloat("SCORE_RANK", defaults.RankBonus),
		MaxCandidates:   defaults.MaxCandidates,
	}

	if p.err != nil {
		return nil, p.err
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderAPIKey == "" {
		return nil, errors.New("GEOCODER_ENABLED is true but GEOCODER_API_KEY is not set")
	}

	return cfg, nil
}

// parser reads typed variables and keeps the first failure, so Load checks
// once at the end.
type parser struct {
	err error
}

func (p *parser) fail(key, value, want string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: must be %s", key, value, want)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		p.fail(key, s, "a positive duration")
		return def
	}
	return d
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(key, s, "a positive integer")
		return def
	}
	return n
}

func (p *parser) nonNegativeFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		p.fail(key, s, "a non-negative number")
		return def
	}
	return f
}

func (p *parser) boolean(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, "true or false")
		return def
	}
	return b
}
