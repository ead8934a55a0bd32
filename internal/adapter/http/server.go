package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

// maxAddressLen bounds the /resolve query parameter.
const maxAddressLen = 512

const (
	writeTimeout = 60 * time.Second
	// ResolveTimeout bounds one /resolve lookup, retries and fallback
	// included, so the answer is written before writeTimeout cuts it off.
	ResolveTimeout = 50 * time.Second
)

// Server exposes health, readiness, metrics, and on-demand address
// resolution over HTTP.
type Server struct {
	httpServer *http.Server
	resolver   domain.AddressResolver
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// /resolve routes. A nil resolver answers /resolve with 503.
func NewServer(addr string, ready sharedobs.ReadinessChecker, resolver domain.AddressResolver, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout,
			IdleTimeout:  60 * time.Second,
		},
		resolver: resolver,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /resolve", s.handleResolve)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type resolveResponse struct {
	Address         string  `json:"address"`
	Lat             string  `json:"lat,omitempty"`
	Lon             string  `json:"lon,omitempty"`
	Outcome         string  `json:"outcome"`
	Error           string  `json:"error,omitempty"`
	Normalized      string  `json:"normalized,omitempty"`
	Query           string  `json:"query,omitempty"`
	UsedFallback    bool    `json:"used_fallback,omitempty"`
	ResolvedAddress string  `json:"resolved_address,omitempty"`
	Score           float64 `json:"score,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if s.resolver == nil {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "geocoding is disabled"})
		return
	}
	address := r.URL.Query().Get("address")
	if len(address) > maxAddressLen {
		sharedobs.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "address is too long"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), ResolveTimeout)
	defer cancel()

	res, err := s.resolver.Resolve(ctx, address)
	body := resolveResponse{
		Address:         address,
		Lat:             res.Lat,
		Lon:             res.Lon,
		Outcome:         domain.Outcome(err),
		Normalized:      res.Normalized.String(),
		Query:           res.Query,
		UsedFallback:    res.UsedFallback,
		ResolvedAddress: res.ResolvedAddress,
	}
	if res.ResolvedAddress != "" {
		body.Score = res.Candidate.Score
	}
	if res.Match != nil {
		body.Reason = res.Match.Reason
	}
	if err != nil {
		body.Error = err.Error()
	}
	sharedobs.WriteJSON(w, statusFor(err), body)
}

// statusFor maps a resolve error onto an HTTP status. Provider failures
// surface as 502; an address the provider could not place is 422.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoCandidate), errors.Is(err, domain.ErrMatchRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrMissingCredential), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
