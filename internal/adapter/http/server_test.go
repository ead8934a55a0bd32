package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/incident-geocode-etl/internal/adapter/http"
	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockResolver struct {
	res      domain.Resolution
	err      error
	address  string
	deadline time.Time
}

func (m *mockResolver) Resolve(ctx context.Context, address string) (domain.Resolution, error) {
	m.address = address
	m.deadline, _ = ctx.Deadline()
	return m.res, m.err
}

func newTestServer(readyErr error, resolver domain.AddressResolver) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, resolver, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("not ready yet"), nil), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestResolve_Success(t *testing.T) {
	resolver := &mockResolver{res: domain.Resolution{
		Lat:             "55.752000",
		Lon:             "37.590000",
		Normalized:      "Москва, улица Арбат 10",
		Query:           "Москва, улица Арбат 10",
		ResolvedAddress: "Россия, Москва, улица Арбат, 10",
		Candidate:       domain.ScoredCandidate{Score: 27},
	}}
	rec := get(t, newTestServer(nil, resolver), "/resolve?address="+url.QueryEscape("мск, арбат 10"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "мск, арбат 10", resolver.address)
	body := decode(t, rec)
	assert.Equal(t, "55.752000", body["lat"])
	assert.Equal(t, "37.590000", body["lon"])
	assert.Equal(t, domain.OutcomeResolved, body["outcome"])
	assert.InDelta(t, 27.0, body["score"], 1e-9)
	assert.NotContains(t, body, "error")
}

func TestResolve_Rejected(t *testing.T) {
	resolver := &mockResolver{
		res: domain.Resolution{
			ResolvedAddress: "Россия, Москва, улица Арбат, 12",
			Match:           &domain.MatchDecision{Reason: domain.ReasonHouseMismatch},
		},
		err: fmt.Errorf("%w: %s", domain.ErrMatchRejected, domain.ReasonHouseMismatch),
	}
	rec := get(t, newTestServer(nil, resolver), "/resolve?address=x")

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, domain.OutcomeRejected, body["outcome"])
	assert.Equal(t, domain.ReasonHouseMismatch, body["reason"])
	assert.NotContains(t, body, "lat")
}

func TestResolve_StatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAddress, http.StatusBadRequest},
		{domain.ErrNoCandidate, http.StatusUnprocessableEntity},
		{domain.ErrMissingCredential, http.StatusServiceUnavailable},
		{fmt.Errorf("%w (after 3 attempts)", domain.ErrUnauthorized), http.StatusServiceUnavailable},
		{fmt.Errorf("%w (after 3 attempts)", domain.ErrRateLimited), http.StatusTooManyRequests},
		{fmt.Errorf("%w (after 3 attempts)", domain.ErrTransient), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := get(t, newTestServer(nil, &mockResolver{err: tt.err}), "/resolve?address=x")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, tt.err.Error(), decode(t, rec)["error"])
		})
	}
}

func TestResolve_Deadline(t *testing.T) {
	resolver := &mockResolver{res: domain.Resolution{Lat: "55.749400", Lon: "37.591200"}}
	start := time.Now()
	rec := get(t, newTestServer(nil, resolver), "/resolve?address=x")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.False(t, resolver.deadline.IsZero(), "lookup should run under a deadline")
	assert.WithinDuration(t, start.Add(httpadapter.ResolveTimeout), resolver.deadline, 5*time.Second)
	assert.Less(t, httpadapter.ResolveTimeout, 60*time.Second)
}

func TestResolve_TooLong(t *testing.T) {
	resolver := &mockResolver{}
	rec := get(t, newTestServer(nil, resolver), "/resolve?address="+strings.Repeat("a", 600))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, resolver.address)
}

func TestResolve_Disabled(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/resolve?address=x")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
