package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupResult struct {
	candidates []GeoCandidate
	err        error
}

// fakeProvider answers from a table keyed by query text and records every query.
type fakeProvider struct {
	mu        sync.Mutex
	responses map[string]lookupResult
	calls     []string
	noKey     bool
}

func (p *fakeProvider) Lookup(_ context.Context, address string) ([]GeoCandidate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, address)
	r := p.responses[address]
	return r.candidates, r.err
}

func (p *fakeProvider) HasCredential() bool { return !p.noKey }

var arbat10 = GeoCandidate{Lat: 55.7494, Lon: 37.5912, Name: "улица Арбат, 10", Description: "Москва, Россия"}

func TestResolve_Success(t *testing.T) {
	p := &fakeProvider{responses: map[string]lookupResult{
		"Москва, арбат 10": {candidates: []GeoCandidate{arbat10}},
	}}
	r := NewResolver(p, DefaultResolverOptions(), discardLogger())

	res, err := r.Resolve(context.Background(), "мск, арбат 10")

	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, "55.749400", res.Lat)
	assert.Equal(t, "37.591200", res.Lon)
	assert.Equal(t, NormalizedAddress("Москва, арбат 10"), res.Normalized)
	assert.Equal(t, "Москва, арбат 10", res.Query)
	assert.False(t, res.UsedFallback)
	assert.Equal(t, "улица Арбат, 10, Москва, Россия", res.ResolvedAddress)
	assert.Nil(t, res.Match)
	assert.Equal(t, []string{"Москва, арбат 10"}, p.calls)
}

func TestResolve_InputErrors(t *testing.T) {
	t.Run("blank address", func(t *testing.T) {
		p := &fakeProvider{}
		_, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "  \t ")
		require.ErrorIs(t, err, ErrInvalidAddress)
		assert.Empty(t, p.calls)
	})

	t.Run("missing credential", func(t *testing.T) {
		p := &fakeProvider{noKey: true}
		_, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "мск, арбат 10")
		require.ErrorIs(t, err, ErrMissingCredential)
		assert.Empty(t, p.calls)
		assert.Equal(t, OutcomeInvalidInput, Outcome(err))
	})
}

func TestResolve_FallbackToRaw(t *testing.T) {
	tests := []struct {
		name       string
		normalized lookupResult
	}{
		{"empty result", lookupResult{}},
		{"transient error", lookupResult{err: fmt.Errorf("%w: timeout", ErrTransient)}},
		{"rate limited", lookupResult{err: ErrRateLimited}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{responses: map[string]lookupResult{
				"Москва, арбат 10": tt.normalized,
				"мск, арбат 10":    {candidates: []GeoCandidate{arbat10}},
			}}

			res, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), " мск, арбат 10 ")

			require.NoError(t, err)
			assert.True(t, res.UsedFallback)
			assert.Equal(t, "мск, арбат 10", res.Query)
			assert.Equal(t, []string{"Москва, арбат 10", "мск, арбат 10"}, p.calls)
		})
	}
}

func TestResolve_NoFallback(t *testing.T) {
	t.Run("raw equals normalized", func(t *testing.T) {
		p := &fakeProvider{}
		_, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "ул. Ленина, д. 5")
		require.ErrorIs(t, err, ErrNoCandidate)
		assert.Len(t, p.calls, 1)
	})

	t.Run("unauthorized", func(t *testing.T) {
		p := &fakeProvider{responses: map[string]lookupResult{
			"Москва, арбат 10": {err: fmt.Errorf("status 403: %w", ErrUnauthorized)},
		}}
		_, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "мск, арбат 10")
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.Len(t, p.calls, 1)
		assert.Equal(t, OutcomeUnauthorized, Outcome(err))
	})

	t.Run("canceled", func(t *testing.T) {
		p := &fakeProvider{responses: map[string]lookupResult{
			"Москва, арбат 10": {err: context.Canceled},
		}}
		_, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "мск, арбат 10")
		require.ErrorIs(t, err, context.Canceled)
		assert.Len(t, p.calls, 1)
		assert.Equal(t, OutcomeCanceled, Outcome(err))
	})
}

func TestResolve_FallbackErrorReturned(t *testing.T) {
	p := &fakeProvider{responses: map[string]lookupResult{
		"Москва, арбат 10": {err: ErrTransient},
		"мск, арбат 10":    {err: ErrProvider},
	}}

	_, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "мск, арбат 10")

	require.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, OutcomeFailed, Outcome(err))
}

func TestResolve_OutOfRegion(t *testing.T) {
	p := &fakeProvider{responses: map[string]lookupResult{
		"Невский проспект 1": {candidates: []GeoCandidate{{Lat: 59.9, Lon: 30.3, Name: "Невский проспект, 1"}}},
	}}

	res, err := NewResolver(p, DefaultResolverOptions(), discardLogger()).Resolve(context.Background(), "Невский проспект 1")

	require.ErrorIs(t, err, ErrNoCandidate)
	assert.False(t, res.Resolved())
	assert.Empty(t, res.Lat)
	assert.Equal(t, OutcomeNoCandidate, Outcome(err))
}

func TestResolve_StrictRejectsConflict(t *testing.T) {
	p := &fakeProvider{responses: map[string]lookupResult{
		"ул. Героя России Соломатина, д. 5": {candidates: []GeoCandidate{{
			Lat: 55.7565, Lon: 37.6178,
			Name:        "проезд Воскресенские Ворота",
			Description: "Москва, Россия",
			Address:     "Россия, Москва, проезд Воскресенские Ворота",
		}}},
	}}
	opts := DefaultResolverOptions()
	opts.ValidateMatch = true

	res, err := NewResolver(p, opts, discardLogger()).Resolve(context.Background(), "ул. Соломатина, д. 5")

	require.ErrorIs(t, err, ErrMatchRejected)
	assert.Equal(t, OutcomeRejected, Outcome(err))
	assert.False(t, res.Resolved())
	assert.Equal(t, "Россия, Москва, проезд Воскресенские Ворота", res.ResolvedAddress)
	require.NotNil(t, res.Match)
	assert.Equal(t, ReasonConflict, res.Match.Reason)
}

func TestResolve_StrictAccepts(t *testing.T) {
	p := &fakeProvider{responses: map[string]lookupResult{
		"ул. Тверская, д. 7, Москва": {candidates: []GeoCandidate{{
			Lat: 55.7579, Lon: 37.6117,
			Name:        "Тверская улица, 7",
			Description: "Москва, Россия",
			Address:     "Россия, Москва, Тверская улица, 7",
		}}},
	}}
	opts := DefaultResolverOptions()
	opts.ValidateMatch = true

	res, err := NewResolver(p, opts, discardLogger()).Resolve(context.Background(), "ул. Тверская, д. 7")

	require.NoError(t, err)
	assert.Equal(t, "55.757900", res.Lat)
	require.NotNil(t, res.Match)
	assert.True(t, res.Match.Accepted)
	assert.Equal(t, "7", res.Match.HouseResolved)
}

func TestResolve_Concurrent(t *testing.T) {
	p := &fakeProvider{responses: map[string]lookupResult{
		"Москва, арбат 10": {candidates: []GeoCandidate{arbat10}},
	}}
	r := NewResolver(p, DefaultResolverOptions(), discardLogger())

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Go(func() {
			if _, err := r.Resolve(context.Background(), "мск, арбат 10"); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Len(t, p.calls, 16)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeResolved, Outcome(nil))
	assert.Equal(t, OutcomeTransient, Outcome(fmt.Errorf("lookup: %w", ErrTransient)))
	assert.Equal(t, OutcomeRateLimited, Outcome(ErrRateLimited))
	assert.Equal(t, OutcomeInvalidInput, Outcome(ErrInvalidAddress))
	assert.Equal(t, OutcomeCanceled, Outcome(context.DeadlineExceeded))
	assert.Equal(t, OutcomeFailed, Outcome(errors.New("boom")))
}
