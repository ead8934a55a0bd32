package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

// JournalSource yields the journal's data rows and accepts coordinates.
type JournalSource interface {
	Rows() ([]domain.RawIncidentRecord, error)
	SetCoordinates(row int, lat, lon string) error
}

// ReportSink receives one entry per row the runner sent to the resolver.
type ReportSink interface {
	Write(event domain.IncidentEvent) error
}

// JournalSummary counts rows by geo source.
type JournalSummary struct {
	Total    int
	Resolved int
	Rejected int
	Failed   int
	Original int
	Skipped  int
}

func (s *JournalSummary) add(source string) {
	switch source {
	case domain.GeoSourceResolved:
		s.Resolved++
	case domain.GeoSourceRejected:
		s.Rejected++
	case domain.GeoSourceFailed:
		s.Failed++
	case domain.GeoSourceOriginal:
		s.Original++
	default:
		s.Skipped++
	}
}

// JournalRunner geocodes the pending rows of a journal on a bounded worker
// pool. Rows are written back and reported in journal order.
type JournalRunner struct {
	resolver domain.AddressResolver
	metrics  *observability.Metrics
	logger   *slog.Logger
	workers  int

	// OnProgress, if set, is called after each pending row is resolved with
	// the count done so far and the total pending. Calls are serialized.
	OnProgress func(done, total int)
}

// NewJournalRunner creates a runner. workers below 1 run sequentially.
func NewJournalRunner(resolver domain.AddressResolver, metrics *observability.Metrics, logger *slog.Logger, workers int) *JournalRunner {
	return &JournalRunner{
		resolver: resolver,
		metrics:  metrics,
		logger:   logger,
		workers:  max(workers, 1),
	}
}

// Pending reports whether a row needs geocoding: it has an address and no
// latitude yet.
func Pending(rec domain.RawIncidentRecord) bool {
	return rec.Address != "" && rec.Lat == ""
}

// Run resolves every pending row, writes accepted coordinates into the
// journal, and appends a report entry per resolved attempt. A cancelled
// context stops new lookups; the rows finished so far are still written.
func (r *JournalRunner) Run(ctx context.Context, journal JournalSource, report ReportSink) (JournalSummary, error) {
	records, err := journal.Rows()
	if err != nil {
		return JournalSummary{}, err
	}

	summary := JournalSummary{Total: len(records)}
	var pending []int
	for i, rec := range records {
		switch {
		case rec.Address == "":
			r.count(&summary, domain.GeoSourceSkipped)
		case rec.Lat != "":
			r.count(&summary, domain.GeoSourceOriginal)
		default:
			pending = append(pending, i)
		}
	}
	r.logger.Info("journal rows loaded", "total", len(records), "pending", len(pending), "workers", r.workers)

	events := r.resolveAll(ctx, records, pending)

	for _, ev := range events {
		if ev == nil {
			continue
		}
		if ev.GeoSource == domain.GeoSourceResolved {
			if err := journal.SetCoordinates(ev.Row, ev.Geo.Lat, ev.Geo.Lon); err != nil {
				return summary, fmt.Errorf("write row %d: %w", ev.Row, err)
			}
		}
		if report != nil {
			if err := report.Write(*ev); err != nil {
				return summary, err
			}
		}
		r.count(&summary, ev.GeoSource)
		recordResolution(r.metrics, *ev)
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// resolveAll fills one slot per pending row. Slots left nil were never
// started because the context ended.
func (r *JournalRunner) resolveAll(ctx context.Context, records []domain.RawIncidentRecord, pending []int) []*domain.IncidentEvent {
	events := make([]*domain.IncidentEvent, len(pending))
	progress := make(chan struct{}, len(pending))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for slot, idx := range pending {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			ev := domain.NewIncident(records[idx], time.Time{})
			ev = domain.EnrichWithGeocoding(ctx, ev, r.resolver, r.logger)
			if ev.GeoOutcome == domain.OutcomeCanceled {
				return nil
			}
			events[slot] = &ev
			progress <- struct{}{}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		n := 0
		for range progress {
			n++
			if r.OnProgress != nil {
				r.OnProgress(n, len(pending))
			}
		}
	}()

	g.Wait() //nolint:errcheck // per-row failures are carried in events
	close(progress)
	<-done
	return events
}

func (r *JournalRunner) count(s *JournalSummary, source string) {
	s.add(source)
	if r.metrics != nil {
		r.metrics.JournalRows.WithLabelValues(source).Inc()
	}
}
