// Package report writes the per-row geocoding report operators review
// alongside an enriched journal.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

// Separator is the field delimiter spreadsheet tools expect in ru locales.
const Separator = ';'

var bom = []byte{0xEF, 0xBB, 0xBF}

// Header lists the report columns in order.
var Header = []string{
	"Строка",
	"Исходный адрес",
	"Отправлено в API",
	"Адрес от Яндекса",
	"Дом (оригинал)",
	"Дом (Яндекс)",
	"Улица (оригинал)",
	"Улица (Яндекс)",
	"Решение",
	"Причина",
	"Широта",
	"Долгота",
}

// Decision labels.
const (
	DecisionAccepted = "ПРИНЯТО"
	DecisionRejected = "ОТКЛОНЕНО"
	DecisionFailed   = "ОШИБКА_API"
	DecisionNotFound = "НЕ_НАЙДЕНО"
)

// Writer appends report rows. It is not safe for concurrent use.
type Writer struct {
	csv    *csv.Writer
	closer io.Closer
	rows   int
}

// Create opens path for writing and emits the BOM and header.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	w, err := newWriter(f, f)
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return w, nil
}

// NewWriter writes the BOM and header to w. Close flushes but does not
// close w.
func NewWriter(w io.Writer) (*Writer, error) {
	return newWriter(w, nil)
}

func newWriter(w io.Writer, closer io.Closer) (*Writer, error) {
	if _, err := w.Write(bom); err != nil {
		return nil, fmt.Errorf("write report bom: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = Separator
	if err := cw.Write(Header); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}
	return &Writer{csv: cw, closer: closer}, nil
}

// Write appends one processed row.
func (w *Writer) Write(e domain.IncidentEvent) error {
	if err := w.csv.Write(Record(e)); err != nil {
		return fmt.Errorf("write report row %d: %w", e.Row, err)
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written.
func (w *Writer) Rows() int { return w.rows }

// Close flushes buffered rows and closes the underlying file, if any.
func (w *Writer) Close() error {
	w.csv.Flush()
	err := w.csv.Error()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Record renders an event as a report row. Address tokens missing from the
// event (lenient mode skips match validation) are extracted here.
func Record(e domain.IncidentEvent) []string {
	houseIn, streetIn := e.HouseInput, e.StreetInput
	if houseIn == "" && streetIn == "" {
		houseIn = domain.ExtractHouseNumber(e.Address)
		streetIn = domain.ExtractStreetPart(e.Address)
	}
	houseOut, streetOut := e.HouseResolved, e.StreetResolved
	if houseOut == "" && streetOut == "" && e.ResolvedAddress != "" {
		houseOut = domain.ExtractHouseNumber(e.ResolvedAddress)
		streetOut = domain.ExtractStreetPart(e.ResolvedAddress)
	}
	sent := e.GeoQuery
	if sent == "" {
		sent = e.NormalizedAddress
	}
	reason := e.GeoReason
	if reason == "" && e.GeoSource != domain.GeoSourceResolved {
		reason = e.GeoOutcome
	}

	return []string{
		fmt.Sprint(e.Row),
		e.Address,
		sent,
		e.ResolvedAddress,
		houseIn,
		houseOut,
		streetIn,
		streetOut,
		Decision(e),
		reason,
		e.Geo.Lat,
		e.Geo.Lon,
	}
}

// Decision maps the event's geo source onto the operator label.
func Decision(e domain.IncidentEvent) string {
	switch e.GeoSource {
	case domain.GeoSourceResolved:
		return DecisionAccepted
	case domain.GeoSourceRejected:
		return DecisionRejected
	}
	if e.GeoOutcome == domain.OutcomeNoCandidate {
		return DecisionNotFound
	}
	return DecisionFailed
}

// DefaultPath names a report next to the journal, stamped with now.
func DefaultPath(journalPath string, now time.Time) string {
	return filepath.Join(filepath.Dir(journalPath), "geocoding_report_"+now.Format("20060102_150405")+".csv")
}
