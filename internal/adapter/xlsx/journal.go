// Package xlsx reads and updates the incident journal workbook.
package xlsx

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

// Journal header defaults as they appear in the operator workbook.
const (
	DefaultSheet         = "Лист1"
	DefaultAddressHeader = "Место ДТП (Адрес)"
	DefaultLatHeader     = "Координаты места ДТП (широта)"
	DefaultLonHeader     = "Координаты места ДТП (долгота)"

	outputSuffix = "_geocoded"
)

// ErrColumnNotFound is returned by Open when a required header is absent.
var ErrColumnNotFound = errors.New("journal column not found")

// Options locate the journal data. Zero values select the defaults.
type Options struct {
	// Sheet falls back to DefaultSheet, then to the first sheet.
	Sheet         string
	AddressHeader string
	LatHeader     string
	LonHeader     string
	// HeaderRow is the 1-based row holding the column titles.
	HeaderRow int
	// StartRow is the first 1-based data row to consider; rows above it are
	// left untouched.
	StartRow int
}

func (o Options) withDefaults() Options {
	if o.AddressHeader == "" {
		o.AddressHeader = DefaultAddressHeader
	}
	if o.LatHeader == "" {
		o.LatHeader = DefaultLatHeader
	}
	if o.LonHeader == "" {
		o.LonHeader = DefaultLonHeader
	}
	o.HeaderRow = max(o.HeaderRow, 1)
	o.StartRow = max(o.StartRow, o.HeaderRow+1)
	return o
}

// Journal is an open workbook. Writes go to the in-memory copy until SaveAs.
// It is not safe for concurrent use.
type Journal struct {
	file  *excelize.File
	path  string
	sheet string
	opts  Options

	addrCol, latCol, lonCol int // 1-based
}

// Open loads the workbook and resolves the address and coordinate columns
// by header text. Header cells are compared after trimming spaces.
func Open(path string, opts Options) (*Journal, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j, err := newJournal(f, path, opts)
	if err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, err
	}
	return j, nil
}

func newJournal(f *excelize.File, path string, opts Options) (*Journal, error) {
	opts = opts.withDefaults()
	sheet, err := pickSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	var header []string
	if len(rows) >= opts.HeaderRow {
		header = rows[opts.HeaderRow-1]
	}

	j := &Journal{file: f, path: path, sheet: sheet, opts: opts}
	for _, c := range []struct {
		title string
		dst   *int
	}{
		{opts.AddressHeader, &j.addrCol},
		{opts.LatHeader, &j.latCol},
		{opts.LonHeader, &j.lonCol},
	} {
		idx := headerIndex(header, c.title)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q in sheet %q", ErrColumnNotFound, c.title, sheet)
		}
		*c.dst = idx + 1
	}
	return j, nil
}

func pickSheet(f *excelize.File, name string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("journal has no sheets")
	}
	if name != "" {
		for _, s := range sheets {
			if s == name {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found", name)
	}
	for _, s := range sheets {
		if s == DefaultSheet {
			return s, nil
		}
	}
	return sheets[0], nil
}

func headerIndex(header []string, title string) int {
	want := strings.TrimSpace(title)
	for i, h := range header {
		if strings.TrimSpace(h) == want {
			return i
		}
	}
	return -1
}

// Sheet returns the name of the sheet in use.
func (j *Journal) Sheet() string { return j.sheet }

// Rows returns every data row from StartRow on, including the ones that
// already carry coordinates. Row holds the 1-based spreadsheet row and cell
// values are trimmed.
func (j *Journal) Rows() ([]domain.RawIncidentRecord, error) {
	rows, err := j.file.GetRows(j.sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", j.sheet, err)
	}
	out := make([]domain.RawIncidentRecord, 0, max(len(rows)-j.opts.StartRow+1, 0))
	for i := j.opts.StartRow - 1; i < len(rows); i++ {
		cells := rows[i]
		out = append(out, domain.RawIncidentRecord{
			Row:     i + 1,
			Address: cell(cells, j.addrCol),
			Lat:     cell(cells, j.latCol),
			Lon:     cell(cells, j.lonCol),
		})
	}
	return out, nil
}

func cell(cells []string, col int) string {
	if col-1 >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[col-1])
}

// SetCoordinates writes lat and lon into the given row. Existing cell
// styles are kept.
func (j *Journal) SetCoordinates(row int, lat, lon string) error {
	if row < j.opts.StartRow {
		return fmt.Errorf("row %d is above the first data row %d", row, j.opts.StartRow)
	}
	for _, c := range []struct {
		col   int
		value string
	}{{j.latCol, lat}, {j.lonCol, lon}} {
		name, err := excelize.CoordinatesToCellName(c.col, row)
		if err != nil {
			return err
		}
		if err := j.file.SetCellValue(j.sheet, name, c.value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}
	return nil
}

// OutputPath is the default destination: the source name plus "_geocoded".
func (j *Journal) OutputPath() string {
	return OutputPath(j.path)
}

// OutputPath derives "<name>_geocoded.xlsx" from a journal path.
func OutputPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + outputSuffix + ".xlsx"
}

// SaveAs writes the workbook to path.
func (j *Journal) SaveAs(path string) error {
	if err := j.file.SaveAs(path); err != nil {
		return fmt.Errorf("save journal: %w", err)
	}
	return nil
}

func (j *Journal) Close() error {
	return j.file.Close()
}
