package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/incident-geocode-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/incident-geocode-etl/internal/pipeline"
	"github.com/couchcryptid/incident-geocode-etl/internal/report"
)

type enrichOptions struct {
	journal    xlsx.Options
	output     string
	reportPath string
	noReport   bool
	workers    int
}

func newEnrichCmd(a *app) *cobra.Command {
	opts := &enrichOptions{}

	cmd := &cobra.Command{
		Use:   "enrich <journal.xlsx>",
		Short: "Fill missing coordinates in a journal workbook",
		Long: `enrich reads the address column of the journal, geocodes every row that
has an address but no latitude, writes accepted coordinates into the
latitude and longitude columns, and saves the result next to the input as
<name>_geocoded.xlsx. A ';'-separated CSV report lists every attempt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.enrich(cmd, args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.journal.Sheet, "sheet", "", "sheet name (default "+xlsx.DefaultSheet+", then the first sheet)")
	f.StringVar(&opts.journal.AddressHeader, "address-column", xlsx.DefaultAddressHeader, "header of the address column")
	f.StringVar(&opts.journal.LatHeader, "lat-column", xlsx.DefaultLatHeader, "header of the latitude column")
	f.StringVar(&opts.journal.LonHeader, "lon-column", xlsx.DefaultLonHeader, "header of the longitude column")
	f.IntVar(&opts.journal.HeaderRow, "header-row", 1, "1-based row holding the column headers")
	f.IntVar(&opts.journal.StartRow, "start-row", 0, "first 1-based data row to process (default: the row after the header)")
	f.StringVarP(&opts.output, "output", "o", "", "output workbook (default <name>_geocoded.xlsx)")
	f.StringVar(&opts.reportPath, "report", "", "CSV report path (default geocoding_report_<timestamp>.csv next to the journal)")
	f.BoolVar(&opts.noReport, "no-report", false, "skip the CSV report")
	f.IntVar(&opts.workers, "workers", 0, "concurrent lookups (default from GEOCODER_WORKERS)")
	return cmd
}

func (a *app) enrich(cmd *cobra.Command, path string, opts *enrichOptions) error {
	resolver, err := a.resolver()
	if err != nil {
		return err
	}

	journal, err := xlsx.Open(path, opts.journal)
	if err != nil {
		return err
	}
	defer journal.Close()

	var sink pipeline.ReportSink
	var rw *report.Writer
	if !opts.noReport {
		reportPath := opts.reportPath
		if reportPath == "" {
			reportPath = report.DefaultPath(path, time.Now())
		}
		rw, err = report.Create(reportPath)
		if err != nil {
			return err
		}
		defer rw.Close()
		sink = rw
		a.logger.Info("writing report", "path", reportPath)
	}

	workers := a.cfg.GeocoderWorkers
	if opts.workers > 0 {
		workers = opts.workers
	}
	runner := pipeline.NewJournalRunner(resolver, a.metrics, a.logger, workers)

	var bar *progressbar.ProgressBar
	runner.OnProgress = func(done, total int) {
		if !isatty.IsTerminal(os.Stderr.Fd()) {
			if done%50 == 0 || done == total {
				a.logger.Info("progress", "done", done, "total", total)
			}
			return
		}
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Geocoding "+journal.Sheet()),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.Set(done) //nolint:errcheck // cosmetic
	}

	start := time.Now()
	summary, runErr := runner.Run(cmd.Context(), journal, sink)

	output := opts.output
	if output == "" {
		output = journal.OutputPath()
	}
	// Save whatever was resolved, even after an interrupt.
	if err := journal.SaveAs(output); err != nil {
		return err
	}
	if rw != nil {
		if err := rw.Close(); err != nil {
			return fmt.Errorf("close report: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"rows %d: resolved %d, rejected %d, failed %d, already set %d, no address %d (%.1fs)\n%s\n",
		summary.Total, summary.Resolved, summary.Rejected, summary.Failed, summary.Original, summary.Skipped,
		time.Since(start).Seconds(), output)
	return runErr
}
