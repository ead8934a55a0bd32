package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/incident-geocode-etl/internal/adapter/yandex"
	"github.com/couchcryptid/incident-geocode-etl/internal/config"
	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
	"github.com/couchcryptid/incident-geocode-etl/internal/observability"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

type geocodeFlags struct {
	strict bool
	fuzzy  bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	gf := &geocodeFlags{}

	root := &cobra.Command{
		Use:           "journal",
		Short:         "Geocode Moscow-region incident addresses",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if os.Getenv("LOG_FORMAT") == "" {
				cfg.LogFormat = "text"
			}
			if cmd.Flags().Changed("strict") {
				cfg.GeocoderStrict = gf.strict
			}
			if cmd.Flags().Changed("fuzzy-streets") {
				cfg.GeocoderFuzzyStreets = gf.fuzzy
			}
			a.cfg = cfg
			a.logger = observability.NewStderrLogger(cfg)
			a.metrics = observability.NewMetricsWith(prometheus.NewRegistry())
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&gf.strict, "strict", false, "validate the resolved street and house against the input (default from GEOCODER_STRICT)")
	root.PersistentFlags().BoolVar(&gf.fuzzy, "fuzzy-streets", false, "tolerate one-letter typos in street names (default from GEOCODER_FUZZY_STREETS)")

	root.AddCommand(newEnrichCmd(a), newResolveCmd(a))
	return root
}

// resolver builds the address engine. A missing API key is an error here:
// both subcommands exist only to geocode.
func (a *app) resolver() (*domain.Resolver, error) {
	if !a.cfg.GeocoderEnabled {
		return nil, errors.New("geocoding is disabled: set GEOCODER_API_KEY")
	}
	return yandex.NewResolver(a.cfg, a.metrics, a.logger)
}
