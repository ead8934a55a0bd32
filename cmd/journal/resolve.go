package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/incident-geocode-etl/internal/domain"
)

type resolveOutput struct {
	Address         string `json:"address"`
	Lat             string `json:"lat,omitempty"`
	Lon             string `json:"lon,omitempty"`
	Outcome         string `json:"outcome"`
	Error           string `json:"error,omitempty"`
	Query           string `json:"query,omitempty"`
	UsedFallback    bool   `json:"used_fallback,omitempty"`
	ResolvedAddress string `json:"resolved_address,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

func newResolveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <address>...",
		Short: "Resolve one address and print the result as JSON",
		Long: `resolve joins its arguments into one address, normalizes it, queries the
geocoder, and prints the chosen coordinates. Quote the address or pass it
as several words.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			address := strings.Join(args, " ")
			res, resErr := resolver.Resolve(cmd.Context(), address)

			out := resolveOutput{
				Address:         address,
				Lat:             res.Lat,
				Lon:             res.Lon,
				Outcome:         domain.Outcome(resErr),
				Query:           res.Query,
				UsedFallback:    res.UsedFallback,
				ResolvedAddress: res.ResolvedAddress,
			}
			if res.Match != nil {
				out.Reason = res.Match.Reason
			}
			if resErr != nil {
				out.Error = resErr.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			if err := enc.Encode(out); err != nil {
				return err
			}
			return resErr
		},
	}
}
