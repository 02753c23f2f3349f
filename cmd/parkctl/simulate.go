package main

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/buscaparca/internal/simulate"
	"github.com/okian/buscaparca/pkg/geo"
)

func newSimulateCmd() *cobra.Command {
	cfg := simulate.Config{}
	var timezone string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Seed demo parking reports around a point and show what the service predicts",
		Long: `simulate posts parking reports for eight demo zones around the given
center, each with its own success rate, spread over the last --days days with
rush-hour weighted hours. It then refreshes the model and prints the best
nearby zones and the prediction for the center.

Ingestion is rate limited per client; throttled reports are retried. Run the
server with PARCA_INGEST_RATE_LIMIT_PER_MINUTE=0 to seed quickly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := time.LoadLocation(timezone)
			if err != nil {
				return fmt.Errorf("timezone %q: %w", timezone, err)
			}
			cfg.Location = loc
			if !quiet {
				cfg.Progress = cmd.ErrOrStderr()
			}
			sum, err := simulate.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", simulate.DefaultBaseURL, "base URL of the service")
	f.Float64Var(&cfg.Latitude, "lat", simulate.DefaultLatitude, "center latitude")
	f.Float64Var(&cfg.Longitude, "lon", simulate.DefaultLongitude, "center longitude")
	f.IntVar(&cfg.Days, "days", simulate.DefaultDays, "spread reports over this many days")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU(), "concurrent submitters")
	f.IntVar(&cfg.Trajectories, "trajectories", simulate.DefaultTrajectories, "GPS samples to post")
	f.Int64Var(&cfg.Seed, "seed", 0, "generator seed (0 picks one)")
	f.StringVar(&cfg.UserID, "user", "", "reporting user id (generated when empty)")
	f.DurationVar(&cfg.Timeout, "timeout", simulate.DefaultTimeout, "HTTP request timeout")
	f.StringVar(&timezone, "timezone", "Europe/Madrid", "time zone used to place report hours")
	f.BoolVar(&quiet, "quiet", false, "hide the progress bar")
	return cmd
}

func printSummary(w io.Writer, sum simulate.Summary) {
	fmt.Fprintf(w, "Seeded %d reports (%d recorded, %d duplicate, %d failed) and %d GPS samples in %s\n",
		sum.ReportsGenerated, sum.ReportsRecorded, sum.ReportsDuplicate, sum.ReportsFailed,
		sum.SamplesRecorded, sum.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Service now holds %d events in %d zones\n\n", sum.Stats.Events, sum.Stats.Zones)

	fmt.Fprintf(w, "Prediction at the center: %d%% (time %.2f, spatial %.2f, location %.2f)\n\n",
		sum.Prediction.Probability, sum.Prediction.TimeFactor, sum.Prediction.SpatialFactor, sum.Prediction.LocationFactor)

	if len(sum.Best) == 0 {
		fmt.Fprintln(w, "No reliable zones nearby yet.")
		return
	}
	fmt.Fprintln(w, "Best zones nearby:")
	for i, z := range sum.Best {
		fmt.Fprintf(w, "  %d. %3d%%  %-8s  success %.0f%% of %d  (%.5f, %.5f)\n",
			i+1, z.Probability, geo.FormatDistance(z.Distance), z.SuccessRate*100, z.TotalCount, z.Latitude, z.Longitude)
	}
}
