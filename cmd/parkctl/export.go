package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/okian/buscaparca/internal/adapters/export"
	"github.com/okian/buscaparca/internal/adapters/repository"
	"github.com/okian/buscaparca/pkg/logger"
)

func newExportCmd() *cobra.Command {
	var (
		driver     string
		dsn        string
		out        string
		zonesOut   string
		limit      int
		minSamples int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write recent parking events (and optionally zones) to Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.Named("export")

			store, err := repository.Open(ctx, driver, dsn)
			if err != nil {
				return fmt.Errorf("open %s store: %w", driver, err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Warn(ctx, "store close failed", logger.Error(err))
				}
			}()

			events, err := store.QueryRecentEvents(ctx, limit)
			if err != nil {
				return fmt.Errorf("load events: %w", err)
			}
			bar := progressbar.NewOptions(len(events),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("events"),
				progressbar.OptionShowCount(),
			)
			if err := export.WriteEvents(ctx, out, events, func() { _ = bar.Add(1) }); err != nil {
				return err
			}
			_ = bar.Finish()
			log.Info(ctx, "events exported", logger.String("path", out), logger.Int("rows", len(events)))

			if zonesOut == "" {
				return nil
			}
			zones, err := store.ListZones(ctx, minSamples, 0)
			if err != nil {
				return fmt.Errorf("load zones: %w", err)
			}
			if err := export.WriteZones(ctx, zonesOut, zones, nil); err != nil {
				return err
			}
			log.Info(ctx, "zones exported", logger.String("path", zonesOut), logger.Int("rows", len(zones)))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&driver, "driver", repository.DriverSQLite, "store driver (sqlite or postgres)")
	f.StringVar(&dsn, "dsn", "parking.db", "store DSN")
	f.StringVar(&out, "out", "parking_events.parquet", "events output file")
	f.StringVar(&zonesOut, "zones-out", "", "zones output file (skipped when empty)")
	f.IntVar(&limit, "limit", 100_000, "maximum number of events, newest first")
	f.IntVar(&minSamples, "min-samples", 1, "only export zones with at least this many reports")
	return cmd
}
