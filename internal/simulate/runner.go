package simulate

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/okian/buscaparca/pkg/logger"
)

// Verification query parameters.
const (
	verifyMaxDistance = 1000.0
	verifyLimit       = 5
)

// Run seeds the service at cfg.BaseURL and reads back the best zones and
// the prediction for the center.
func Run(ctx context.Context, cfg Config) (Summary, error) {
	cfg = cfg.withDefaults()
	start := time.Now()
	log := logger.Named("simulate")
	client := NewClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting parking simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Float64("latitude", cfg.Latitude),
		logger.Float64("longitude", cfg.Longitude),
		logger.Int("days", cfg.Days),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", cfg.Seed),
	)

	if err := client.Health(ctx); err != nil {
		return Summary{}, fmt.Errorf("service health check failed: %w", err)
	}

	gen := NewGenerator(cfg)
	reports := gen.Reports(time.Now())
	samples := gen.Samples(cfg.Trajectories)
	sum := Summary{ReportsGenerated: len(reports)}

	if err := submit(ctx, cfg, client, reports, samples, &sum); err != nil {
		return sum, fmt.Errorf("submission failed: %w", err)
	}
	log.Info(ctx, "reports submitted",
		logger.Int("recorded", sum.ReportsRecorded),
		logger.Int("duplicate", sum.ReportsDuplicate),
		logger.Int("failed", sum.ReportsFailed),
		logger.Int("samples", sum.SamplesRecorded),
		logger.Int("throttled", sum.Throttled),
	)

	if err := client.Refresh(ctx); err != nil {
		log.Warn(ctx, "model refresh failed; results may lag", logger.Error(err))
	}

	var err error
	if sum.Best, err = client.FindParking(ctx, cfg.Latitude, cfg.Longitude, verifyMaxDistance, verifyLimit); err != nil {
		return sum, fmt.Errorf("find parking: %w", err)
	}
	if sum.Prediction, err = client.Predict(ctx, cfg.Latitude, cfg.Longitude); err != nil {
		return sum, fmt.Errorf("predict: %w", err)
	}
	if sum.Stats, err = client.Stats(ctx); err != nil {
		return sum, fmt.Errorf("stats: %w", err)
	}
	sum.Duration = time.Since(start)

	if err := Verify(sum); err != nil {
		return sum, fmt.Errorf("result verification failed: %w", err)
	}
	log.Info(ctx, "simulation completed", logger.Duration("took", sum.Duration))
	return sum, nil
}

// submit posts reports and samples through a bounded pool of workers.
// Individual failures are counted, not fatal.
func submit(ctx context.Context, cfg Config, client *Client, reports []Report, samples []Sample, sum *Summary) error {
	var bar *progressbar.ProgressBar
	if cfg.Progress != nil {
		bar = progressbar.NewOptions(len(reports)+len(samples),
			progressbar.OptionSetWriter(cfg.Progress),
			progressbar.OptionSetDescription("seeding"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	tick := func() {
		if bar != nil {
			_ = bar.Add(1)
		}
	}

	var recorded, duplicate, failed, sampled, throttled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for _, r := range reports {
		g.Go(func() error {
			defer tick()
			o, n, err := client.PostReport(gctx, r)
			throttled.Add(int64(n))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch {
			case err != nil || o == Failed:
				failed.Add(1)
			case o == Duplicate:
				duplicate.Add(1)
			default:
				recorded.Add(1)
			}
			return nil
		})
	}
	for _, s := range samples {
		g.Go(func() error {
			defer tick()
			n, err := client.PostSample(gctx, s)
			throttled.Add(int64(n))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == nil {
				sampled.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	if bar != nil {
		_ = bar.Finish()
	}

	sum.ReportsRecorded = int(recorded.Load())
	sum.ReportsDuplicate = int(duplicate.Load())
	sum.ReportsFailed = int(failed.Load())
	sum.SamplesRecorded = int(sampled.Load())
	sum.Throttled = int(throttled.Load())
	return err
}
