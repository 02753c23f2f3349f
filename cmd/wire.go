package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/buscaparca/internal/adapters/http/api"
	"github.com/okian/buscaparca/internal/adapters/http/swagger"
	"github.com/okian/buscaparca/internal/adapters/opendata"
	"github.com/okian/buscaparca/internal/adapters/repository"
	service "github.com/okian/buscaparca/internal/app"
	"github.com/okian/buscaparca/internal/config"
	"github.com/okian/buscaparca/internal/domain/prediction"
	"github.com/okian/buscaparca/internal/domain/zone"
	"github.com/okian/buscaparca/pkg/logger"
)

// application holds the wired components owned by main.
type application struct {
	store   repository.Store
	service *service.Service
	handler http.Handler
}

// build wires store, engine, service and HTTP routes from cfg.
func build(ctx context.Context, cfg *config.Config) (*application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	id := zoneIdentity(cfg)
	if err := id.Validate(); err != nil {
		return nil, err
	}
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, repository.WithIdentity(id))
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	engine := prediction.New(
		prediction.WithMinSamples(cfg.MinSamples),
		prediction.WithMinSamplesTime(cfg.MinSamplesTime),
		prediction.WithNoiseAmplitude(cfg.NoiseAmplitude),
		prediction.WithNearbyRadius(cfg.NearbyRadiusM),
		prediction.WithLocationRadius(cfg.LocationRadiusM),
		prediction.WithHourWindow(cfg.LocationHourWin),
		prediction.WithTieThreshold(cfg.TieThreshold),
		prediction.WithLocation(loc),
	)

	opts := []service.Option{
		service.WithLogger(logger.Named("service")),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithRefreshEvery(cfg.RefreshEvery),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithRefreshTimeout(cfg.RefreshTimeout()),
		service.WithStoreTimeout(cfg.StoreTimeout()),
		service.WithSnapshotLimits(cfg.RecentEventsLimit, cfg.ZoneCacheLimit),
		service.WithRetention(cfg.TrajectoryRetention(), cfg.PruneInterval()),
		service.WithMaxHotZones(cfg.MaxHotZones),
	}
	if cfg.OpenDataEnabled {
		opts = append(opts, service.WithPublicParking(opendata.New(cfg.OpenDataURL,
			opendata.WithTimeout(cfg.OpenDataTimeout()),
			opendata.WithCacheTTL(cfg.OpenDataCacheTTL()),
			opendata.WithLogger(logger.Named("opendata")),
		)))
	}
	svc := service.New(store, engine, opts...)

	return &application{
		store:   store,
		service: svc,
		handler: newHandler(ctx, cfg, svc),
	}, nil
}

// zoneIdentity maps the zone_* settings onto a zone identity.
func zoneIdentity(cfg *config.Config) zone.Identity {
	return zone.Identity{
		Scheme:  zone.Scheme(cfg.ZoneKeying),
		Level:   cfg.ZoneCellLevel,
		Epsilon: cfg.ZoneEpsilonDeg,
		Radius:  cfg.ZoneRadiusM,
	}
}

// newHandler registers the documentation and business routes.
func newHandler(ctx context.Context, cfg *config.Config, svc api.Dependencies) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	api.NewServer(svc,
		api.WithLogger(logger.Named("api")),
		api.WithIngestRateLimit(cfg.IngestRateLimitPerMinute),
		api.WithLimits(api.Limits{
			DefaultMaxDistance:   cfg.DefaultMaxDistanceM,
			DefaultLimit:         cfg.DefaultLimit,
			MaxLimit:             cfg.MaxLimit,
			DefaultHotZoneRadius: cfg.DefaultHotZoneRadiusKm,
		}),
	).Register(ctx, mux)
	return mux
}

// close stops the service and then releases the store.
func (a *application) close(ctx context.Context, log logger.Logger) {
	a.service.Stop()
	if err := a.store.Close(); err != nil {
		log.Error(ctx, "store close failed", logger.Error(err))
	}
}
