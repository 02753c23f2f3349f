// Package opendata reads the public car-park feed published by the city of
// Madrid and turns it into nearby-parking answers and extra hot zones.
//
// The feed is best effort. Fetches run behind a circuit breaker, successful
// results are cached, and a stale cache is preferred over an error.
package opendata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/buscaparca/internal/domain/model"
	"github.com/okian/buscaparca/pkg/geo"
	"github.com/okian/buscaparca/pkg/logger"
	"github.com/okian/buscaparca/pkg/metrics"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = 5 * time.Minute
	maxBodyBytes    = 16 << 20
	breakerName     = "madrid-open-data"
)

// Client fetches and caches the car-park feed.
type Client struct {
	url     string
	http    *http.Client
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time
	logger  logger.Logger

	cb *gobreaker.CircuitBreaker[[]model.PublicParking]

	mu        sync.RWMutex
	cached    []model.PublicParking
	fetchedAt time.Time
}

// New creates a client for the feed at url.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:     url,
		http:    http.DefaultClient,
		timeout: defaultTimeout,
		ttl:     defaultCacheTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("opendata")
	}

	metrics.UpdateOpenDataBreakerState(0)
	c.cb = gobreaker.NewCircuitBreaker[[]model.PublicParking](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateOpenDataBreakerState(stateValue(to))
			c.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

// Facilities returns every car park in the feed.
func (c *Client) Facilities(ctx context.Context) ([]model.PublicParking, error) {
	c.mu.RLock()
	cached, fresh := c.cached, c.cached != nil && c.now().Sub(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		metrics.RecordOpenDataFetch("cache")
		return cached, nil
	}

	list, err := c.cb.Execute(func() ([]model.PublicParking, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		outcome := "failure"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			outcome = "rejected"
		}
		metrics.RecordOpenDataFetch(outcome)
		if cached != nil {
			c.logger.Warn(ctx, "serving stale open data", logger.Error(err))
			return cached, nil
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	metrics.RecordOpenDataFetch("success")
	metrics.UpdateOpenDataFacilities(len(list))
	c.mu.Lock()
	c.cached, c.fetchedAt = list, c.now()
	c.mu.Unlock()
	return list, nil
}

func (c *Client) fetch(ctx context.Context) ([]model.PublicParking, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return parseFeed(body)
}

// Nearby returns car parks within radiusMeters, best availability first
// with distance as a penalty.
func (c *Client) Nearby(ctx context.Context, lat, lon, radiusMeters float64) ([]model.PublicParking, error) {
	all, err := c.Facilities(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.PublicParking, 0)
	for _, p := range all {
		d := geo.DistanceMeters(lat, lon, p.Latitude, p.Longitude)
		if d > radiusMeters {
			continue
		}
		p.Distance = d
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return nearbyScore(out[i]) > nearbyScore(out[j])
	})
	return out, nil
}

func nearbyScore(p model.PublicParking) float64 {
	return p.SuccessRate*1000 - p.Distance
}

// HotZones converts car parks with a known capacity into hot zones
// weighted by their share of free places.
func (c *Client) HotZones(ctx context.Context) ([]model.HotZone, error) {
	all, err := c.Facilities(ctx)
	if err != nil {
		return nil, err
	}
	return ToHotZones(all), nil
}

// ToHotZones converts car parks into hot zones.
func ToHotZones(parks []model.PublicParking) []model.HotZone {
	out := make([]model.HotZone, 0, len(parks))
	for _, p := range parks {
		if p.Capacity <= 0 {
			continue
		}
		out = append(out, model.HotZone{
			Latitude:    p.Latitude,
			Longitude:   p.Longitude,
			Weight:      p.SuccessRate,
			Radius:      model.DefaultZoneRadius,
			SuccessRate: p.SuccessRate,
			Source:      model.SourceOpenData,
		})
	}
	return out
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
