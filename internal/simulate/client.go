package simulate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// Outcome of a single submission.
type Outcome int

const (
	Recorded Outcome = iota
	Duplicate
	Failed
)

// ErrUnexpectedStatus is returned for responses the client cannot interpret.
var ErrUnexpectedStatus = errors.New("unexpected status")

const defaultRetryAfter = time.Second

// Client talks to the parking API.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{base: baseURL, http: &http.Client{Timeout: timeout}}
}

// Health checks /healthz.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// PostReport submits a parking report. Throttled requests are retried
// after the server's Retry-After delay until ctx ends; throttled counts
// the retries.
func (c *Client) PostReport(ctx context.Context, r Report) (o Outcome, throttled int, err error) {
	for {
		status, err := c.post(ctx, "/parking-event", r)
		switch {
		case err != nil:
			return Failed, throttled, err
		case status == http.StatusCreated:
			return Recorded, throttled, nil
		case status == http.StatusOK:
			return Duplicate, throttled, nil
		case status != http.StatusTooManyRequests:
			return Failed, throttled, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
		}
		throttled++
		if err := sleep(ctx, defaultRetryAfter); err != nil {
			return Failed, throttled, err
		}
	}
}

// PostSample submits a GPS sample, retrying while throttled.
func (c *Client) PostSample(ctx context.Context, s Sample) (throttled int, err error) {
	for {
		status, err := c.post(ctx, "/trajectory", s)
		switch {
		case err != nil:
			return throttled, err
		case status == http.StatusCreated:
			return throttled, nil
		case status != http.StatusTooManyRequests:
			return throttled, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
		}
		throttled++
		if err := sleep(ctx, defaultRetryAfter); err != nil {
			return throttled, err
		}
	}
}

// Refresh asks the service to rebuild its model now.
func (c *Client) Refresh(ctx context.Context) error {
	status, err := c.post(ctx, "/model/refresh", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	return nil
}

// FindParking queries /find-parking.
func (c *Client) FindParking(ctx context.Context, lat, lon, maxDistance float64, limit int) ([]RankedZone, error) {
	q := coords(lat, lon)
	q.Set("maxDistance", strconv.FormatFloat(maxDistance, 'f', -1, 64))
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Zones []RankedZone `json:"zones"`
	}
	if err := c.getJSON(ctx, "/find-parking?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out.Zones, nil
}

// Predict queries /predict for the current time.
func (c *Client) Predict(ctx context.Context, lat, lon float64) (Prediction, error) {
	var out Prediction
	err := c.getJSON(ctx, "/predict?"+coords(lat, lon).Encode(), &out)
	return out, err
}

// Stats queries /stats.
func (c *Client) Stats(ctx context.Context) (ServiceStats, error) {
	var out ServiceStats
	err := c.getJSON(ctx, "/stats", &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, body any) (int, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	resp, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: %d", ErrUnexpectedStatus, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func coords(lat, lon float64) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	return q
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
