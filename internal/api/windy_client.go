package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"velowind/internal/models"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.windy.com/api"
	DefaultModel   = "gfs"
	DefaultTimeout = 10 * time.Second

	// SurfaceLevel and AltitudeLevel are the upstream level identifiers
	SurfaceLevel  = "surface"
	AltitudeLevel = "850h"
)

var (
	ErrMissingAPIKey  = errors.New("missing API key")
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	ErrDecode         = errors.New("failed to decode response")
)

// windParameters are requested on every call
var windParameters = []string{"wind", "windGust"}

// RequestParams describes one upstream query
type RequestParams struct {
	Latitude   float64
	Longitude  float64
	Model      string
	Parameters []string
	Levels     []string
	Units      string
	Hours      int // forecast only
}

// WindyClient is a client for the point and forecast wind endpoints
type WindyClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
}

// ClientOption configures a WindyClient
type ClientOption func(*WindyClient)

// WithBaseURL points the client at another upstream, e.g. a test server
func WithBaseURL(baseURL string) ClientOption {
	return func(c *WindyClient) {
		c.baseURL = baseURL
	}
}

// WithModel selects the forecast model
func WithModel(model string) ClientOption {
	return func(c *WindyClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout bounds every request; a timeout is reported as a request failure
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *WindyClient) {
		if timeout > 0 {
			c.client.Timeout = timeout
		}
	}
}

// WithRateLimit caps outgoing requests per second
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *WindyClient) {
		if rps > 0 && burst > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *WindyClient) {
		c.client = client
	}
}

// NewWindyClient creates a new wind API client
func NewWindyClient(apiKey string, opts ...ClientOption) *WindyClient {
	c := &WindyClient{
		client:  &http.Client{Timeout: DefaultTimeout},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   DefaultModel,
		limiter: rate.NewLimiter(rate.Inf, 0),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "windy",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	return c
}

// BuildURL builds the request URL for endpoint ("point" or "forecast")
func (c *WindyClient) BuildURL(endpoint string, p RequestParams) string {
	if p.Model == "" {
		p.Model = c.model
	}
	if p.Units == "" {
		p.Units = "metric"
	}
	if len(p.Parameters) == 0 {
		p.Parameters = windParameters
	}
	if len(p.Levels) == 0 {
		p.Levels = []string{SurfaceLevel}
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.4f", p.Latitude))
	q.Set("lon", fmt.Sprintf("%.4f", p.Longitude))
	q.Set("model", p.Model)
	q.Set("units", p.Units)
	q.Set("key", c.apiKey)
	for _, param := range p.Parameters {
		q.Add("parameters", param)
	}
	for _, level := range p.Levels {
		q.Add("levels", level)
	}
	if p.Hours > 0 {
		q.Set("hours", fmt.Sprintf("%d", p.Hours))
	}

	return fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, q.Encode())
}

// GetPoint fetches the current wind at a point for the given level
func (c *WindyClient) GetPoint(ctx context.Context, lat, lon float64, level string) (*models.PointResponse, error) {
	params := RequestParams{Latitude: lat, Longitude: lon}
	if level != "" {
		params.Levels = []string{level}
	}

	var point models.PointResponse
	if err := c.get(ctx, c.BuildURL("point", params), &point); err != nil {
		return nil, fmt.Errorf("GetPoint: %w", err)
	}
	return &point, nil
}

// GetForecast fetches an hourly surface wind series covering hours
func (c *WindyClient) GetForecast(ctx context.Context, lat, lon float64, hours int) (*models.ForecastResponse, error) {
	if hours <= 0 {
		return nil, fmt.Errorf("GetForecast: hours must be positive, got %d", hours)
	}

	params := RequestParams{
		Latitude:   lat,
		Longitude:  lon,
		Parameters: []string{"wind", "windGust", "temp"},
		Hours:      hours,
	}

	var forecast models.ForecastResponse
	if err := c.get(ctx, c.BuildURL("forecast", params), &forecast); err != nil {
		return nil, fmt.Errorf("GetForecast: %w", err)
	}
	return &forecast, nil
}

func (c *WindyClient) get(ctx context.Context, requestURL string, out interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait canceled: %w", err)
	}

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch wind data: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: status %d, body: %s", ErrUpstreamStatus, resp.StatusCode, string(data))
		}
		return data, nil
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
