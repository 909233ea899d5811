// Package provider is the HTTP client for the creator analytics provider.
// Every call goes through a shared rate limiter and circuit breaker and
// carries its own timeout.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/creator-sync/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.insightiq.ai/v1"
	defaultTimeout = 30 * time.Second

	// maxResponseBytes bounds any response body, export downloads included.
	maxResponseBytes = 64 << 20
	maxErrorBody     = 512
)

// Config holds provider client configuration
type Config struct {
	BaseURL    string
	APIKey     string
	WebhookURL string
	Timeout    time.Duration

	// RateLimit is requests per second; zero disables limiting.
	RateLimit float64
	RateBurst int

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
}

// Client talks to the provider API
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *slog.Logger
}

// NewClient creates a new provider client
func NewClient(config *Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	c := &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}

	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	c.breaker = newBreaker(config, logger)
	return c
}

func newBreaker(config *Config, logger *slog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	const name = "provider-api"

	minRequests := config.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 10
	}
	ratio := config.BreakerFailureRatio
	if ratio <= 0 {
		ratio = 0.6
	}
	maxRequests := config.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 3
	}
	interval := config.BreakerInterval
	if interval <= 0 {
		interval = time.Minute
	}
	timeout := config.BreakerTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Provider circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		// Rejections caused by the request itself say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// do executes one provider call through the breaker and returns the raw body.
func (c *Client) do(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	start := time.Now()
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.send(ctx, op, method, path, body)
	})
	metrics.RecordProviderRequest(op, err, time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Op: op, Transient: true, Err: err}
		}
		return nil, err
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Op: op, Transient: true, Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Authorization", "Basic "+c.config.APIKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Transient: true, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), maxErrorBody),
			Transient:  resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	return data, nil
}

func (c *Client) decode(op string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
