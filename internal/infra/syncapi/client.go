// Package syncapi is the HTTP client for the two backend collaborators the
// core talks to: the event aggregation endpoint and the secure-URL exchange
// endpoint.
package syncapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/soundcrate/playercore/internal/domain/tracking"
	"github.com/soundcrate/playercore/internal/version"
)

const (
	// DefaultTimeout for HTTP requests.
	DefaultTimeout = 30 * time.Second

	// DefaultBreakerCooldown is how long the sync breaker stays open after
	// tripping before a probe request is allowed through.
	DefaultBreakerCooldown = time.Minute

	// DefaultBreakerFailures is the consecutive-failure count that trips
	// the sync breaker.
	DefaultBreakerFailures = 5
)

// Client talks to the playercore backend API. The event-sync path is
// protected by a circuit breaker: once the endpoint fails repeatedly,
// further batches fail fast instead of piling timeouts onto a dead backend.
// A fast failure is still a batch failure; the journal keeps the queue.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[int]
}

// Option is a functional option for configuring the client.
type Option func(*Client)

// WithUserAgent sets a custom User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates an API client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   baseURL,
		userAgent: version.UserAgent(),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:    "event-sync",
		Timeout: DefaultBreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= DefaultBreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Sync circuit breaker state changed")
		},
	})

	return c
}

// pushRequest is the event sync request body.
type pushRequest struct {
	Events []tracking.TrackEvent `json:"events"`
}

// pushResponse is the event sync response body.
type pushResponse struct {
	Processed int `json:"processed"`
}

// PushEvents sends one batch of events to the aggregation endpoint and
// returns the number of events the server reports processed. Any transport
// error or non-2xx status is returned as an error; the caller treats the
// batch as failed.
func (c *Client) PushEvents(ctx context.Context, events []tracking.TrackEvent) (int, error) {
	return c.breaker.Execute(func() (int, error) {
		return c.pushEvents(ctx, events)
	})
}

func (c *Client) pushEvents(ctx context.Context, events []tracking.TrackEvent) (int, error) {
	body, err := json.Marshal(pushRequest{Events: events})
	if err != nil {
		return 0, fmt.Errorf("marshal batch: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/tracking/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("push events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("push events: unexpected status %d", resp.StatusCode)
	}

	var parsed pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode sync response: %w", err)
	}

	log.Debug().
		Int("sent", len(events)).
		Int("processed", parsed.Processed).
		Msg("Pushed event batch")
	return parsed.Processed, nil
}

// signResponse is the secure-URL exchange response body.
type signResponse struct {
	URL string `json:"url"`
}

// SignURL exchanges a storage object key for a freshly signed, time-limited
// playable URL.
func (c *Client) SignURL(ctx context.Context, objectKey string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/media/sign?key=%s", c.baseURL, url.QueryEscape(objectKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("sign url: unexpected status %d", resp.StatusCode)
	}

	var parsed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode sign response: %w", err)
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("sign url: empty url in response")
	}

	return parsed.URL, nil
}
