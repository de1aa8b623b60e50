// Package connectors fetches pull-request change sets from code hosts.
//
// Each host gets its own subpackage implementing SCM; this package holds the
// shared plumbing: rate limiting, HTTP client management and configuration.
package connectors

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/rediverio/reviewd/pkg/review"
)

// SCM retrieves pull-request metadata and changed files from a code host.
type SCM interface {
	// Name returns the host identifier, e.g. "github" or "gitlab".
	Name() string

	// GetPullRequest fetches the pull request and its full file list.
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*review.PullRequest, error)

	// Close releases the connector. Tokens die with it.
	Close() error
}

// Config holds the settings shared by all host connectors.
type Config struct {
	// Token authenticates against the host API. Tokens are held for the
	// lifetime of the connector only and never persisted.
	Token string

	// BaseURL overrides the host's default API endpoint (self-hosted
	// instances, tests).
	BaseURL string

	// RateLimit is the request budget in requests per hour. Zero disables
	// client-side rate limiting.
	RateLimit int

	// BurstLimit is the rate limiter burst size. Defaults to 10.
	BurstLimit int

	// Timeout bounds each API request. Defaults to 30 seconds.
	Timeout time.Duration
}

// BaseConnector carries the common connector state. Host connectors embed it.
type BaseConnector struct {
	name       string
	baseURL    string
	httpClient *http.Client

	rateLimiter *rate.Limiter

	mu        sync.RWMutex
	connected bool
}

// NewBaseConnector builds the shared connector plumbing.
func NewBaseConnector(name string, cfg *Config) *BaseConnector {
	if cfg == nil {
		cfg = &Config{}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	bc := &BaseConnector{
		name:    name,
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}

	if cfg.RateLimit > 0 {
		// The host expresses budgets per hour; the limiter wants per second.
		rps := float64(cfg.RateLimit) / 3600.0
		burst := cfg.BurstLimit
		if burst <= 0 {
			burst = 10
		}
		bc.rateLimiter = rate.NewLimiter(rate.Limit(rps), burst)
	}

	return bc
}

// Name returns the connector name.
func (c *BaseConnector) Name() string {
	return c.name
}

// BaseURL returns the configured API endpoint, possibly empty.
func (c *BaseConnector) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the configured HTTP client.
func (c *BaseConnector) HTTPClient() *http.Client {
	return c.httpClient
}

// Connect marks the connector ready. Host connectors override this to
// verify credentials.
func (c *BaseConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

// Close releases the connector.
func (c *BaseConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	return nil
}

// IsConnected reports whether Connect has been called.
func (c *BaseConnector) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// RateLimited reports whether client-side rate limiting is active.
func (c *BaseConnector) RateLimited() bool {
	return c.rateLimiter != nil
}

// WaitForRateLimit blocks until the limiter admits the next request.
func (c *BaseConnector) WaitForRateLimit(ctx context.Context) error {
	if c.rateLimiter == nil {
		return nil
	}
	return c.rateLimiter.Wait(ctx)
}
