package client

import (
	"log/slog"
	"net/http"

	"github.com/xraph/stepwise/backoff"
)

// Option configures a Client.
type Option func(*Client)

// WithOwner sends ownerID in the owner header of every request.
func WithOwner(ownerID string) Option {
	return func(c *Client) { c.owner = ownerID }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry retries reads up to maxRetries times, waiting s between attempts.
func WithRetry(maxRetries int, s backoff.Strategy) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if s != nil {
			c.backoff = s
		}
	}
}
