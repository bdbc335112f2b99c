package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rickgao/nft-market/internal/auth"
	"github.com/rickgao/nft-market/internal/model"
)

// Client provides access to the marketplace REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	signer *auth.Credentials
	caller model.Address

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration for reads.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithSigner signs every request with creds.
func WithSigner(creds *auth.Credentials) ClientOption {
	return func(c *Client) {
		c.signer = creds
	}
}

// WithCaller sends the address header without a signature, for servers
// running with authentication disabled.
func WithCaller(addr model.Address) ClientOption {
	return func(c *Client) {
		c.caller = addr
	}
}
