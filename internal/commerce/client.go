// Package commerce implements the HTTP client for the hosted commerce
// platform that owns catalog, pricing, and order state.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 20 * time.Second

// APIError describes a non-2xx response from the commerce platform.
type APIError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("commerce: upstream returned status %d: %s", e.Status, e.Body)
}

// IsBadRequest reports whether the upstream rejected the request payload.
func (e *APIError) IsBadRequest() bool {
	return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
}

// IsUnauthorized reports whether the upstream rejected our credentials.
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Config collects the settings required to construct a Client.
type Config struct {
	BaseURL     string
	StoreID     string
	SecretToken string
	PublicToken string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client issues authenticated requests against a single store on the
// commerce platform.
type Client struct {
	baseURL     string
	storeID     string
	secretToken string
	publicToken string
	http        *http.Client
	logger      *zap.Logger
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("commerce: base URL is required")
	}
	if strings.TrimSpace(cfg.StoreID) == "" {
		return nil, errors.New("commerce: store ID is required")
	}
	if strings.TrimSpace(cfg.SecretToken) == "" {
		return nil, errors.New("commerce: secret token is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		storeID:     cfg.StoreID,
		secretToken: cfg.SecretToken,
		publicToken: cfg.PublicToken,
		http:        httpClient,
		logger:      logger,
	}, nil
}

// StoreID returns the identifier of the store this client targets.
func (c *Client) StoreID() string {
	return c.storeID
}

// PostOptions tunes a single Post call.
type PostOptions struct {
	// UsePublicToken selects the public credential for endpoints that must
	// not see admin scope. Falls back to the secret token when no public
	// token is configured.
	UsePublicToken bool
}

// Get issues a GET request against the store-scoped endpoint and returns the
// raw response body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, endpoint, params, nil, c.secretToken)
}

// Post issues a POST request with a JSON body against the store-scoped
// endpoint and returns the raw response body.
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts PostOptions) ([]byte, error) {
	token := c.secretToken
	if opts.UsePublicToken {
		if c.publicToken != "" {
			token = c.publicToken
		} else {
			c.logger.Warn("public token requested but not configured, using secret token",
				zap.String("endpoint", endpoint))
		}
	}
	return c.do(ctx, http.MethodPost, endpoint, nil, body, token)
}

// Put issues a PUT request with a JSON body against the store-scoped
// endpoint and returns the raw response body.
func (c *Client) Put(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.do(ctx, http.MethodPut, endpoint, nil, body, c.secretToken)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body any, token string) ([]byte, error) {
	target := fmt.Sprintf("%s/%s/%s", c.baseURL, c.storeID, strings.TrimLeft(endpoint, "/"))
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("commerce: encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commerce: %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("commerce: read response body: %w", err)
	}

	c.logger.Debug("commerce request completed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &APIError{Status: resp.StatusCode, Body: truncate(string(payload), 512)}
	}

	return payload, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
