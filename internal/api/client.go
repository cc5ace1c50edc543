// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

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
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// RequestError is a failed request: a non-2xx response or a transport failure.
// Status is 0 when no response was received.
type RequestError struct {
	Status  int
	Message string
	Cause   error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	if e.Status != 0 {
		fmt.Fprintf(&b, "HTTP %d: ", e.Status)
	}
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

// NotFoundError is returned when a lookup by id yields no record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Sentinel errors for easy checking.
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("invalid API key or unauthorized")
	ErrEndpointNotFound = errors.New("API endpoint not found, check the server URL")
	ErrNotConfigured    = errors.New("server URL not configured")
)

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Status
	}
	return 0
}

// IsUnauthorized checks if an error is an authentication failure.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound checks if an error means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultTimeout is the default timeout for API requests.
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	defaultUserAgent = "nanochat-desktop"
)

// ClientConfig holds configuration options for the API client.
type ClientConfig struct {
	// BaseURL is the backend root, e.g. https://nano-gpt.com
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout for a single request (default: 30s)
	Timeout time.Duration

	// RequestsPerSecond caps outgoing requests; 0 disables limiting.
	RequestsPerSecond float64

	// Burst is the limiter bucket size (default: 10)
	Burst int

	// UserAgent header value (default: nanochat-desktop)
	UserAgent string

	// Logger receives debug output for each request (default: no-op)
	Logger *zap.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:   DefaultTimeout,
		Burst:     10,
		UserAgent: defaultUserAgent,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the NanoChat backend.
//
// The Client is safe for concurrent use.
type Client struct {
	mu      sync.RWMutex
	baseURL string
	apiKey  string

	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	log        *zap.Logger
}

// NewClient creates a client. A nil config uses DefaultConfig. The caller's
// config is copied, never modified.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	config := *cfg

	// Fill in defaults for any zero values
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Burst == 0 {
		config.Burst = 10
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	c := &Client{
		baseURL: strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		apiKey:  strings.TrimSpace(config.APIKey),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		userAgent: config.UserAgent,
		log:       config.Logger.Named("api"),
	}
	if config.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}
	return c
}

// SetCredentials swaps the server URL and API key, e.g. after a config reload.
func (c *Client) SetCredentials(baseURL, apiKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	c.apiKey = strings.TrimSpace(apiKey)
}

// BaseURL returns the configured server URL.
func (c *Client) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// IsConfigured returns true if a server URL and API key are set.
func (c *Client) IsConfigured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL != "" && c.apiKey != ""
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends one request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return &RequestError{Status: resp.StatusCode, Message: "failed to read response", Cause: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &RequestError{Status: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// send builds and executes a request. The caller owns the response body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, error) {
	c.mu.RLock()
	baseURL, apiKey := c.baseURL, c.apiKey
	c.mu.RUnlock()

	if baseURL == "" {
		return nil, &RequestError{Message: "cannot send request", Cause: ErrNotConfigured}
	}

	target := baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Message: "failed to marshal request", Cause: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &RequestError{Message: "failed to create request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &RequestError{Message: "rate limiter", Cause: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return nil, &RequestError{Message: "request failed", Cause: err}
	}

	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)))
	return resp, nil
}

// decodeError maps a non-2xx response to a RequestError.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	msg := ""
	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err == nil {
		msg = body.Message
		if msg == "" {
			msg = body.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" || len(msg) > 512 {
		msg = http.StatusText(resp.StatusCode)
	}

	return &RequestError{Status: resp.StatusCode, Message: msg}
}
