package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hirelocal/dispatch/internal/pkg/circuitbreaker"
	"github.com/hirelocal/dispatch/internal/pkg/logger"
	"github.com/hirelocal/dispatch/internal/pkg/retry"
)

// Client is a generic HTTP client for communicating with the gateway
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new HTTP client
func NewClient(serviceURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		BaseURL: serviceURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do executes the request with the client's timeout. Best-effort lookups
// (position hints, route computation) use this plain path so a failure falls
// through quickly instead of riding the retry and breaker machinery.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.HTTPClient.Do(req)
}

// EnhancedClient wraps http.Client with retry and circuit breaker functionality
type EnhancedClient struct {
	client         *http.Client
	retrier        *retry.Retrier
	circuitManager *circuitbreaker.Manager
	logger         *logger.ZapLogger
	defaultTimeout time.Duration
}

// NewEnhancedClient creates a new enhanced HTTP client
func NewEnhancedClient(log *logger.ZapLogger, timeout time.Duration) *EnhancedClient {
	return &EnhancedClient{
		client: &http.Client{
			Timeout: timeout,
		},
		retrier:        retry.NewWithDefaults(log),
		circuitManager: circuitbreaker.NewManager(log),
		logger:         log,
		defaultTimeout: timeout,
	}
}

// Do executes an HTTP request with retry and circuit breaker protection
func (c *EnhancedClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Use circuit breaker based on the host
	serviceName := req.URL.Host
	if serviceName == "" {
		serviceName = "unknown"
	}

	var resp *http.Response
	var err error

	err = c.circuitManager.Execute(ctx, serviceName, func(ctx context.Context) error {
		return c.retrier.Execute(ctx, func(ctx context.Context) error {
			resp, err = c.client.Do(req.WithContext(ctx))
			if err != nil {
				return err
			}

			// Consider 5xx status codes as failures for retry
			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return &HTTPError{
					StatusCode: resp.StatusCode,
					Message:    "Server error",
				}
			}

			return nil
		})
	})

	return resp, err
}

// DoOnce executes an HTTP request exactly once, with no retry and no circuit
// breaker. Decision commits (accept/reject) use this path: retrying a stale
// decision after the offer window closed would be incorrect.
func (c *EnhancedClient) DoOnce(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    "Server error",
		}
	}
	return resp, nil
}

// PostJSON marshals body, POSTs it to url and decodes the JSON response into
// out when out is non-nil.
func (c *EnhancedClient) PostJSON(ctx context.Context, url string, body, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, url, body, out, false)
}

// PostJSONOnce is PostJSON without retry protection.
func (c *EnhancedClient) PostJSONOnce(ctx context.Context, url string, body, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, url, body, out, true)
}

// PatchJSON marshals body, PATCHes it to url and decodes the JSON response.
func (c *EnhancedClient) PatchJSON(ctx context.Context, url string, body, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPatch, url, body, out, false)
}

// GetJSON GETs url and decodes the JSON response into out.
func (c *EnhancedClient) GetJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *EnhancedClient) sendJSON(ctx context.Context, method, url string, body, out interface{}, once bool) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	if once {
		resp, err = c.DoOnce(ctx, req)
	} else {
		resp, err = c.Do(ctx, req)
	}
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// HTTPError represents an HTTP error
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}
