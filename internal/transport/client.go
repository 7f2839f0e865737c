// Package transport implements the HTTP layer shared by all endpoint
// bindings: JSON encoding, API-key auth, debug logging, interceptors,
// and transient-failure retries via retryablehttp. Retry policy lives
// here, wrapped around the remote-call boundary, so the poller and
// iterator state machines above it stay deterministic.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/opskit/internal/constants"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// Request is one HTTP request against the service.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string
}

// Response is the decoded-enough answer: status, headers, raw body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Client is the HTTP client used by endpoint bindings.
type Client struct {
	baseURL      string
	apiKey       string
	userAgent    string
	debug        bool
	logger       opskit.Logger
	interceptors *opskit.InterceptorChain
	retry        *retryablehttp.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets a static Bearer token sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger opskit.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug enables request/response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithRetryConfig tunes the retry behavior for transient failures.
func WithRetryConfig(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.retry.RetryMax = retryMax
		c.retry.RetryWaitMin = waitMin
		c.retry.RetryWaitMax = waitMax
	}
}

// WithInterceptors installs an interceptor chain executed around every
// request.
func WithInterceptors(chain *opskit.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a transport client for the given base URL.
func NewClient(baseURL string, opts ...Option) *Client {
	retry := retryablehttp.NewClient()
	retry.RetryMax = constants.DefaultRetryMax
	retry.RetryWaitMin = constants.DefaultRetryWaitMin
	retry.RetryWaitMax = constants.DefaultRetryWaitMax
	retry.HTTPClient.Timeout = constants.DefaultHTTPTimeout
	retry.Logger = nil

	client := &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: "opskit-go",
		retry:     retry,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Do executes one request. Responses with status >= 400 return both the
// response and the parsed service error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var bodyBytes []byte

	if req.Body != nil {
		var err error

		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	fullURL := c.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, fullURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	interceptReq := &opskit.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: httpReq.Header,
		Body:    bodyBytes,
	}

	if c.interceptors != nil {
		err := c.interceptors.ExecuteRequestInterceptors(ctx, interceptReq)
		if err != nil {
			return nil, err
		}
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    fullURL,
		})
	}

	httpResp, err := c.retry.Do(httpReq)
	if err != nil {
		if c.interceptors != nil {
			_ = c.interceptors.ExecuteResponseInterceptors(ctx, interceptReq, &opskit.Response{Error: err})
		}

		return nil, fmt.Errorf("executing request: %w", err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       respBody,
	}

	if c.debug && c.logger != nil {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      req.Method,
			"url":         fullURL,
			"status_code": resp.StatusCode,
		})
	}

	var respErr error
	if resp.StatusCode >= 400 {
		respErr = parseAPIError(resp)
	}

	if c.interceptors != nil {
		_ = c.interceptors.ExecuteResponseInterceptors(ctx, interceptReq, &opskit.Response{
			StatusCode: resp.StatusCode,
			Headers:    resp.Headers,
			Body:       resp.Body,
			Error:      respErr,
		})
	}

	if respErr != nil {
		return resp, respErr
	}

	return resp, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// parseAPIError turns an error response body into an *opskit.APIError,
// falling back to the raw status when the body is not the service's
// error shape.
func parseAPIError(resp *Response) error {
	var apiErr opskit.APIError

	err := json.Unmarshal(resp.Body, &apiErr)
	if err == nil && (apiErr.Title != "" || apiErr.Detail != "") {
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}

		return &apiErr
	}

	return &opskit.APIError{
		Code:   resp.StatusCode,
		Title:  http.StatusText(resp.StatusCode),
		Detail: strings.TrimSpace(string(resp.Body)),
	}
}
