package spaceport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// httpTransport handles HTTP communication with the Spaceport API.
// It wraps a tuned net/http client with circuit breaking, authentication
// and observability. Every REST call in the SDK goes through its do method.
//
// Plain REST calls are never retried. A failed request surfaces immediately
// so the caller can decide how to proceed; the optional circuit breaker only
// short-circuits calls once the API has already been failing.
type httpTransport struct {
	// client is the underlying HTTP client
	client *http.Client
	// config holds the SDK configuration
	config *Config
	// baseURL is the parsed base URL for the API
	baseURL *url.URL
	// circuitBreaker provides fault tolerance
	circuitBreaker CircuitBreaker
	// observer for monitoring operations
	observer Observer
}

// newHTTPTransport creates a new HTTP transport
func newHTTPTransport(config *Config) (*httpTransport, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	baseURL, err := url.Parse(config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	// Validate that it's a proper URL with scheme and host
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("endpoint must have a scheme and host")
	}

	// Configure the HTTP transport
	transport := &http.Transport{
		MaxIdleConns:        config.TransportConfig.MaxIdleConns,
		MaxConnsPerHost:     config.TransportConfig.MaxConnsPerHost,
		IdleConnTimeout:     config.TransportConfig.IdleConnTimeout,
		DisableCompression:  false,
		DisableKeepAlives:   false,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	// Create circuit breaker if configured
	var circuitBreaker CircuitBreaker
	if config.CircuitBreakerConfig != nil {
		cb := NewCircuitBreaker(*config.CircuitBreakerConfig)
		// Wrap with observer if configured
		if config.Observer != nil {
			circuitBreaker = newObservedCircuitBreaker(cb, config.Observer)
		} else {
			circuitBreaker = cb
		}
	} else {
		circuitBreaker = NewNoopCircuitBreaker()
	}

	return &httpTransport{
		client:         client,
		config:         config,
		baseURL:        baseURL,
		circuitBreaker: circuitBreaker,
		observer:       config.Observer,
	}, nil
}

// do executes an HTTP request with a JSON body
func (t *httpTransport) do(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	return t.doWithHeaders(ctx, method, path, body, result, nil)
}

type requestScopeKey struct{}

// scopeRequest derives a context unique to one request. Observers correlate
// OnRequestStart with OnRequestEnd by context identity, so each request
// needs its own even when a caller reuses one context across concurrent
// calls.
func scopeRequest(ctx context.Context) context.Context {
	return context.WithValue(ctx, requestScopeKey{}, struct{}{})
}

// doWithHeaders executes an HTTP request with additional per-request headers
func (t *httpTransport) doWithHeaders(ctx context.Context, method, path string, body interface{}, result interface{}, headers map[string]string) error {
	// Notify observer of request start
	if t.observer != nil {
		ctx = scopeRequest(ctx)
		t.observer.OnRequestStart(ctx, method, path)
	}

	start := time.Now()

	// Execute a single attempt behind the circuit breaker
	finalErr := t.circuitBreaker.Execute(func() error {
		return t.performHTTPRequest(ctx, method, path, body, result, headers)
	})

	// Notify observer of request end
	if t.observer != nil {
		duration := time.Since(start)
		t.observer.OnRequestEnd(ctx, method, path, duration, finalErr)
	}

	return finalErr
}

// performHTTPRequest performs a single HTTP request
func (t *httpTransport) performHTTPRequest(ctx context.Context, method, path string, body interface{}, result interface{}, headers map[string]string) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := t.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return t.send(req, method, path, result)
}

// postMultipart performs a POST request with a multipart/form-data body.
// Form fields are written before the file part so servers can read
// metadata without buffering the file.
func (t *httpTransport) postMultipart(ctx context.Context, path string, fields map[string]string, fileField, fileName string, file io.Reader, result interface{}) error {
	if t.observer != nil {
		ctx = scopeRequest(ctx)
		t.observer.OnRequestStart(ctx, http.MethodPost, path)
	}

	start := time.Now()

	finalErr := t.circuitBreaker.Execute(func() error {
		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)

		for key, value := range fields {
			if err := writer.WriteField(key, value); err != nil {
				return fmt.Errorf("failed to write form field %q: %w", key, err)
			}
		}

		part, err := writer.CreateFormFile(fileField, fileName)
		if err != nil {
			return fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(part, file); err != nil {
			return fmt.Errorf("failed to copy file contents: %w", err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf("failed to finalize multipart body: %w", err)
		}

		req, err := t.newRequest(ctx, http.MethodPost, path, &buf)
		if err != nil {
			return err
		}

		req.Header.Set("Content-Type", writer.FormDataContentType())

		return t.send(req, http.MethodPost, path, result)
	})

	if t.observer != nil {
		duration := time.Since(start)
		t.observer.OnRequestEnd(ctx, http.MethodPost, path, duration, finalErr)
	}

	return finalErr
}

// newRequest creates an HTTP request with the standard SDK headers applied.
// The Authorization header is resolved from the configured TokenSource on
// every call so rotated credentials take effect without rebuilding the client.
func (t *httpTransport) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	// Parse the reference so pre-escaped path segments and query strings
	// survive URL resolution untouched.
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path: %w", err)
	}
	fullURL := t.baseURL.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	if t.config.Project != "" {
		req.Header.Set("X-Spaceport-Project", t.config.Project)
	}

	if t.config.TokenSource != nil {
		token, err := t.config.TokenSource.Token()
		if err != nil {
			return nil, NewError(ErrorTypeAuth, "failed to resolve access token", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	// Add custom headers
	for key, value := range t.config.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// send executes the request and decodes the response into result
func (t *httpTransport) send(req *http.Request, method, path string, result interface{}) error {
	resp, err := t.client.Do(req)
	if err != nil {
		netErr := &NetworkError{Op: method + " " + path, Err: err}
		return netErr.ToError()
	}

	// Read response body
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		netErr := &NetworkError{Op: "reading response", Err: err}
		return netErr.ToError()
	}

	// Check status code
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Success - parse result if needed
		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	// Handle error response
	apiErr := parseAPIError(resp.StatusCode, respBody)

	// Convert to enhanced error
	if apiErrTyped, ok := apiErr.(*APIError); ok {
		enhancedErr := apiErrTyped.ToError()
		// Add request context
		enhancedErr.WithContext(&ErrorContext{
			URL:    req.URL.String(),
			Method: method,
		})
		// Extract request ID from headers if available
		if reqID := resp.Header.Get("X-Request-Id"); reqID != "" {
			enhancedErr.RequestID = reqID
		}
		return enhancedErr
	}

	return apiErr
}

// get performs a GET request
func (t *httpTransport) get(ctx context.Context, path string, result interface{}) error {
	return t.do(ctx, http.MethodGet, path, nil, result)
}

// post performs a POST request
func (t *httpTransport) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return t.do(ctx, http.MethodPost, path, body, result)
}

// patch performs a PATCH request
func (t *httpTransport) patch(ctx context.Context, path string, body interface{}, result interface{}) error {
	return t.do(ctx, http.MethodPatch, path, body, result)
}

// delete performs a DELETE request
func (t *httpTransport) delete(ctx context.Context, path string) error {
	return t.do(ctx, http.MethodDelete, path, nil, nil)
}

// close closes the transport
func (t *httpTransport) close() error {
	t.client.CloseIdleConnections()
	return nil
}

// buildPath builds a URL path with proper escaping for path parameters.
// It replaces placeholders like {0}, {1}, etc. with the provided arguments,
// ensuring all special characters are properly URL-encoded.
//
// This matters for identifiers that may contain special characters like
// spaces, slashes, or other URL-unsafe characters.
//
// Example:
//
//	path := buildPath("/v1/databases/{0}/collections/{1}/documents", "main", "articles/drafts")
//	// Result: "/v1/databases/main/collections/articles%2Fdrafts/documents"
//
// Parameters:
//   - pattern: Path pattern with {0}, {1}, etc. placeholders
//   - args: Values to substitute for the placeholders
//
// The function uses QueryEscape for encoding, then replaces '+' with '%20'
// to ensure proper space encoding in URL paths (as '+' is only valid in
// query strings, not paths).
func buildPath(pattern string, args ...string) string {
	path := pattern
	for i, arg := range args {
		placeholder := fmt.Sprintf("{%d}", i)
		// Use QueryEscape to encode all special characters including =, &, etc.
		// Then manually replace + with %20 for proper space encoding in paths
		escaped := url.QueryEscape(arg)
		escaped = strings.Replace(escaped, "+", "%20", -1)
		path = strings.Replace(path, placeholder, escaped, 1)
	}
	return path
}
