package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultMaxBodySize bounds how much of a response body is read.
	DefaultMaxBodySize = 8 * 1024 * 1024

	// defaultTimeout is used when no HTTP client is supplied.
	defaultTimeout = 30 * time.Second
)

// Transport performs one JSON request against the backend.
// Implementations return a *TransportError for network failures and non-2xx
// responses. The returned bytes are the raw response body.
type Transport interface {
	FetchJSON(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error)
}

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	baseURL     *url.URL
	client      *http.Client
	userAgent   string
	headers     map[string]string
	maxBodySize int64
	logger      *slog.Logger
}

// TransportOption configures an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithHTTPClient sets the HTTP client used for requests. Use this to route
// requests through a proxy.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *HTTPTransport) {
		if client != nil {
			t.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) TransportOption {
	return func(t *HTTPTransport) {
		t.userAgent = userAgent
	}
}

// WithHeaders adds custom headers to every request.
func WithHeaders(headers map[string]string) TransportOption {
	return func(t *HTTPTransport) {
		t.headers = make(map[string]string, len(headers))
		for k, v := range headers {
			t.headers[k] = v
		}
	}
}

// WithMaxBodySize limits the response size read per request.
func WithMaxBodySize(n int64) TransportOption {
	return func(t *HTTPTransport) {
		if n > 0 {
			t.maxBodySize = n
		}
	}
}

// WithTransportLogger sets the logger for request tracing.
func WithTransportLogger(logger *slog.Logger) TransportOption {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// NewHTTPTransport creates a transport for the backend rooted at baseURL,
// for example "http://localhost:4000/api".
func NewHTTPTransport(baseURL string, opts ...TransportOption) (*HTTPTransport, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	t := &HTTPTransport{
		baseURL:     u,
		client:      &http.Client{Timeout: defaultTimeout},
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// BaseURL returns the backend root the transport resolves paths against.
func (t *HTTPTransport) BaseURL() string {
	return t.baseURL.String()
}

// FetchJSON implements Transport.
func (t *HTTPTransport) FetchJSON(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	target := t.resolve(path, params)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: fmt.Errorf("encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize+1))
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, StatusCode: 0, Err: fmt.Errorf("read body: %w", err)}
	}

	t.logger.Debug("api request",
		"method", method,
		"url", target,
		"status", resp.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	if int64(len(data)) > t.maxBodySize {
		return nil, &TransportError{Method: method, Path: path, Err: ErrResponseTooLarge}
	}
	return data, nil
}

// resolve joins path onto the base URL and attaches the query parameters.
// path is expected in escaped form; segments built from ids go through url.PathEscape.
func (t *HTTPTransport) resolve(path string, params url.Values) string {
	u := *t.baseURL
	joined := strings.TrimRight(t.baseURL.EscapedPath(), "/") + "/" + strings.TrimLeft(path, "/")
	if unescaped, err := url.PathUnescape(joined); err == nil {
		u.Path = unescaped
		u.RawPath = joined
	} else {
		u.Path = joined
		u.RawPath = ""
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	} else {
		u.RawQuery = ""
	}
	return u.String()
}
