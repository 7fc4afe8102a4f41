// Package fetch provides the outbound HTTP client used by URL ingestion and
// the crawler: per-request timeouts, a response size cap, declarative
// authentication, and optional request rate limiting.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrel-ai/kestrel/internal/log"
)

const (
	// DefaultTimeout is the per-request timeout when none is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBody caps response bodies at 10 MB to bound memory per fetch.
	DefaultMaxBody int64 = 10 << 20
)

var (
	// ErrUnsupportedScheme is returned for non-http(s) URLs.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrResponseTooLarge is returned when a body exceeds the size cap.
	ErrResponseTooLarge = errors.New("response exceeds size limit")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.Status)
}

// Auth is a declarative authentication descriptor resolved into request
// headers before the request is sent.
type Auth struct {
	// Scheme is one of "bearer", "basic", "api-key", or "headers".
	// Empty means unauthenticated.
	Scheme string

	Token    string            // bearer
	Username string            // basic
	Password string            // basic
	Header   string            // api-key: header name
	Key      string            // api-key: header value
	Headers  map[string]string // headers: arbitrary header map
}

// Apply sets the descriptor's headers on req.
func (a Auth) Apply(req *http.Request) {
	switch a.Scheme {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case "basic":
		req.SetBasicAuth(a.Username, a.Password)
	case "api-key":
		if a.Header != "" {
			req.Header.Set(a.Header, a.Key)
		}
	case "headers":
		for k, v := range a.Headers {
			req.Header.Set(k, v)
		}
	}
}

// Response is a fetched resource.
type Response struct {
	Body        []byte
	ContentType string
	Status      int
}

// Options configures a single fetch.
type Options struct {
	Timeout time.Duration // zero means the client default
	Auth    Auth
}

// Client issues bounded HTTP GET requests. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	maxBody    int64
	limiter    *rate.Limiter // nil disables rate limiting
	logger     log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxBody sets the response size cap in bytes.
func WithMaxBody(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// WithRateLimit bounds outbound requests to r per second with the given
// burst. Used where the target meters calls.
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(r), burst) }
}

// New creates a fetch client. The underlying http.Client reuses connections
// across requests.
func New(logger log.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxBody:    DefaultMaxBody,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL and returns its body, bounded by the size cap.
// Non-2xx responses return a *StatusError alongside the response so callers
// can record status-specific failures.
func (c *Client) Get(ctx context.Context, rawURL string, opts Options) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing URL %q: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %q: %w", rawURL, err)
	}
	req.Header.Set("Accept", "*/*")
	opts.Auth.Apply(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if int64(len(body)) > c.maxBody {
		c.logger.Warn("response exceeds size cap", "url", rawURL, "max_bytes", c.maxBody)
		return nil, fmt.Errorf("%w: %s", ErrResponseTooLarge, rawURL)
	}

	result := &Response{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, &StatusError{URL: rawURL, Status: resp.StatusCode}
	}

	c.logger.Debug("fetched", "url", rawURL, "status", resp.StatusCode, "bytes", len(body))
	return result, nil
}

// IsHTML reports whether the response content type is an HTML page.
// An empty content type is given the benefit of the doubt.
func (r *Response) IsHTML() bool {
	if r.ContentType == "" {
		return true
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(r.ContentType, ";", 2)[0]))
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
