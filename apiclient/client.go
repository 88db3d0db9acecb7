// Package apiclient wraps the dashboard REST endpoints which sit outside authentication:
// campaigns, content, billing and integrations. Every call is a single authenticated
// request returning the raw JSON body.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/contentai-pro/dashboard-core/internal"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger().Output(zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: "15:04:05",
})

// TokenSource supplies the bearer token for each request. An empty token sends the
// request unauthenticated.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to a TokenSource.
type TokenFunc func() string

func (f TokenFunc) Token() string { return f() }

type Options struct {
	Timeout time.Duration
	// Rate is the sustained requests per second, Burst the bucket size.
	Rate  float64
	Burst int
}

// Client is safe for concurrent use.
type Client struct {
	HTTP    *http.Client
	BaseURL internal.BackendURL
	tokens  TokenSource
	limiter *rate.Limiter
}

func New(apiURL string, tokens TokenSource, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	return &Client{
		HTTP: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		BaseURL: internal.BackendURL{Raw: apiURL},
		tokens:  tokens,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}
}

// do sends one request. A non-2xx response is returned as an *internal.HandlerError
// carrying the server's message, or fallback if the body has none.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody interface{}, fallback string) ([]byte, error) {
	ctx, span := internal.StartSpan(ctx, "apiclient."+method)
	defer span.End()
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", fallback, err)
	}
	var r io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", fallback, err)
		}
		r = bytes.NewReader(b)
	}
	target := c.BaseURL.Join(path)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, r)
	if err != nil {
		return nil, fmt.Errorf("%s: NewRequest failed: %w", fallback, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		span.RecordError(err)
		logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return nil, fmt.Errorf("%s: %w", fallback, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", fallback, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		herr := &internal.HandlerError{
			StatusCode: res.StatusCode,
			Err:        errors.New(internal.ErrorMessage(body, fallback)),
		}
		span.RecordError(herr)
		return nil, herr
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, fallback string) (json.RawMessage, error) {
	return c.do(ctx, "GET", path, query, nil, fallback)
}

func (c *Client) post(ctx context.Context, path string, reqBody interface{}, fallback string) (json.RawMessage, error) {
	return c.do(ctx, "POST", path, nil, reqBody, fallback)
}

func (c *Client) put(ctx context.Context, path string, reqBody interface{}, fallback string) (json.RawMessage, error) {
	return c.do(ctx, "PUT", path, nil, reqBody, fallback)
}

func (c *Client) delete(ctx context.Context, path string, fallback string) (json.RawMessage, error) {
	return c.do(ctx, "DELETE", path, nil, nil, fallback)
}

// seg escapes a caller supplied id for use as a single path segment.
func seg(id string) string {
	return url.PathEscape(id)
}
