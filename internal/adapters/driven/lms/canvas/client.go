package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// APIError is a non-2xx response from the Canvas REST API.
type APIError struct {
	Endpoint   string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("canvas %s (%s %s): status %d: %s", e.Endpoint, e.Method, e.Path, e.StatusCode, e.Body)
}

// Client provides Canvas REST API operations.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a Canvas API client authenticated by a bearer token.
func NewClient(baseURL, token string, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		limiter:    limiter,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
	}
}

// Do sends one request and decodes the JSON reply into out.
// endpoint is a short name used in errors. path is relative to the base URL
// unless it is absolute, as pagination links are.
// It returns the rel="next" link, if any.
func (c *Client) Do(ctx context.Context, endpoint, method, path string, in, out any) (string, error) {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return "", fmt.Errorf("canvas %s: encode request: %w", endpoint, err)
		}
	}

	target := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = c.baseURL + path
	}

	// POSTs create objects; retrying one could create it twice.
	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", err
			}
		}

		resp, err := c.send(ctx, method, target, payload)
		if err != nil {
			return "", fmt.Errorf("canvas %s: %w", endpoint, err)
		}

		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		if retryable && attempt < retries {
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt+1) * c.backoff):
			}
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return "", &APIError{
				Endpoint:   endpoint,
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
			}
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return "", fmt.Errorf("canvas %s: decode response: %w", endpoint, err)
			}
		}
		return nextLink(resp.Header.Get("Link")), nil
	}
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// nextLink extracts the rel="next" URL from a Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		for _, attr := range segs[1:] {
			if strings.TrimSpace(attr) == `rel="next"` {
				return strings.Trim(strings.TrimSpace(segs[0]), "<>")
			}
		}
	}
	return ""
}
