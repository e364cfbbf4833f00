package moodle

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

	"golang.org/x/time/rate"
)

const restPath = "/webservice/rest/server.php"

// Web-service functions used by the adapter.
const (
	fnCreateCourses     = "core_course_create_courses"
	fnGetContents       = "core_course_get_contents"
	fnUpdateCourseState = "core_courseformat_update_course"
	fnUpdateCourses     = "core_course_update_courses"
	fnInplaceEditable   = "core_update_inplace_editable"
	fnEditSection       = "core_course_edit_section"
	fnGetSiteInfo       = "core_webservice_get_site_info"
	fnGetCourses        = "core_course_get_courses"
)

// readOnly lists the functions that are safe to retry.
var readOnly = map[string]bool{
	fnGetContents: true,
	fnGetSiteInfo: true,
	fnGetCourses:  true,
}

// RPCError is an exception payload returned by a web-service function.
// Moodle reports these with HTTP 200.
type RPCError struct {
	Function  string `json:"-"`
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
	DebugInfo string `json:"debuginfo,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("moodle %s: %s (%s)", e.Function, e.Message, e.ErrorCode)
}

// HTTPError is a non-2xx response from the web-service endpoint.
type HTTPError struct {
	Function   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("moodle %s: status %d: %s", e.Function, e.StatusCode, e.Body)
}

// Client calls Moodle web-service functions over the REST protocol.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a client for one Moodle site authenticated by a web-service token.
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
	}
}

// Call invokes a web-service function and decodes the JSON reply into out.
// out may be nil for functions whose reply is ignored.
func (c *Client) Call(ctx context.Context, function string, params url.Values, out any) error {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("wstoken", c.token)
	form.Set("wsfunction", function)
	form.Set("moodlewsrestformat", "json")
	payload := form.Encode()

	retries := 0
	if readOnly[function] {
		retries = c.maxRetries
	}

	var body []byte
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		status, respBody, err := c.post(ctx, payload)
		if err != nil {
			return fmt.Errorf("moodle %s: %w", function, err)
		}
		if status >= 500 && attempt < retries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
			continue
		}
		if status < 200 || status >= 300 {
			return &HTTPError{Function: function, StatusCode: status, Body: snippet(respBody)}
		}
		body = respBody
		break
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var rpcErr RPCError
		if err := json.Unmarshal(trimmed, &rpcErr); err == nil && rpcErr.Exception != "" {
			rpcErr.Function = function
			return &rpcErr
		}
	}

	if out == nil || len(trimmed) == 0 {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fmt.Errorf("moodle %s: decode response: %w", function, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+restPath, strings.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
