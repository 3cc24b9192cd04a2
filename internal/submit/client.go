// Package submit posts prepared records to table endpoints.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/tabimport/internal/core"
)

// maxBodyBytes caps how much of an error response is read.
const maxBodyBytes = 64 * 1024

// Config configures a Client.
type Config struct {
	BaseURL  string        // joined with relative table endpoints
	Timeout  time.Duration // per request
	APIToken string        // sent as a bearer token when set

	CSRFTokenURL string // enables CSRF handling when set
	CSRFCookie   string
	CSRFHeader   string
}

// Client submits one record per request. It implements core.Submitter.
type Client struct {
	base     *url.URL
	http     *http.Client
	apiToken string
	csrf     *CSRFProvider
}

// New creates a Client. The cookie jar keeps the session cookie that
// CSRF tokens are bound to.
func New(cfg Config) (*Client, error) {
	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		base = u
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: timeout, Jar: jar}

	c := &Client{base: base, http: hc, apiToken: cfg.APIToken}
	if cfg.CSRFTokenURL != "" {
		tokenURL, err := c.resolve(cfg.CSRFTokenURL)
		if err != nil {
			return nil, err
		}
		c.csrf = NewCSRFProvider(hc, tokenURL, cfg.CSRFCookie, cfg.CSRFHeader)
	}
	return c, nil
}

var _ core.Submitter = (*Client)(nil)

// Submit posts record as JSON to endpoint. A 403 or 419 answer while CSRF
// handling is enabled refreshes the token and retries once.
func (c *Client) Submit(ctx context.Context, endpoint string, record core.PreparedRecord) error {
	target, err := c.resolve(endpoint)
	if err != nil {
		return err
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	status, msg, token, err := c.post(ctx, target, body)
	if err != nil {
		return err
	}
	if c.csrf != nil && (status == http.StatusForbidden || status == 419) {
		c.csrf.Invalidate(token)
		status, msg, _, err = c.post(ctx, target, body)
		if err != nil {
			return err
		}
	}

	if status >= 200 && status <= 299 {
		return nil
	}
	return &core.RejectedError{StatusCode: status, Message: msg}
}

// post sends one request. For non-2xx answers msg is the decoded body.
func (c *Client) post(ctx context.Context, target string, body []byte) (status int, msg, token string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if c.csrf != nil {
		token, err = c.csrf.Token(ctx)
		if err != nil {
			return 0, "", "", err
		}
		req.Header.Set(c.csrf.HeaderName(), token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, "", token, fmt.Errorf("post %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, "", token, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return resp.StatusCode, ErrorMessage(resp.StatusCode, raw), token, nil
}

func (c *Client) resolve(endpoint string) (string, error) {
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if c.base == nil {
		return "", fmt.Errorf("endpoint %q is relative and no base url is configured", endpoint)
	}
	return c.base.JoinPath(ref.Path).String(), nil
}

// ErrorMessage decodes an error response body. JSON bodies yield their
// message; a field error map yields "field: message" for the first field.
// Other bodies are used as plain text.
func ErrorMessage(status int, body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return text
	}

	switch v := decoded.(type) {
	case string:
		return v
	case map[string]any:
		if fe := firstFieldError(v["errors"]); fe != "" {
			return fe
		}
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return text
}

// firstFieldError renders {"field": ["msg", ...]} or {"field": "msg"} as
// "field: msg", taking fields in name order.
func firstFieldError(v any) string {
	fields, ok := v.(map[string]any)
	if !ok || len(fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		switch msg := fields[name].(type) {
		case string:
			if msg != "" {
				return name + ": " + msg
			}
		case []any:
			for _, m := range msg {
				if s, ok := m.(string); ok && s != "" {
					return name + ": " + s
				}
			}
		}
	}
	return ""
}
