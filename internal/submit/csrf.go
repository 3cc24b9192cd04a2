package submit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Default CSRF settings, matching the XSRF cookie convention.
const (
	DefaultCSRFCookie = "XSRF-TOKEN"
	DefaultCSRFHeader = "X-XSRF-TOKEN"
)

// CSRFProvider fetches a CSRF token once and caches it. Concurrent callers
// that find the cache empty share a single fetch.
type CSRFProvider struct {
	client     *http.Client
	tokenURL   string
	cookieName string
	headerName string

	group singleflight.Group

	mu    sync.RWMutex
	token string
}

// NewCSRFProvider creates a provider that reads tokens from tokenURL.
// The token is taken from a JSON body ({"csrfToken": ...} or {"token": ...})
// or, failing that, from the cookie named cookieName.
func NewCSRFProvider(client *http.Client, tokenURL, cookieName, headerName string) *CSRFProvider {
	if cookieName == "" {
		cookieName = DefaultCSRFCookie
	}
	if headerName == "" {
		headerName = DefaultCSRFHeader
	}
	return &CSRFProvider{
		client:     client,
		tokenURL:   tokenURL,
		cookieName: cookieName,
		headerName: headerName,
	}
}

// HeaderName is the request header that carries the token.
func (p *CSRFProvider) HeaderName() string {
	return p.headerName
}

// Token returns the cached token, fetching it if needed.
func (p *CSRFProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token != "" {
		return token, nil
	}

	v, err, _ := p.group.Do("token", func() (any, error) {
		p.mu.RLock()
		cached := p.token
		p.mu.RUnlock()
		if cached != "" {
			return cached, nil
		}

		fresh, err := p.fetch(ctx)
		if err != nil {
			return "", err
		}

		p.mu.Lock()
		p.token = fresh
		p.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token if it is still stale. A token that
// was already replaced by another caller is kept.
func (p *CSRFProvider) Invalidate(stale string) {
	p.mu.Lock()
	if p.token == stale {
		p.token = ""
	}
	p.mu.Unlock()
}

func (p *CSRFProvider) fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("create csrf request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch csrf token: unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read csrf response: %w", err)
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
		Token     string `json:"token"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.CSRFToken != "" {
			return payload.CSRFToken, nil
		}
		if payload.Token != "" {
			return payload.Token, nil
		}
	}

	for _, c := range resp.Cookies() {
		if c.Name == p.cookieName && c.Value != "" {
			if v, err := url.QueryUnescape(c.Value); err == nil {
				return v, nil
			}
			return c.Value, nil
		}
	}

	return "", errors.New("csrf token not found in response")
}
