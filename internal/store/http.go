package store

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

	"github.com/JonMunkholm/tabimport/internal/core"
)

const maxErrorBody = 4 << 10

// HTTPTemplates talks to a template service over the template API.
// Mapping booleans travel as "true"/"false" strings (see core.WireMapping).
type HTTPTemplates struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPTemplates creates a template store rooted at baseURL, e.g.
// "https://imports.example.com/". A nil client uses a 15s timeout.
func NewHTTPTemplates(baseURL string, client *http.Client) (*HTTPTemplates, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse template service url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("template service url %q must be absolute", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPTemplates{base: base, client: client}, nil
}

var _ core.TemplateStore = (*HTTPTemplates)(nil)

type templateRequest struct {
	Name      string             `json:"name"`
	TableName string             `json:"tableName,omitempty"`
	Mappings  []core.WireMapping `json:"mappings"`
}

func (s *HTTPTemplates) List(ctx context.Context, tableName string) ([]core.MappingTemplate, error) {
	u := s.endpoint("templates")
	u.RawQuery = url.Values{"table": {tableName}}.Encode()

	var wire []core.WireTemplate
	if err := s.do(ctx, http.MethodGet, u, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]core.MappingTemplate, len(wire))
	for i, w := range wire {
		out[i] = w.Template()
	}
	return out, nil
}

func (s *HTTPTemplates) Get(ctx context.Context, id string) (core.MappingTemplate, error) {
	var wire core.WireTemplate
	if err := s.do(ctx, http.MethodGet, s.endpoint("templates", id), nil, &wire); err != nil {
		return core.MappingTemplate{}, err
	}
	return wire.Template(), nil
}

func (s *HTTPTemplates) Create(ctx context.Context, name, tableName string, mappings []core.ColumnMapping) (core.MappingTemplate, error) {
	body := templateRequest{Name: name, TableName: tableName, Mappings: core.ToWireMappings(mappings)}
	var wire core.WireTemplate
	if err := s.do(ctx, http.MethodPost, s.endpoint("templates"), body, &wire); err != nil {
		return core.MappingTemplate{}, err
	}
	return wire.Template(), nil
}

func (s *HTTPTemplates) Update(ctx context.Context, id, name string, mappings []core.ColumnMapping) (core.MappingTemplate, error) {
	body := templateRequest{Name: name, Mappings: core.ToWireMappings(mappings)}
	var wire core.WireTemplate
	if err := s.do(ctx, http.MethodPut, s.endpoint("templates", id), body, &wire); err != nil {
		return core.MappingTemplate{}, err
	}
	return wire.Template(), nil
}

func (s *HTTPTemplates) Delete(ctx context.Context, id string) error {
	return s.do(ctx, http.MethodDelete, s.endpoint("templates", id), nil, nil)
}

func (s *HTTPTemplates) endpoint(elem ...string) *url.URL {
	return s.base.JoinPath(elem...)
}

func (s *HTTPTemplates) do(ctx context.Context, method string, u *url.URL, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, u.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", core.ErrTemplateNotFound, remoteMessage(resp.Body))
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", core.ErrTemplateExists, remoteMessage(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: status %d: %s", method, u.Path, resp.StatusCode, remoteMessage(resp.Body))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// remoteMessage extracts the message of an error response body, falling back
// to the raw text.
func remoteMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(data))
}
