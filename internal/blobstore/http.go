package blobstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxContainerBytes caps how much of a container response is read into
// memory (16 MiB).
const maxContainerBytes = 16 << 20

// HTTP is a Store backed by a remote container service:
//
//	POST /containers          → 201 {"id": "..."}           (Create)
//	GET  /containers/:id      → 200 body + ETag header       (Read)
//	PUT  /containers/:id      → 204, requires If-Match: etag (Update)
//
// The ETag serves as the version token; a mismatched If-Match returns
// 412 Precondition Failed, surfaced as ErrConcurrentModification.
type HTTP struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPOption is a functional option for configuring an HTTP store.
type HTTPOption func(*HTTP)

// WithHTTPClient sets a custom http.Client, overriding the default timeout.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(s *HTTP) {
		s.httpClient = hc
	}
}

// NewHTTP creates an HTTP store targeting baseURL.
func NewHTTP(baseURL string, opts ...HTTPOption) *HTTP {
	s := &HTTP{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Create implements Store.
func (s *HTTP) Create(ctx context.Context, content []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/containers", bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("build create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: create container: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContainerBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read create response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", statusError("create container", resp.StatusCode, body)
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode create response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("create response missing container id")
	}
	return payload.ID, nil
}

// Read implements Store.
func (s *HTTP) Read(ctx context.Context, id string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.baseURL+"/containers/"+id, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build read request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: read container %s: %v", ErrUnavailable, id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxContainerBytes))
	if err != nil {
		return nil, "", fmt.Errorf("%w: read container body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", statusError("read container", resp.StatusCode, body)
	}
	return body, resp.Header.Get("ETag"), nil
}

// Update implements Store.
func (s *HTTP) Update(ctx context.Context, id string, content []byte, version string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		s.baseURL+"/containers/"+id, bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if version != "" {
		req.Header.Set("If-Match", version)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: update container %s: %v", ErrUnavailable, id, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("update container", resp.StatusCode, body)
	}
	return nil
}

// statusError maps an HTTP status to the package error taxonomy.
func statusError(op string, status int, body []byte) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusPreconditionFailed:
		return ErrConcurrentModification
	case status >= 500 || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s: status %d: %s", ErrUnavailable, op, status, body)
	default:
		return fmt.Errorf("%s: status %d: %s", op, status, body)
	}
}
