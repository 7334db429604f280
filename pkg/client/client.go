// Package client provides the chainvault Go SDK for appending to, reading,
// verifying, and replicating domain ledgers through a vaultd server.
package client

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

// Transaction mirrors one ledger entry as served by vaultd.
type Transaction struct {
	ID           string          `json:"id"`
	Timestamp    int64           `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previousHash"`
	Signature    string          `json:"signature"`
}

// AppendResult is the response to Append.
type AppendResult struct {
	Transaction Transaction `json:"transaction"`
	ChainLen    int         `json:"chainLen"`
	ContainerID string      `json:"containerId"`
	IsNew       bool        `json:"isNew"`
}

// VerifyReport is the response to Verify.
type VerifyReport struct {
	Valid       bool   `json:"valid"`
	FailedIndex int    `json:"failedIndex"`
	Reason      string `json:"reason,omitempty"`
	Entries     int    `json:"entries"`
}

// BroadcastResult is one target's outcome in a Broadcast response.
type BroadcastResult struct {
	ContainerID string `json:"containerId,omitempty"`
	IsNew       bool   `json:"isNew"`
	Error       string `json:"error,omitempty"`
}

// Client is the chainvault SDK entry point.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *containerCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client, overriding the default timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCacheTTL enables in-memory caching of domain → container mappings
// with the given TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newContainerCache(ttl)
	}
}

// New creates a Client connected to a vaultd server at baseURL.
//
//	c := client.New("http://localhost:8080",
//	    client.WithCacheTTL(60*time.Second),
//	)
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Append appends data (arbitrary JSON) to domain's ledger and syncs the
// chain to the domain's remote container.
func (c *Client) Append(ctx context.Context, domain string, data json.RawMessage) (*AppendResult, error) {
	var res AppendResult
	err := c.do(ctx, http.MethodPost,
		"/api/v1/domains/"+domain+"/transactions",
		map[string]json.RawMessage{"data": data}, &res)
	if err != nil {
		if c.cache != nil {
			c.cache.invalidate(domain)
		}
		return nil, err
	}
	if c.cache != nil {
		c.cache.set(domain, res.ContainerID)
	}
	return &res, nil
}

// Chain fetches domain's full transaction chain.
func (c *Client) Chain(ctx context.Context, domain string) ([]Transaction, error) {
	var txs []Transaction
	if err := c.do(ctx, http.MethodGet, "/api/v1/domains/"+domain+"/chain", nil, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Verify asks the server to walk domain's chain and report integrity.
func (c *Client) Verify(ctx context.Context, domain string) (*VerifyReport, error) {
	var report VerifyReport
	if err := c.do(ctx, http.MethodGet, "/api/v1/domains/"+domain+"/verify", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Broadcast replicates source's chain into every target domain.
func (c *Client) Broadcast(ctx context.Context, source string, targets []string) (map[string]BroadcastResult, error) {
	var res struct {
		Results map[string]BroadcastResult `json:"results"`
	}
	err := c.do(ctx, http.MethodPost,
		"/api/v1/domains/"+source+"/broadcast",
		map[string][]string{"targets": targets}, &res)
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

// Domains lists every registered domain → container mapping.
func (c *Client) Domains(ctx context.Context) (map[string]string, error) {
	var res struct {
		Domains map[string]string `json:"domains"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/domains", nil, &res); err != nil {
		return nil, err
	}
	return res.Domains, nil
}

// ContainerID returns the container id backing domain, served from the
// local cache when fresh.
func (c *Client) ContainerID(ctx context.Context, domain string) (string, error) {
	if c.cache != nil {
		if id, ok := c.cache.get(domain); ok {
			return id, nil
		}
	}
	all, err := c.Domains(ctx)
	if err != nil {
		return "", err
	}
	id, ok := all[domain]
	if !ok {
		return "", fmt.Errorf("domain %q not registered", domain)
	}
	if c.cache != nil {
		c.cache.set(domain, id)
	}
	return id, nil
}

// do performs one JSON request/response round-trip against vaultd.
func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) error {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("server error %d: %s", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("server error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if respBody == nil {
		return nil
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
