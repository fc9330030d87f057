// Package emuhttp speaks the emulator service's JSON-over-HTTP protocol.
// Every request resolves to a domain.Outcome: HTTP 404 is folded into
// NotImplemented (the service's documented "not yet built" signal),
// everything else into Success or a kinded Error.
package emuhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/six502/emuctl/internal/domain"
	"github.com/six502/emuctl/internal/ports"
)

const maxResponseBytes = 1 << 20

const DefaultBaseURL = "http://localhost:3030"

type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration

	mu         sync.RWMutex
	credential ports.Credential
}

var _ ports.Transport = (*Client)(nil)

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.requestTimeout = timeout }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("base url must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("base url host is required")
	}

	client := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     http.DefaultClient,
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) SetCredential(credential ports.Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credential = credential
}

// envelope is the service's uniform response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (c *Client) Send(ctx context.Context, method, path string, body any) domain.Outcome {
	resp, cancel, outcome := c.do(ctx, method, path, body)
	if resp == nil {
		return outcome
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return domain.NotImplementedOutcome()
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ErrorOutcome(domain.FailureTransport, "%s %s: read response: %v", method, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.ErrorOutcome(domain.FailureApplication, "%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.ErrorOutcome(domain.FailureProtocol, "%s %s: decode envelope: %v", method, path, err)
	}

	if !env.Success {
		message := env.Error
		if message == "" {
			message = "request failed without error detail"
		}
		return domain.ErrorOutcome(domain.FailureApplication, "%s %s: %s", method, path, message)
	}

	return domain.SuccessOutcome(env.Data)
}

func (c *Client) Text(ctx context.Context, path string) (string, domain.Outcome) {
	resp, cancel, outcome := c.do(ctx, http.MethodGet, path, nil)
	if resp == nil {
		return "", outcome
	}
	defer cancel()
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", domain.NotImplementedOutcome()
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", domain.ErrorOutcome(domain.FailureTransport, "GET %s: read response: %v", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", domain.ErrorOutcome(domain.FailureApplication, "GET %s: status %d", path, resp.StatusCode)
	}

	return string(raw), domain.SuccessOutcome(nil)
}

// do performs the request. On failure it returns a nil response and the
// outcome describing why. On success the caller owns closing the body
// and calling cancel, in that order; cancel releases the per-request
// timeout context and must outlive the body read.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, context.CancelFunc, domain.Outcome) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, nil, domain.ErrorOutcome(domain.FailureProtocol, "%s %s: encode body: %v", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	requestCtx, cancel := c.requestContext(ctx)

	req, err := http.NewRequestWithContext(requestCtx, method, c.baseURL+path, reader)
	if err != nil {
		cancel()
		return nil, nil, domain.ErrorOutcome(domain.FailureTransport, "%s %s: create request: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential := c.currentCredential(); !credential.Empty() {
		req.Header.Set("Authorization", string(credential.Scheme)+" "+credential.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, nil, domain.ErrorOutcome(domain.FailureTransport, "%s %s: %v", method, path, err)
	}

	return resp, cancel, domain.Outcome{}
}

func (c *Client) currentCredential() ports.Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}

	timeout := c.requestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return context.WithTimeout(ctx, timeout)
}
