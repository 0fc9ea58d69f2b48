package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxResponseSize caps how much of a provider response is read (1MB)
const maxResponseSize = 1 << 20

// ErrProviderNotConfigured is returned when a provider has no API key
var ErrProviderNotConfigured = errors.New("email: provider not configured")

// ProviderConfig holds the settings shared by the HTTP providers
type ProviderConfig struct {
	APIKey      string
	FromAddress string
	FromName    string
	// Endpoint overrides the provider URL, used by tests
	Endpoint string
	Timeout  time.Duration
	// MaxRetries is the number of retries after the first attempt on
	// 429 and 5xx responses
	MaxRetries uint64
	RetryWait  time.Duration
}

func (c ProviderConfig) withDefaults(endpoint string) ProviderConfig {
	if c.Endpoint == "" {
		c.Endpoint = endpoint
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.RetryWait <= 0 {
		c.RetryWait = 500 * time.Millisecond
	}
	return c
}

// ProviderError is a non-2xx provider response
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether the request may succeed if sent again
func (e *ProviderError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// response is a provider reply read into memory
type response struct {
	status int
	header http.Header
	body   []byte
}

// jsonPoster sends JSON payloads with bearer auth and retries transient
// failures with exponential backoff
type jsonPoster struct {
	provider string
	cfg      ProviderConfig
	client   *http.Client
	// errorMessage extracts a readable message from an error body
	errorMessage func(body []byte) string
}

func newJSONPoster(provider string, cfg ProviderConfig, errorMessage func([]byte) string) *jsonPoster {
	return &jsonPoster{
		provider:     provider,
		cfg:          cfg,
		client:       &http.Client{Timeout: cfg.Timeout},
		errorMessage: errorMessage,
	}
}

func (p *jsonPoster) post(ctx context.Context, payload []byte) (*response, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.RetryWait
	policy.MaxElapsedTime = 0

	var resp *response
	operation := func() error {
		r, err := p.do(ctx, payload)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if r.status < 200 || r.status > 299 {
			perr := &ProviderError{Provider: p.provider, StatusCode: r.status, Message: p.errorMessage(r.body)}
			if perr.Retryable() {
				return perr
			}
			return backoff.Permanent(perr)
		}
		resp = r
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, p.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *jsonPoster) do(ctx context.Context, payload []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", p.provider, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: request failed: %w", p.provider, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read response: %w", p.provider, err)
	}
	return &response{status: httpResp.StatusCode, header: httpResp.Header, body: body}, nil
}
