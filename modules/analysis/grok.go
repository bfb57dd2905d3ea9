// Package analysis fronts the third-party Grok API for app-idea searches.
// All endpoints sit behind the access gate; a successful proxy call consumes
// one search from the user's monthly quota.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// GrokConfig holds the upstream API settings.
type GrokConfig struct {
	APIKey  string        `env:"GROK_API_KEY,required"`
	BaseURL string        `env:"GROK_API_URL" envDefault:"https://api.x.ai/v1"`
	Timeout time.Duration `env:"GROK_TIMEOUT" envDefault:"60s"`
}

var ErrUpstreamUnavailable = errors.New("analysis upstream unavailable")

// GrokClient forwards chat completion requests to the Grok API with the
// server-side key attached.
type GrokClient struct {
	cfg    GrokConfig
	client *http.Client
}

// NewGrokClient creates a Grok API client.
func NewGrokClient(cfg GrokConfig) *GrokClient {
	return &GrokClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// ProxyResult is an upstream response passed back to the caller verbatim.
type ProxyResult struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ChatCompletion forwards the raw request body to the upstream completions
// endpoint. The response body is returned as-is so the frontend sees the
// provider's own wire format.
func (c *GrokClient) ChatCompletion(ctx context.Context, body []byte) (*ProxyResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Join(ErrUpstreamUnavailable, err)
	}

	return &ProxyResult{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
	}, nil
}
