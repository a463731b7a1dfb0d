package currency

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rezonia/invoice-pricer/internal/model"
)

const (
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 1 << 20
)

// ProviderOption configures an HTTP-backed provider
type ProviderOption func(*httpConfig)

type httpConfig struct {
	client  *http.Client
	timeout time.Duration
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(cfg *httpConfig) {
		cfg.client = client
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ProviderOption {
	return func(cfg *httpConfig) {
		cfg.timeout = timeout
	}
}

func newHTTPConfig(opts []ProviderOption) *httpConfig {
	cfg := &httpConfig{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.client == nil {
		cfg.client = &http.Client{Timeout: cfg.timeout}
	}
	return cfg
}

func fetch(ctx context.Context, client *http.Client, source model.RateSource, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewProviderError(source, "failed to create request", err)
	}
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewProviderError(source, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewProviderError(source, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, model.NewProviderError(source, "failed to read response", err)
	}
	return body, nil
}
