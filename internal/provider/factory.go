package provider

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"regenie/internal/config"
)

// FromConfig builds the model provider described by the model section.
func FromConfig(cfg config.ModelConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model.apiKey (or OPENAI_API_KEY) is required")
	}
	return NewOpenAI(OpenAIConfig{
		APIKey:      cfg.APIKey,
		APIBase:     cfg.APIBase,
		Model:       cfg.Model,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		HTTPRetries: 1,
		Logger:      logger.With("component", "provider"),
	}), nil
}

// SharedHTTPClient returns a pooled HTTP client for long model calls.
func SharedHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
	}
}
