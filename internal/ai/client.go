package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rzhai/acmtrack/internal/metrics"
	"github.com/rzhai/acmtrack/internal/models"
)

const maxAttempts = 3

// Client issues streamed generation calls against a configured provider
// profile. One Client is shared across all task workers.
type Client struct {
	logger    *slog.Logger
	collector *metrics.Collector

	// newHTTP is swapped in tests to inject canned transports.
	newHTTP func(t timeouts) *http.Client
}

func NewClient(logger *slog.Logger, collector *metrics.Collector) *Client {
	return &Client{
		logger:    logger,
		collector: collector,
		newHTTP:   newHTTPClient,
	}
}

// Generate runs one prompt against the profile's provider and returns the
// reassembled stream text. Transient transport failures are retried up to
// maxAttempts; provider-reported failures (HTTP error statuses, stream error
// events) surface immediately.
func (c *Client) Generate(ctx context.Context, profile models.AIProfile, prompt string, imagesBase64 []string) (string, error) {
	if strings.TrimSpace(profile.APIBase) == "" || strings.TrimSpace(profile.APIKey) == "" {
		return "", ErrNotConfigured
	}
	provider := models.NormalizeProvider(string(profile.Provider), "")
	if provider != models.ProviderOpenAICompatible && provider != models.ProviderAnthropic {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, profile.Provider)
	}

	shaped := buildTimeouts(profile.TimeoutSeconds)
	httpClient := c.newHTTP(shaped)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		started := time.Now()
		result, err := c.attempt(ctx, httpClient, shaped, provider, profile, prompt, imagesBase64)
		if c.collector != nil {
			if err == nil {
				c.collector.RecordTiming(metrics.OpProviderCall, time.Since(started))
			} else {
				c.collector.RecordFailure(metrics.OpProviderCall)
			}
		}
		if err == nil {
			return result, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			return "", err
		}
		if attempt < maxAttempts {
			c.logger.Warn("provider call failed, retrying",
				"attempt", attempt,
				"provider", string(provider),
				"model", profile.Model,
				"error", err)
		}
	}
	return "", fmt.Errorf("provider call failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, httpClient *http.Client, shaped timeouts, provider models.AIProvider, profile models.AIProfile, prompt string, imagesBase64 []string) (string, error) {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var req *http.Request
	var err error
	switch provider {
	case models.ProviderAnthropic:
		req, err = buildAnthropicRequest(reqCtx, profile, prompt, imagesBase64)
	default:
		req, err = buildOpenAIRequest(reqCtx, profile, prompt, imagesBase64)
	}
	if err != nil {
		return "", err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if cause := context.Cause(reqCtx); cause != nil && cause != reqCtx.Err() {
			return "", cause
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	watched := watchBody(resp.Body, shaped.read, cancel)
	defer watched.stop()

	var out strings.Builder
	handle := func(ev event) (bool, error) {
		if provider == models.ProviderAnthropic {
			return consumeAnthropicEvent(ev, &out)
		}
		return consumeOpenAIData(ev.data, &out)
	}
	if err := scanEvents(watched, handle); err != nil {
		if cause := context.Cause(reqCtx); cause != nil && cause != reqCtx.Err() {
			return "", cause
		}
		return "", err
	}

	result := strings.TrimSpace(out.String())
	if result == "" {
		return "", ErrNoContent
	}
	return result, nil
}
