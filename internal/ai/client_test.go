package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzhai/acmtrack/internal/metrics"
	"github.com/rzhai/acmtrack/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func testProfile(apiBase string, provider models.AIProvider) models.AIProfile {
	return models.AIProfile{
		ID:             "test",
		Name:           "Test",
		Provider:       provider,
		APIBase:        apiBase,
		APIKey:         "secret-key",
		Model:          "test-model",
		Temperature:    0.2,
		TimeoutSeconds: 5,
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubTransport(c *Client, rt roundTripperFunc) {
	c.newHTTP = func(timeouts) *http.Client {
		return &http.Client{Transport: rt}
	}
}

func sseResponse(stream string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       io.NopCloser(strings.NewReader(stream)),
	}
}

func TestGenerateRequiresConfiguration(t *testing.T) {
	client := NewClient(testLogger(), metrics.NewCollector())
	_, err := client.Generate(context.Background(), models.AIProfile{Model: "m"}, "hi", nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGenerateRejectsUnknownProvider(t *testing.T) {
	client := NewClient(testLogger(), metrics.NewCollector())
	profile := testProfile("https://api.example.com", "ollama")
	_, err := client.Generate(context.Background(), profile, "hi", nil)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestGenerateOpenAIStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret-key", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-model", payload["model"])
		assert.Equal(t, true, payload["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" there\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(testLogger(), metrics.NewCollector())
	result, err := client.Generate(context.Background(), testProfile(server.URL, models.ProviderOpenAICompatible), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", result)
}

func TestGenerateAnthropicStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"Hi!\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	}))
	defer server.Close()

	client := NewClient(testLogger(), metrics.NewCollector())
	result, err := client.Generate(context.Background(), testProfile(server.URL, models.ProviderAnthropic), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hi!", result)
}

func TestGenerateStatusErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(testLogger(), metrics.NewCollector())
	_, err := client.Generate(context.Background(), testProfile(server.URL, models.ProviderOpenAICompatible), "hi", nil)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Code)
	assert.Equal(t, 1, attempts, "HTTP error statuses must not be retried")
}

func TestGenerateStreamErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"context length exceeded\"}}\n\n")
	}))
	defer server.Close()

	client := NewClient(testLogger(), metrics.NewCollector())
	_, err := client.Generate(context.Background(), testProfile(server.URL, models.ProviderOpenAICompatible), "hi", nil)
	require.Error(t, err)
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, 1, attempts)
}

func TestGenerateRetriesTransientFailures(t *testing.T) {
	attempts := 0
	client := NewClient(testLogger(), metrics.NewCollector())
	stubTransport(client, func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("write tcp: %w", syscall.ECONNRESET)
		}
		return sseResponse("data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n"), nil
	})

	result, err := client.Generate(context.Background(), testProfile("https://api.example.com", models.ProviderOpenAICompatible), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	client := NewClient(testLogger(), metrics.NewCollector())
	stubTransport(client, func(req *http.Request) (*http.Response, error) {
		attempts++
		return nil, fmt.Errorf("read tcp: %w", syscall.ECONNRESET)
	})

	_, err := client.Generate(context.Background(), testProfile("https://api.example.com", models.ProviderOpenAICompatible), "hi", nil)
	require.Error(t, err)
	assert.Equal(t, maxAttempts, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestGenerateRetryLogOmittedOnFinalAttempt(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := NewClient(logger, metrics.NewCollector())
	stubTransport(client, func(req *http.Request) (*http.Response, error) {
		return nil, fmt.Errorf("read tcp: %w", syscall.ECONNRESET)
	})

	_, err := client.Generate(context.Background(), testProfile("https://api.example.com", models.ProviderOpenAICompatible), "hi", nil)
	require.Error(t, err)

	// The last attempt has no retry following it, so it must not log one.
	assert.Equal(t, maxAttempts-1, strings.Count(logs.String(), "provider call failed, retrying"))
}

func TestGenerateEmptyStreamIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(testLogger(), metrics.NewCollector())
	_, err := client.Generate(context.Background(), testProfile(server.URL, models.ProviderOpenAICompatible), "hi", nil)
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestGenerateRecordsProviderMetrics(t *testing.T) {
	collector := metrics.NewCollector()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer server.Close()

	client := NewClient(testLogger(), collector)
	_, err := client.Generate(context.Background(), testProfile(server.URL, models.ProviderOpenAICompatible), "hi", nil)
	require.NoError(t, err)

	snap := collector.Snapshot()
	require.NotNil(t, snap.ProviderCall)
	assert.Equal(t, int64(1), snap.ProviderCall.Count)
}
