package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rzhai/acmtrack/internal/models"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
)

func resolveAnthropicURL(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if strings.HasSuffix(base, "/messages") {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/messages"
	}
	return base + "/v1/messages"
}

func buildAnthropicRequest(ctx context.Context, profile models.AIProfile, prompt string, imagesBase64 []string) (*http.Request, error) {
	parts := []map[string]any{{"type": "text", "text": prompt}}
	for _, img := range imagesBase64 {
		parts = append(parts, map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": "image/jpeg",
				"data":       img,
			},
		})
	}

	payload := map[string]any{
		"model":      profile.Model,
		"max_tokens": anthropicMaxTokens,
		"messages": []map[string]any{
			{"role": "user", "content": parts},
		},
		"temperature": profile.Temperature,
		"stream":      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolveAnthropicURL(profile.APIBase), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", profile.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

type anthropicChunk struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// consumeAnthropicEvent handles one event from an Anthropic-style stream.
// The event name and the payload type field both signal the frame kind, and
// either one is honored: some proxies strip event names.
func consumeAnthropicEvent(ev event, out *strings.Builder) (stop bool, err error) {
	if ev.name == "message_stop" {
		return true, nil
	}
	if ev.data == "" {
		return false, nil
	}

	var chunk anthropicChunk
	if err := json.Unmarshal([]byte(ev.data), &chunk); err != nil {
		return false, nil
	}
	switch chunk.Type {
	case "message_stop":
		return true, nil
	case "error":
		msg := "unknown stream error"
		if chunk.Error != nil {
			msg = chunk.Error.Message
		}
		return false, &StreamError{Message: msg}
	case "content_block_delta":
		if chunk.Delta.Type == "text_delta" {
			out.WriteString(chunk.Delta.Text)
		}
	}
	if chunk.Type == "" && chunk.Error != nil {
		return false, &StreamError{Message: chunk.Error.Message}
	}
	return false, nil
}
