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

const openAIDoneSentinel = "[DONE]"

// resolveOpenAIURL normalizes an api_base onto the chat-completions path.
// Users paste bases with or without /v1 and with trailing slashes.
func resolveOpenAIURL(apiBase string) string {
	base := strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if strings.HasSuffix(base, "/chat/completions") {
		return base
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

func buildOpenAIRequest(ctx context.Context, profile models.AIProfile, prompt string, imagesBase64 []string) (*http.Request, error) {
	var userContent any
	if len(imagesBase64) == 0 {
		userContent = prompt
	} else {
		parts := []map[string]any{{"type": "text", "text": prompt}}
		for _, img := range imagesBase64 {
			parts = append(parts, map[string]any{
				"type": "image_url",
				"image_url": map[string]any{
					"url": "data:image/jpeg;base64," + img,
				},
			})
		}
		userContent = parts
	}

	payload := map[string]any{
		"model": profile.Model,
		"messages": []map[string]any{
			{"role": "system", "content": "You are an ACM solution assistant."},
			{"role": "user", "content": userContent},
		},
		"temperature": profile.Temperature,
		"stream":      true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resolveOpenAIURL(profile.APIBase), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+profile.APIKey)
	return req, nil
}

type openAIChunk struct {
	Choices []struct {
		Delta struct {
			Content json.RawMessage `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// consumeOpenAIData handles one data payload from an OpenAI-style stream and
// appends any delta text to out. The delta content is usually a plain string
// but some gateways emit a typed part list instead.
func consumeOpenAIData(data string, out *strings.Builder) (stop bool, err error) {
	if data == openAIDoneSentinel {
		return true, nil
	}

	var chunk openAIChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		// Keep-alive or non-JSON filler between chunks. Skip it.
		return false, nil
	}
	if chunk.Error != nil {
		return false, &StreamError{Message: chunk.Error.Message}
	}

	for _, choice := range chunk.Choices {
		raw := choice.Delta.Content
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			out.WriteString(text)
			continue
		}
		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &parts); err == nil {
			for _, part := range parts {
				out.WriteString(part.Text)
			}
		}
	}
	return false, nil
}
