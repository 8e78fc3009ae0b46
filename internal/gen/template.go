// Package gen builds prompts for the generation tasks and parses structured
// model responses back into record updates.
package gen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnresolvedPlaceholder indicates a template still contains {{tokens}}
// after substitution. Raised before any provider call, so a broken custom
// template fails fast instead of burning a generation.
var ErrUnresolvedPlaceholder = errors.New("unresolved template placeholders")

// RenderTemplate substitutes {{key}} tokens and rejects templates with tokens
// left over. Unknown tokens are reported sorted so the error is stable.
func RenderTemplate(template string, values map[string]string) (string, error) {
	rendered := template
	for key, value := range values {
		rendered = strings.ReplaceAll(rendered, "{{"+key+"}}", value)
	}

	missing := map[string]struct{}{}
	rest := rendered
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			break
		}
		token := strings.TrimSpace(rest[start+2 : start+2+end])
		if token != "" {
			missing[token] = struct{}{}
		}
		rest = rest[start+2+end+2:]
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for token := range missing {
			names = append(names, token)
		}
		sort.Strings(names)
		return "", fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(names, ", "))
	}
	return rendered, nil
}

// trimText bounds a free-text field for prompt embedding.
func trimText(text string, limit int) string {
	value := strings.TrimSpace(text)
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "\n...<truncated>"
}

// extractJSONObject pulls a JSON object out of a model response that may be
// wrapped in markdown fences or surrounded by commentary.
func extractJSONObject(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", errors.New("empty model response")
	}
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", errors.New("model response does not contain a JSON object")
	}
	return text[start : end+1], nil
}
