package gen

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rzhai/acmtrack/internal/models"
)

// BuildTranslationPrompt asks for a Simplified Chinese rendering of a problem
// statement as a bare JSON object.
func BuildTranslationPrompt(problem *models.ProblemRecord) string {
	var b strings.Builder
	b.WriteString("You are a professional competitive-programming translator. ")
	b.WriteString("Translate the following Codeforces statement into Simplified Chinese.\n\n")
	b.WriteString("Return ONLY valid JSON with exactly these keys: ")
	b.WriteString("title_zh, content_zh, input_format_zh, output_format_zh, constraints_zh.\n")
	b.WriteString("Do not add markdown fences or extra commentary.\n\n")
	fmt.Fprintf(&b, "title:\n%s\n\n", problem.Title)
	fmt.Fprintf(&b, "content:\n%s\n\n", problem.Content)
	fmt.Fprintf(&b, "input_format:\n%s\n\n", problem.InputFormat)
	fmt.Fprintf(&b, "output_format:\n%s\n\n", problem.OutputFormat)
	fmt.Fprintf(&b, "constraints:\n%s\n", problem.Constraints)
	return b.String()
}

// ParseTranslationResponse decodes the translation payload from a model
// response that may carry fences or commentary around the JSON.
func ParseTranslationResponse(raw string) (*models.TranslationPayload, error) {
	objectText, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("translation response: %w", err)
	}
	var payload models.TranslationPayload
	if err := json.Unmarshal([]byte(objectText), &payload); err != nil {
		return nil, fmt.Errorf("translation response is not valid JSON: %w", err)
	}
	return &payload, nil
}
