package gen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzhai/acmtrack/internal/models"
)

func TestBuildTranslationPrompt(t *testing.T) {
	record := &models.ProblemRecord{
		ProblemInput: models.ProblemInput{
			Source:      "codeforces",
			ID:          "4A",
			Title:       "Watermelon",
			Content:     "Divide a watermelon.",
			Constraints: "1 <= w <= 100",
		},
	}
	prompt := BuildTranslationPrompt(record)
	assert.Contains(t, prompt, "title_zh, content_zh, input_format_zh, output_format_zh, constraints_zh")
	assert.Contains(t, prompt, "title:\nWatermelon")
	assert.Contains(t, prompt, "constraints:\n1 <= w <= 100")
}

func TestParseTranslationResponse(t *testing.T) {
	raw := "```json\n" + `{
  "title_zh": "西瓜",
  "content_zh": "把西瓜分成两份。",
  "input_format_zh": "一个整数 w。",
  "output_format_zh": "YES 或 NO。",
  "constraints_zh": "1 <= w <= 100"
}` + "\n```"

	payload, err := ParseTranslationResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "西瓜", payload.TitleZH)
	assert.Equal(t, "把西瓜分成两份。", payload.ContentZH)
	assert.Equal(t, "1 <= w <= 100", payload.ConstraintsZH)
}

func TestParseTranslationResponseRejectsGarbage(t *testing.T) {
	_, err := ParseTranslationResponse("I cannot translate this.")
	assert.Error(t, err)
}
