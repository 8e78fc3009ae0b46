package gen

import (
	"github.com/rzhai/acmtrack/internal/models"
)

// BuildSolutionPrompt renders the solution template for a problem. The style
// injection values come from the prompt settings so that the active weekly
// style also shapes solution write-ups.
func BuildSolutionPrompt(problem *models.ProblemRecord, prompts *models.PromptSettings, defaultACLanguage models.ACLanguage) (string, error) {
	template := prompts.SolutionTemplate
	if template == "" {
		template = models.DefaultSolutionTemplate
	}
	values := map[string]string{
		"source":                 problem.Source,
		"id":                     problem.ID,
		"title":                  problem.Title,
		"status":                 string(problem.Status),
		"content":                problem.Content,
		"input_format":           problem.InputFormat,
		"output_format":          problem.OutputFormat,
		"constraints":            problem.Constraints,
		"default_ac_language":    string(defaultACLanguage),
		"prompt_style":           string(prompts.WeeklyPromptStyle),
		"style_prompt_injection": prompts.StyleInjection(),
	}
	return RenderTemplate(template, values)
}
