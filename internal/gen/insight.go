package gen

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rzhai/acmtrack/internal/models"
)

// ParseWeekTarget resolves a "YYYY-Www" ISO week target into its Monday and
// Sunday dates.
func ParseWeekTarget(target string) (time.Time, time.Time, error) {
	yearStr, weekStr, ok := strings.Cut(target, "-W")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid week target %q, expected YYYY-Www", target)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid week target %q, expected YYYY-Www", target)
	}
	week, err := strconv.Atoi(weekStr)
	if err != nil || week < 1 || week > 53 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid week target %q, expected YYYY-Www", target)
	}

	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	week1Monday := jan4.AddDate(0, 0, -offset)
	start := week1Monday.AddDate(0, 0, (week-1)*7)
	if gotYear, gotWeek := start.ISOWeek(); gotYear != year || gotWeek != week {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid week target %q: year %d has no week %d", target, year, week)
	}
	return start, start.AddDate(0, 0, 6), nil
}

// insightProblem is the per-problem JSON shape embedded in insight prompts.
type insightProblem struct {
	Source            string   `json:"source"`
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Status            string   `json:"status"`
	Content           string   `json:"content"`
	InputFormat       string   `json:"input_format"`
	OutputFormat      string   `json:"output_format"`
	Constraints       string   `json:"constraints"`
	Tags              []string `json:"tags"`
	Difficulty        *int     `json:"difficulty"`
	MyACCode          string   `json:"my_ac_code"`
	MyACLanguage      string   `json:"my_ac_language"`
	SolvedAt          *string  `json:"solved_at"`
	Reflection        string   `json:"reflection"`
	TranslatedTitle   string   `json:"translated_title"`
	TranslationStatus string   `json:"translation_status"`
	SolutionStatus    string   `json:"solution_status"`
	SolutionMarkdown  string   `json:"solution_markdown"`
	CreatedAt         string   `json:"created_at"`
	UpdatedAt         string   `json:"updated_at"`
}

// SolutionLoader resolves the stored solution markdown for a problem, or ""
// when none exists.
type SolutionLoader func(source, id string) string

// BuildInsightPrompt renders the insight template over a stats series and the
// problems solved in the window. Solution markdown is inlined per problem so
// the report can reference actual write-ups.
func BuildInsightPrompt(insightType models.InsightType, target string, stats *models.StatsSeries, problems []models.ProblemRecord, prompts *models.PromptSettings, loadSolution SolutionLoader) (string, error) {
	template := prompts.InsightTemplate
	if template == "" {
		template = models.DefaultInsightTemplate
	}

	list := make([]insightProblem, 0, len(problems))
	for idx := range problems {
		p := &problems[idx]
		solution := ""
		if loadSolution != nil {
			solution = loadSolution(p.Source, p.ID)
		}
		var solvedAt *string
		if p.SolvedAt != nil {
			v := p.SolvedAt.UTC().Format(time.RFC3339)
			solvedAt = &v
		}
		list = append(list, insightProblem{
			Source:            p.Source,
			ID:                p.ID,
			Title:             p.Title,
			Status:            string(p.Status),
			Content:           trimText(p.Content, 4000),
			InputFormat:       trimText(p.InputFormat, 1200),
			OutputFormat:      trimText(p.OutputFormat, 1200),
			Constraints:       trimText(p.Constraints, 1200),
			Tags:              p.Tags,
			Difficulty:        p.Difficulty,
			MyACCode:          trimText(p.MyACCode, 2000),
			MyACLanguage:      p.MyACLanguage,
			SolvedAt:          solvedAt,
			Reflection:        trimText(p.Reflection, 1200),
			TranslatedTitle:   p.TranslatedTitle,
			TranslationStatus: string(p.TranslationStatus),
			SolutionStatus:    string(p.SolutionStatus),
			SolutionMarkdown:  trimText(solution, 12000),
			CreatedAt:         p.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:         p.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	pointsJSON, err := json.MarshalIndent(stats.Points, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode stats points: %w", err)
	}
	listJSON, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode problem list: %w", err)
	}

	values := map[string]string{
		"insight_type":           string(insightType),
		"target":                 target,
		"month":                  target,
		"week":                   target,
		"prompt_style":           string(prompts.WeeklyPromptStyle),
		"style_prompt_injection": prompts.StyleInjection(),
		"period":                 string(stats.Period),
		"from_date":              stats.FromDate,
		"to_date":                stats.ToDate,
		"stats_json":             string(pointsJSON),
		"stats_points_json":      string(pointsJSON),
		"problem_list_json":      string(listJSON),
	}
	return RenderTemplate(template, values)
}
