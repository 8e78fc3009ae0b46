// Package models defines the record types persisted by the acmtrack store.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ProblemStatus is the user-facing solve state of a problem.
type ProblemStatus string

const (
	ProblemSolved    ProblemStatus = "solved"
	ProblemAttempted ProblemStatus = "attempted"
	ProblemUnsolved  ProblemStatus = "unsolved"
)

// SolutionStatus tracks AI solution generation for a problem, independent of
// the task record that drives it.
type SolutionStatus string

const (
	SolutionNone    SolutionStatus = "none"
	SolutionQueued  SolutionStatus = "queued"
	SolutionRunning SolutionStatus = "running"
	SolutionDone    SolutionStatus = "done"
	SolutionFailed  SolutionStatus = "failed"
)

// TranslationStatus tracks statement translation for a problem.
type TranslationStatus string

const (
	TranslationNone    TranslationStatus = "none"
	TranslationRunning TranslationStatus = "running"
	TranslationDone    TranslationStatus = "done"
	TranslationFailed  TranslationStatus = "failed"
)

// SolutionImageMeta describes an image attached to a problem for multimodal
// solution generation.
type SolutionImageMeta struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int       `json:"size_bytes"`
	RelativePath string    `json:"relative_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProblemInput is the importable subset of a problem record.
type ProblemInput struct {
	Source       string        `json:"source" binding:"required"`
	ID           string        `json:"id" binding:"required"`
	Title        string        `json:"title" binding:"required"`
	URL          string        `json:"url"`
	Content      string        `json:"content"`
	InputFormat  string        `json:"input_format"`
	OutputFormat string        `json:"output_format"`
	Constraints  string        `json:"constraints"`
	Reflection   string        `json:"reflection"`
	Tags         []string      `json:"tags"`
	Difficulty   *int          `json:"difficulty"`
	Status       ProblemStatus `json:"status"`
	MyACCode     string        `json:"my_ac_code"`
	MyACLanguage string        `json:"my_ac_language"`
}

// ProblemRecord is the full persisted problem document.
type ProblemRecord struct {
	ProblemInput

	SolutionImages    []SolutionImageMeta `json:"solution_images"`
	NeedsSolution     bool                `json:"needs_solution"`
	SolutionStatus    SolutionStatus      `json:"solution_status"`
	SolutionUpdatedAt *time.Time          `json:"solution_updated_at,omitempty"`
	SolvedAt          *time.Time          `json:"solved_at,omitempty"`

	TranslatedTitle        string            `json:"translated_title"`
	TranslatedContent      string            `json:"translated_content"`
	TranslatedInputFormat  string            `json:"translated_input_format"`
	TranslatedOutputFormat string            `json:"translated_output_format"`
	TranslatedConstraints  string            `json:"translated_constraints"`
	TranslationStatus      TranslationStatus `json:"translation_status"`
	TranslationError       string            `json:"translation_error,omitempty"`
	TranslationUpdatedAt   *time.Time        `json:"translation_updated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the canonical "source:id" identity of the problem.
func (p *ProblemRecord) Key() string {
	return ProblemKey(p.Source, p.ID)
}

// ProblemKey builds the canonical map key for a problem.
func ProblemKey(source, id string) string {
	return fmt.Sprintf("%s:%s", source, id)
}

// NeedsSolutionFor reports whether a problem in the given solve state still
// wants an AI solution by default.
func NeedsSolutionFor(status ProblemStatus) bool {
	return status == ProblemUnsolved || status == ProblemAttempted
}

// NormalizeDifficulty coerces loosely-typed scraper difficulty values
// ("1700", "*1700", 1700.0, "unknown") into an optional rating.
func NormalizeDifficulty(raw any) *int {
	switch v := raw.(type) {
	case nil:
		return nil
	case bool:
		return nil
	case int:
		if v < 0 {
			return nil
		}
		return &v
	case float64:
		if v < 0 {
			return nil
		}
		n := int(v)
		return &n
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return nil
		}
		switch strings.ToLower(text) {
		case "unknown", "null", "none", "nan", "n/a":
			return nil
		}
		if n, err := strconv.Atoi(text); err == nil && n >= 0 {
			return &n
		}
		var digits strings.Builder
		for _, ch := range text {
			if ch >= '0' && ch <= '9' {
				digits.WriteRune(ch)
			}
		}
		if digits.Len() == 0 {
			return nil
		}
		n, err := strconv.Atoi(digits.String())
		if err != nil {
			return nil
		}
		return &n
	default:
		return nil
	}
}

// TranslationPayload carries the Simplified Chinese fields produced by the
// statement translator.
type TranslationPayload struct {
	TitleZH        string `json:"title_zh"`
	ContentZH      string `json:"content_zh"`
	InputFormatZH  string `json:"input_format_zh"`
	OutputFormatZH string `json:"output_format_zh"`
	ConstraintsZH  string `json:"constraints_zh"`
}
