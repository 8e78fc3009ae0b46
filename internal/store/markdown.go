package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rzhai/acmtrack/internal/models"
)

// The Markdown files written here are denormalized projections of the JSON
// records, regenerated in full on every mutation so they never drift for
// long. They are the Obsidian-facing view; the JSON stays authoritative.

func (s *Store) problemMarkdownPath(record *models.ProblemRecord) string {
	month := monthOf(record.CreatedAt)
	return filepath.Join(s.base, month, "problems", fmt.Sprintf("%s_%s.md", record.Source, record.ID))
}

func (s *Store) problemMarkdownPaths(source, id string) []string {
	pattern := filepath.Join(s.base, "*", "problems", fmt.Sprintf("%s_%s.md", source, id))
	matches, _ := filepath.Glob(pattern)
	sort.Strings(matches)
	return matches
}

func (s *Store) solutionMarkdownPaths(source, id string) []string {
	baseName := fmt.Sprintf("%s_%s", source, id)
	pattern := filepath.Join(s.base, "*", "solutions", baseName+"*.md")
	matches, _ := filepath.Glob(pattern)
	var out []string
	for _, path := range matches {
		name := filepath.Base(path)
		if name == baseName+".md" || strings.HasPrefix(name, baseName+"__dup_") {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// nextSolutionPath picks a fresh solution file name, suffixing __dup_N when a
// solution for the problem already exists in the month.
func (s *Store) nextSolutionPath(source, id, month string) (string, error) {
	dir := filepath.Join(s.base, month, "solutions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create solutions dir: %v", ErrStorage, err)
	}
	baseName := fmt.Sprintf("%s_%s", source, id)
	candidate := filepath.Join(dir, baseName+".md")
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate, nil
	}
	for idx := 2; ; idx++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s__dup_%d.md", baseName, idx))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
}

// yamlEscape quotes a value for frontmatter. JSON string escaping is valid
// YAML for scalars and handles quotes and newlines.
func yamlEscape(value string) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func buildProblemFrontmatter(record *models.ProblemRecord) string {
	var b strings.Builder
	b.WriteString("---\n")
	if len(record.Tags) > 0 {
		b.WriteString("tags:\n")
		for _, tag := range record.Tags {
			fmt.Fprintf(&b, "  - %s\n", yamlEscape(tag))
		}
	} else {
		b.WriteString("tags: []\n")
	}
	fmt.Fprintf(&b, "source: %s\n", yamlEscape(record.Source))
	fmt.Fprintf(&b, "problem_id: %s\n", yamlEscape(record.ID))
	fmt.Fprintf(&b, "title: %s\n", yamlEscape(record.Title))
	fmt.Fprintf(&b, "original_url: %s\n", yamlEscape(record.URL))
	fmt.Fprintf(&b, "status: %s\n", yamlEscape(string(record.Status)))
	if record.Difficulty != nil {
		fmt.Fprintf(&b, "difficulty: %d\n", *record.Difficulty)
	}
	fmt.Fprintf(&b, "created_at: %s\n", yamlEscape(record.CreatedAt.Format(timeLayout)))
	fmt.Fprintf(&b, "updated_at: %s\n", yamlEscape(record.UpdatedAt.Format(timeLayout)))
	b.WriteString("---\n\n")
	return b.String()
}

func buildSolutionFrontmatter(record *models.ProblemRecord) string {
	tags := append([]string(nil), record.Tags...)
	hasMarker := false
	for _, tag := range tags {
		if tag == "题解" {
			hasMarker = true
			break
		}
	}
	if !hasMarker {
		tags = append(tags, "题解")
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("tags:\n")
	for _, tag := range tags {
		fmt.Fprintf(&b, "  - %s\n", yamlEscape(tag))
	}
	fmt.Fprintf(&b, "source: %s\n", yamlEscape(record.Source))
	fmt.Fprintf(&b, "problem_id: %s\n", yamlEscape(record.ID))
	fmt.Fprintf(&b, "title: %s\n", yamlEscape(record.Title))
	b.WriteString("type: solution\n")
	b.WriteString("---\n\n")
	return b.String()
}

const timeLayout = "2006-01-02T15:04:05.999999Z07:00"

func buildProblemMarkdown(record *models.ProblemRecord, obsidianMode bool) string {
	tags := strings.Join(record.Tags, ", ")
	solvedAt := ""
	if record.SolvedAt != nil {
		solvedAt = record.SolvedAt.Format(timeLayout)
	}
	difficulty := ""
	if record.Difficulty != nil {
		difficulty = fmt.Sprintf("%d", *record.Difficulty)
	}

	lines := []string{
		"# Problem",
		"",
		fmt.Sprintf("- source: %s", record.Source),
		fmt.Sprintf("- id: %s", record.ID),
		fmt.Sprintf("- title: %s", record.Title),
		fmt.Sprintf("- original_url: %s", record.URL),
		fmt.Sprintf("- status: %s", record.Status),
		fmt.Sprintf("- needs_solution: %t", record.NeedsSolution),
		fmt.Sprintf("- solution_status: %s", record.SolutionStatus),
		fmt.Sprintf("- solved_at: %s", solvedAt),
		fmt.Sprintf("- difficulty: %s", difficulty),
		fmt.Sprintf("- tags: %s", tags),
		fmt.Sprintf("- created_at: %s", record.CreatedAt.Format(timeLayout)),
		fmt.Sprintf("- updated_at: %s", record.UpdatedAt.Format(timeLayout)),
		"",
		"## Description",
		record.Content,
		"",
		"## Input Format",
		record.InputFormat,
		"",
		"## Output Format",
		record.OutputFormat,
		"",
		"## Constraints",
		record.Constraints,
		"",
		"## Reflection",
		record.Reflection,
		"",
	}

	if strings.EqualFold(record.Source, "codeforces") {
		translationUpdated := ""
		if record.TranslationUpdatedAt != nil {
			translationUpdated = record.TranslationUpdatedAt.Format(timeLayout)
		}
		lines = append(lines,
			"## Chinese Translation",
			fmt.Sprintf("- translation_status: %s", record.TranslationStatus),
			fmt.Sprintf("- translation_updated_at: %s", translationUpdated),
			fmt.Sprintf("- translation_error: %s", record.TranslationError),
			"",
			"### Title (ZH)",
			orEmpty(record.TranslatedTitle),
			"",
			"### Description (ZH)",
			orEmpty(record.TranslatedContent),
			"",
			"### Input Format (ZH)",
			orEmpty(record.TranslatedInputFormat),
			"",
			"### Output Format (ZH)",
			orEmpty(record.TranslatedOutputFormat),
			"",
			"### Constraints (ZH)",
			orEmpty(record.TranslatedConstraints),
			"",
		)
	}

	lines = append(lines, "## My AC Code")
	if strings.TrimSpace(record.MyACCode) != "" {
		language := strings.TrimSpace(record.MyACLanguage)
		if language == "" {
			language = "text"
		}
		lines = append(lines,
			"```"+language,
			strings.TrimRight(record.MyACCode, "\n"),
			"```",
		)
	} else {
		lines = append(lines, "(empty)")
	}

	markdown := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	if obsidianMode {
		return buildProblemFrontmatter(record) + markdown
	}
	return markdown
}

func orEmpty(value string) string {
	if value == "" {
		return "(empty)"
	}
	return value
}

// saveProblemMarkdownLocked regenerates the problem projection file.
// Caller must hold the mutex.
func (s *Store) saveProblemMarkdownLocked(record *models.ProblemRecord, obsidianMode bool) (string, error) {
	path := s.problemMarkdownPath(record)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: create problems dir: %v", ErrStorage, err)
	}
	if err := os.WriteFile(path, []byte(buildProblemMarkdown(record, obsidianMode)), 0o644); err != nil {
		return "", fmt.Errorf("%w: write problem markdown: %v", ErrStorage, err)
	}
	return path, nil
}

// buildSolutionMarkdown assembles the final solution document: a relative
// link back to the problem projection, then the generated body.
func (s *Store) buildSolutionMarkdownLocked(record *models.ProblemRecord, content, solutionPath string, obsidianMode bool) (string, error) {
	body := strings.TrimRight(content, "\n")

	problemPath := s.problemMarkdownPath(record)
	if _, err := os.Stat(problemPath); os.IsNotExist(err) {
		if _, err := s.saveProblemMarkdownLocked(record, obsidianMode); err != nil {
			return "", err
		}
	}

	relative, err := filepath.Rel(filepath.Dir(solutionPath), problemPath)
	if err != nil {
		relative = problemPath
	}
	relative = filepath.ToSlash(relative)

	reference := strings.Join([]string{
		"## Problem Markdown Reference(原题)",
		fmt.Sprintf("- [Open original problem markdown(打开原题)](%s)", relative),
		"",
	}, "\n")

	var b strings.Builder
	if obsidianMode {
		b.WriteString(buildSolutionFrontmatter(record))
	}
	b.WriteString(reference)
	if body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	return b.String(), nil
}
