package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rzhai/acmtrack/internal/models"
)

// ProblemFilter narrows ListProblemsFiltered results. Zero values mean
// "no constraint".
type ProblemFilter struct {
	Month   string
	Source  string
	Status  models.ProblemStatus
	Keyword string
}

func decodeProblem(raw json.RawMessage) (*models.ProblemRecord, bool) {
	var record models.ProblemRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false
	}
	if record.Source == "" || record.ID == "" {
		return nil, false
	}
	return &record, true
}

// mutateProblemLocked loads a problem, applies fn, bumps updated_at, and
// persists both the JSON record and the Markdown projection. Caller must
// hold the mutex. Returns ErrNotFound if the key is absent or undecodable.
func (s *Store) mutateProblemLocked(key string, fn func(*models.ProblemRecord)) (*models.ProblemRecord, error) {
	data, err := s.readDocLocked(DocProblems)
	if err != nil {
		return nil, err
	}
	raw, ok := data[key]
	if !ok {
		return nil, fmt.Errorf("%w: problem %s", ErrNotFound, key)
	}
	record, ok := decodeProblem(raw)
	if !ok {
		return nil, fmt.Errorf("%w: problem %s", ErrNotFound, key)
	}

	fn(record)
	record.UpdatedAt = nowUTC()

	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: encode problem %s: %v", ErrStorage, key, err)
	}
	data[key] = encoded
	if err := s.writeDocLocked(DocProblems, data); err != nil {
		return nil, err
	}
	settings, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	if _, err := s.saveProblemMarkdownLocked(record, settings.UI.ObsidianModeEnabled); err != nil {
		return nil, err
	}
	return record, nil
}

// UpsertProblems imports or refreshes a batch of problems. New records take
// the input wholesale; existing records keep their locally-authored fields
// (AC code, reflection, translation, solution state) unless the input
// provides replacements.
func (s *Store) UpsertProblems(items []models.ProblemInput) (imported, updated int, records []models.ProblemRecord, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readDocLocked(DocProblems)
	if err != nil {
		return 0, 0, nil, err
	}
	settings, err := s.settingsLocked()
	if err != nil {
		return 0, 0, nil, err
	}
	defaultLang := settings.UI.DefaultACLanguage

	for _, item := range items {
		if item.Status == "" {
			item.Status = models.ProblemUnsolved
		}
		key := models.ProblemKey(item.Source, item.ID)
		now := nowUTC()

		var existing *models.ProblemRecord
		if raw, ok := data[key]; ok {
			existing, _ = decodeProblem(raw)
		}
		defaultNeeds := models.NeedsSolutionFor(item.Status)

		var record *models.ProblemRecord
		if existing == nil {
			input := item
			input.MyACLanguage = string(models.NormalizeACLanguage(item.MyACLanguage, defaultLang))
			record = &models.ProblemRecord{
				ProblemInput:      input,
				NeedsSolution:     defaultNeeds,
				SolutionStatus:    models.SolutionNone,
				TranslationStatus: models.TranslationNone,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if item.Status == models.ProblemSolved {
				record.SolvedAt = &now
			}
			imported++
		} else {
			record = existing
			hasDoneSolution := existing.SolutionStatus == models.SolutionDone

			record.Title = item.Title
			record.Content = item.Content
			record.InputFormat = item.InputFormat
			record.OutputFormat = item.OutputFormat
			record.Constraints = item.Constraints
			record.Tags = item.Tags
			record.Difficulty = item.Difficulty
			record.Status = item.Status
			if strings.TrimSpace(item.URL) != "" {
				record.URL = strings.TrimSpace(item.URL)
			}
			if strings.TrimSpace(item.MyACCode) != "" {
				record.MyACCode = item.MyACCode
			}
			if strings.TrimSpace(item.MyACLanguage) != "" {
				record.MyACLanguage = item.MyACLanguage
			}
			record.MyACLanguage = string(models.NormalizeACLanguage(record.MyACLanguage, defaultLang))
			if strings.TrimSpace(item.Reflection) != "" {
				record.Reflection = item.Reflection
			}
			record.NeedsSolution = defaultNeeds && !hasDoneSolution
			if item.Status == models.ProblemSolved && record.SolvedAt == nil {
				record.SolvedAt = &now
			}
			record.UpdatedAt = now
			updated++
		}

		encoded, encErr := json.Marshal(record)
		if encErr != nil {
			return 0, 0, nil, fmt.Errorf("%w: encode problem %s: %v", ErrStorage, key, encErr)
		}
		data[key] = encoded
		if _, mdErr := s.saveProblemMarkdownLocked(record, settings.UI.ObsidianModeEnabled); mdErr != nil {
			return 0, 0, nil, mdErr
		}
		records = append(records, *record)
	}

	if err := s.writeDocLocked(DocProblems, data); err != nil {
		return 0, 0, nil, err
	}
	return imported, updated, records, nil
}

// GetProblem looks up a problem by source and id.
func (s *Store) GetProblem(source, id string) (*models.ProblemRecord, error) {
	return s.GetProblemByKey(models.ProblemKey(source, id))
}

// GetProblemByKey looks up a problem by its canonical key.
func (s *Store) GetProblemByKey(key string) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.readDocLocked(DocProblems)
	if err != nil {
		return nil, err
	}
	raw, ok := data[key]
	if !ok {
		return nil, fmt.Errorf("%w: problem %s", ErrNotFound, key)
	}
	record, ok := decodeProblem(raw)
	if !ok {
		return nil, fmt.Errorf("%w: problem %s", ErrNotFound, key)
	}
	return record, nil
}

// ListProblems returns all problems, newest-updated first. A non-empty month
// ("2025-07") restricts to problems created that month.
func (s *Store) ListProblems(month string) ([]models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listProblemsLocked(month)
}

func (s *Store) listProblemsLocked(month string) ([]models.ProblemRecord, error) {
	data, err := s.readDocLocked(DocProblems)
	if err != nil {
		return nil, err
	}
	records := make([]models.ProblemRecord, 0, len(data))
	for _, raw := range data {
		record, ok := decodeProblem(raw)
		if !ok {
			continue
		}
		if month != "" && monthOf(record.CreatedAt) != month {
			continue
		}
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// ListProblemsFiltered applies source/status/keyword filters on top of
// ListProblems.
func (s *Store) ListProblemsFiltered(filter ProblemFilter) ([]models.ProblemRecord, error) {
	records, err := s.ListProblems(filter.Month)
	if err != nil {
		return nil, err
	}
	source := strings.ToLower(strings.TrimSpace(filter.Source))
	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))

	var out []models.ProblemRecord
	for _, record := range records {
		if source != "" && strings.ToLower(record.Source) != source {
			continue
		}
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		if keyword != "" {
			difficulty := ""
			if record.Difficulty != nil {
				difficulty = fmt.Sprintf("%d", *record.Difficulty)
			}
			haystack := strings.ToLower(strings.Join([]string{
				record.Source,
				record.ID,
				record.Title,
				record.Content,
				record.InputFormat,
				record.OutputFormat,
				record.Constraints,
				record.Reflection,
				strings.Join(record.Tags, " "),
				difficulty,
			}, "\n"))
			if !strings.Contains(haystack, keyword) {
				continue
			}
		}
		out = append(out, record)
	}
	return out, nil
}

// ListPendingProblems returns problems still wanting an AI solution.
func (s *Store) ListPendingProblems(month string) ([]models.ProblemRecord, error) {
	records, err := s.ListProblems(month)
	if err != nil {
		return nil, err
	}
	var pending []models.ProblemRecord
	for _, record := range records {
		if record.NeedsSolution && record.SolutionStatus != models.SolutionDone {
			pending = append(pending, record)
		}
	}
	return pending, nil
}

// PatchStatus updates the solve state and recomputes needs_solution and
// solved_at accordingly.
func (s *Store) PatchStatus(source, id string, status models.ProblemStatus) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.Status = status
		if record.SolutionStatus == models.SolutionDone {
			record.NeedsSolution = false
		} else {
			record.NeedsSolution = models.NeedsSolutionFor(status)
		}
		if status == models.ProblemSolved {
			if record.SolvedAt == nil {
				now := nowUTC()
				record.SolvedAt = &now
			}
		} else {
			record.SolvedAt = nil
		}
	})
}

// SetSolutionState is the orchestrator's hook for keeping the subject record
// consistent with its task. markNeeds nil derives needs_solution from the
// new state: done clears it, queued/running/failed keep the problem eligible
// for re-enqueue.
func (s *Store) SetSolutionState(key string, status models.SolutionStatus, markNeeds *bool) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(key, func(record *models.ProblemRecord) {
		record.SolutionStatus = status
		if markNeeds != nil {
			record.NeedsSolution = *markNeeds
		} else {
			switch status {
			case models.SolutionDone:
				record.NeedsSolution = false
			case models.SolutionQueued, models.SolutionRunning, models.SolutionFailed:
				record.NeedsSolution = true
			default:
				record.NeedsSolution = models.NeedsSolutionFor(record.Status)
			}
		}
		now := nowUTC()
		record.SolutionUpdatedAt = &now
	})
}

// UpdateACCode stores the user's accepted code, optionally marking the
// problem solved.
func (s *Store) UpdateACCode(source, id, code, language string, markSolved bool) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.settingsLocked()
	if err != nil {
		return nil, err
	}
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.MyACCode = code
		record.MyACLanguage = string(models.NormalizeACLanguage(language, settings.UI.DefaultACLanguage))
		if markSolved {
			record.Status = models.ProblemSolved
			record.NeedsSolution = false
			if record.SolvedAt == nil {
				now := nowUTC()
				record.SolvedAt = &now
			}
		}
	})
}

// UpdateReflection replaces the user's post-solve notes.
func (s *Store) UpdateReflection(source, id, reflection string) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.Reflection = reflection
	})
}

// UpdateDifficulty sets or clears the difficulty rating.
func (s *Store) UpdateDifficulty(source, id string, difficulty *int) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.Difficulty = difficulty
	})
}

// ProblemInfoUpdate carries optional field replacements for UpdateInfo.
type ProblemInfoUpdate struct {
	Title         *string
	Content       *string
	InputFormat   *string
	OutputFormat  *string
	Constraints   *string
	Reflection    *string
	Tags          []string
	TagsSet       bool
	Difficulty    *int
	DifficultySet bool
	Status        *models.ProblemStatus
}

// UpdateInfo applies a partial edit of the problem statement fields.
func (s *Store) UpdateInfo(source, id string, update ProblemInfoUpdate) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		if update.Title != nil {
			record.Title = *update.Title
		}
		if update.Content != nil {
			record.Content = *update.Content
		}
		if update.InputFormat != nil {
			record.InputFormat = *update.InputFormat
		}
		if update.OutputFormat != nil {
			record.OutputFormat = *update.OutputFormat
		}
		if update.Constraints != nil {
			record.Constraints = *update.Constraints
		}
		if update.Reflection != nil {
			record.Reflection = *update.Reflection
		}
		if update.TagsSet {
			record.Tags = update.Tags
		}
		if update.DifficultySet {
			record.Difficulty = update.Difficulty
		}
		if update.Status != nil {
			status := *update.Status
			record.Status = status
			if record.SolutionStatus == models.SolutionDone {
				record.NeedsSolution = false
			} else {
				record.NeedsSolution = models.NeedsSolutionFor(status)
			}
			if status == models.ProblemSolved {
				if record.SolvedAt == nil {
					now := nowUTC()
					record.SolvedAt = &now
				}
			} else {
				record.SolvedAt = nil
			}
		}
	})
}

// SetTags applies generated tags and difficulty from an auto-tag task.
func (s *Store) SetTags(key string, tags []string, difficulty int) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(key, func(record *models.ProblemRecord) {
		record.Tags = tags
		record.Difficulty = &difficulty
	})
}

// SetTranslationRunning marks a translation in flight.
func (s *Store) SetTranslationRunning(source, id string) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.TranslationStatus = models.TranslationRunning
		record.TranslationError = ""
	})
}

// SetTranslation stores a completed translation payload.
func (s *Store) SetTranslation(source, id string, payload models.TranslationPayload) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.TranslatedTitle = payload.TitleZH
		record.TranslatedContent = payload.ContentZH
		record.TranslatedInputFormat = payload.InputFormatZH
		record.TranslatedOutputFormat = payload.OutputFormatZH
		record.TranslatedConstraints = payload.ConstraintsZH
		record.TranslationStatus = models.TranslationDone
		record.TranslationError = ""
		now := nowUTC()
		record.TranslationUpdatedAt = &now
	})
}

// SetTranslationFailed records a translation failure.
func (s *Store) SetTranslationFailed(source, id, errorMessage string) (*models.ProblemRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateProblemLocked(models.ProblemKey(source, id), func(record *models.ProblemRecord) {
		record.TranslationStatus = models.TranslationFailed
		record.TranslationError = errorMessage
		now := nowUTC()
		record.TranslationUpdatedAt = &now
	})
}

// DeleteProblemResult summarizes what a problem deletion removed.
type DeleteProblemResult struct {
	Source               string `json:"source"`
	ID                   string `json:"id"`
	Deleted              bool   `json:"deleted"`
	RemovedMarkdownFiles int    `json:"removed_markdown_files"`
	RemovedSolutionFiles int    `json:"removed_solution_files"`
	RemovedTasks         int    `json:"removed_tasks"`
}

// DeleteProblem removes the record, its tasks, and every projection file.
func (s *Store) DeleteProblem(source, id string) (DeleteProblemResult, error) {
	key := models.ProblemKey(source, id)
	result := DeleteProblemResult{Source: source, ID: id}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readDocLocked(DocProblems)
	if err != nil {
		return result, err
	}
	if _, ok := data[key]; ok {
		delete(data, key)
		if err := s.writeDocLocked(DocProblems, data); err != nil {
			return result, err
		}
		result.Deleted = true
	}

	tasks, err := s.readDocLocked(DocTasks)
	if err != nil {
		return result, err
	}
	kept := make(map[string]json.RawMessage, len(tasks))
	for taskID, raw := range tasks {
		var record models.TaskRecord
		if json.Unmarshal(raw, &record) == nil && record.SubjectKey == key {
			result.RemovedTasks++
			continue
		}
		kept[taskID] = raw
	}
	if result.RemovedTasks > 0 {
		if err := s.writeDocLocked(DocTasks, kept); err != nil {
			return result, err
		}
	}

	for _, path := range s.problemMarkdownPaths(source, id) {
		if os.Remove(path) == nil {
			result.RemovedMarkdownFiles++
		}
	}
	for _, path := range s.solutionMarkdownPaths(source, id) {
		if os.Remove(path) == nil {
			result.RemovedSolutionFiles++
		}
	}
	if dir := s.solutionImagesDirLocked(source, id); dir != "" {
		_ = os.RemoveAll(dir)
	}
	return result, nil
}

// ProblemMarkdown returns the projection file content, rebuilding it from
// the record when the file is missing.
func (s *Store) ProblemMarkdown(source, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.readDocLocked(DocProblems)
	if err != nil {
		return "", err
	}
	raw, ok := data[models.ProblemKey(source, id)]
	if !ok {
		return "", fmt.Errorf("%w: problem %s:%s", ErrNotFound, source, id)
	}
	record, ok := decodeProblem(raw)
	if !ok {
		return "", fmt.Errorf("%w: problem %s:%s", ErrNotFound, source, id)
	}
	path := s.problemMarkdownPath(record)
	if content, err := os.ReadFile(path); err == nil {
		return string(content), nil
	}
	settings, err := s.settingsLocked()
	if err != nil {
		return "", err
	}
	return buildProblemMarkdown(record, settings.UI.ObsidianModeEnabled), nil
}

// SaveSolutionFile persists a generated solution as the month's Markdown
// artifact and returns its path.
func (s *Store) SaveSolutionFile(record *models.ProblemRecord, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, err := s.nextSolutionPath(record.Source, record.ID, currentMonth())
	if err != nil {
		return "", err
	}
	settings, err := s.settingsLocked()
	if err != nil {
		return "", err
	}
	final, err := s.buildSolutionMarkdownLocked(record, content, path, settings.UI.ObsidianModeEnabled)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(final), 0o644); err != nil {
		return "", fmt.Errorf("%w: write solution file: %v", ErrStorage, err)
	}
	return path, nil
}

// ReadSolutionFile returns the newest solution artifact for a problem, or
// ErrNotFound if none exists.
func (s *Store) ReadSolutionFile(source, id string) (string, error) {
	s.mu.Lock()
	paths := s.solutionMarkdownPaths(source, id)
	s.mu.Unlock()
	if len(paths) == 0 {
		return "", fmt.Errorf("%w: solution for %s:%s", ErrNotFound, source, id)
	}

	best := paths[0]
	var bestMod int64
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); mod >= bestMod {
			best = path
			bestMod = mod
		}
	}
	content, err := os.ReadFile(best)
	if err != nil {
		return "", fmt.Errorf("%w: read solution file: %v", ErrStorage, err)
	}
	return string(content), nil
}
