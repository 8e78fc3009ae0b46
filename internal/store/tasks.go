package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rzhai/acmtrack/internal/models"
)

// CreateTask persists a fresh queued task record and returns it.
func (s *Store) CreateTask(kind models.TaskKind, subjectKey, providerName string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readDocLocked(DocTasks)
	if err != nil {
		return nil, err
	}
	record := &models.TaskRecord{
		TaskID:       uuid.NewString(),
		Kind:         kind,
		SubjectKey:   subjectKey,
		Status:       models.TaskQueued,
		ProviderName: providerName,
		CreatedAt:    nowUTC(),
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: encode task: %v", ErrStorage, err)
	}
	data[record.TaskID] = encoded
	if err := s.writeDocLocked(DocTasks, data); err != nil {
		return nil, err
	}
	return record, nil
}

// GetTask looks up a task by id.
func (s *Store) GetTask(taskID string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.readDocLocked(DocTasks)
	if err != nil {
		return nil, err
	}
	raw, ok := data[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	var record models.TaskRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return &record, nil
}

// ListTasks returns all tasks, newest first.
func (s *Store) ListTasks() ([]models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.readDocLocked(DocTasks)
	if err != nil {
		return nil, err
	}
	records := make([]models.TaskRecord, 0, len(data))
	for _, raw := range data {
		var record models.TaskRecord
		if json.Unmarshal(raw, &record) != nil {
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// HasActiveTasks reports whether any task is queued or running. Storage
// migration refuses to run while this is true.
func (s *Store) HasActiveTasks() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasActiveTasksLocked()
}

func (s *Store) hasActiveTasksLocked() (bool, error) {
	data, err := s.readDocLocked(DocTasks)
	if err != nil {
		return false, err
	}
	for _, raw := range data {
		var record models.TaskRecord
		if json.Unmarshal(raw, &record) != nil {
			continue
		}
		if record.Active() {
			return true, nil
		}
	}
	return false, nil
}

// TaskUpdate carries the fields UpdateTask may change. Nil pointers leave the
// stored value untouched.
type TaskUpdate struct {
	Status       *models.TaskStatus
	ErrorMessage *string
	OutputPath   *string
	Started      bool
	Finished     bool
}

// UpdateTask applies a partial task mutation. Terminal tasks are never
// regressed: updating a succeeded/failed task to a non-terminal status is
// rejected.
func (s *Store) UpdateTask(taskID string, update TaskUpdate) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readDocLocked(DocTasks)
	if err != nil {
		return nil, err
	}
	raw, ok := data[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	var record models.TaskRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}

	if update.Status != nil {
		if record.Status.Terminal() {
			return nil, fmt.Errorf("task %s already %s", taskID, record.Status)
		}
		record.Status = *update.Status
	}
	if update.ErrorMessage != nil {
		record.ErrorMessage = *update.ErrorMessage
	}
	if update.OutputPath != nil {
		record.OutputPath = *update.OutputPath
	}
	now := nowUTC()
	if update.Started {
		record.StartedAt = &now
	}
	if update.Finished {
		record.FinishedAt = &now
	}

	encoded, err := json.Marshal(&record)
	if err != nil {
		return nil, fmt.Errorf("%w: encode task %s: %v", ErrStorage, taskID, err)
	}
	data[taskID] = encoded
	if err := s.writeDocLocked(DocTasks, data); err != nil {
		return nil, err
	}
	return &record, nil
}
