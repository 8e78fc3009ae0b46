package models

import "time"

// TaskStatus is the lifecycle state of a background generation task.
// A task is created queued, moves to running exactly once, and reaches
// exactly one of succeeded/failed. Terminal states never regress.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is one of the two terminal states.
func (s TaskStatus) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskKind selects what a generation task produces.
type TaskKind string

const (
	TaskGenerateSolution     TaskKind = "generate-solution"
	TaskGenerateTag          TaskKind = "generate-tag"
	TaskGenerateWeeklyReport TaskKind = "generate-weekly-report"
	TaskGeneratePhasedReport TaskKind = "generate-phased-report"
)

// TaskRecord is the persisted state of one unit of background work.
// The orchestrator is the only writer; everything else just observes.
type TaskRecord struct {
	TaskID       string     `json:"task_id"`
	Kind         TaskKind   `json:"task_type"`
	SubjectKey   string     `json:"subject_key"`
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	OutputPath   string     `json:"output_path,omitempty"`
	ProviderName string     `json:"provider_name,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Active reports whether the task still holds or will hold a worker slot.
func (t *TaskRecord) Active() bool {
	return t.Status == TaskQueued || t.Status == TaskRunning
}
