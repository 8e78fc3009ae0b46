package models

import (
	"fmt"
	"time"
)

// InsightType is the kind of periodic training report.
type InsightType string

const (
	InsightWeekly InsightType = "weekly"
	InsightPhased InsightType = "phased"
)

// ReportState mirrors the subject-side status of a report target, updated by
// the orchestrator alongside the owning task record.
type ReportState string

const (
	ReportNone       ReportState = "none"
	ReportGenerating ReportState = "generating"
	ReportReady      ReportState = "ready"
	ReportFailed     ReportState = "failed"
)

// ReportStatus is the persisted per-target report entry.
type ReportStatus struct {
	Target       string      `json:"target"`
	Status       ReportState `json:"status"`
	UpdatedAt    *time.Time  `json:"updated_at,omitempty"`
	ReportPath   string      `json:"report_path,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// ReportKey builds the reports-document key for a report target.
func ReportKey(insightType InsightType, target string) string {
	return fmt.Sprintf("%s:%s", insightType, target)
}

// StatsPeriod is the bucketing granularity of a stats series.
type StatsPeriod string

const (
	PeriodDay   StatsPeriod = "day"
	PeriodWeek  StatsPeriod = "week"
	PeriodMonth StatsPeriod = "month"
)

// StatsPoint is one bucket of solve counts.
type StatsPoint struct {
	PeriodStart    string `json:"period_start"`
	PeriodEnd      string `json:"period_end"`
	SolvedCount    int    `json:"solved_count"`
	AttemptedCount int    `json:"attempted_count"`
	UnsolvedCount  int    `json:"unsolved_count"`
	TotalCount     int    `json:"total_count"`
}

// StatsSeries is a bucketed view of solve activity over a date range.
type StatsSeries struct {
	Period   StatsPeriod  `json:"period"`
	FromDate string       `json:"from_date"`
	ToDate   string       `json:"to_date"`
	Points   []StatsPoint `json:"points"`
}
