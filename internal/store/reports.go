package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rzhai/acmtrack/internal/models"
)

// UpdateReportStatus overwrites the reports-document entry for a target.
func (s *Store) UpdateReportStatus(insightType models.InsightType, target string, state models.ReportState, reportPath, errorMessage string) (*models.ReportStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readDocLocked(DocReports)
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	status := &models.ReportStatus{
		Target:       target,
		Status:       state,
		UpdatedAt:    &now,
		ReportPath:   reportPath,
		ErrorMessage: errorMessage,
	}
	encoded, err := json.Marshal(status)
	if err != nil {
		return nil, fmt.Errorf("%w: encode report status: %v", ErrStorage, err)
	}
	data[models.ReportKey(insightType, target)] = encoded
	if err := s.writeDocLocked(DocReports, data); err != nil {
		return nil, err
	}
	return status, nil
}

// GetReportStatus returns the recorded status for a target. When no record
// exists but the report file does (written by an older run), the file is
// reported as ready; otherwise the status is "none".
func (s *Store) GetReportStatus(insightType models.InsightType, target string) (*models.ReportStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.readDocLocked(DocReports)
	if err != nil {
		return nil, err
	}
	if raw, ok := data[models.ReportKey(insightType, target)]; ok {
		var status models.ReportStatus
		if json.Unmarshal(raw, &status) == nil {
			return &status, nil
		}
	}

	path := s.insightPathLocked(insightType, target)
	if info, err := os.Stat(path); err == nil {
		mod := info.ModTime().UTC()
		return &models.ReportStatus{
			Target:     target,
			Status:     models.ReportReady,
			UpdatedAt:  &mod,
			ReportPath: path,
		}, nil
	}
	return &models.ReportStatus{Target: target, Status: models.ReportNone}, nil
}

func (s *Store) insightPathLocked(insightType models.InsightType, target string) string {
	return filepath.Join(s.base, "insights", string(insightType), target+".md")
}

// SaveInsight writes a generated report and returns its path.
func (s *Store) SaveInsight(insightType models.InsightType, target, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.insightPathLocked(insightType, target)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("%w: create insights dir: %v", ErrStorage, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("%w: write insight: %v", ErrStorage, err)
	}
	return path, nil
}

// ReadInsight returns a stored report's content.
func (s *Store) ReadInsight(insightType models.InsightType, target string) (string, error) {
	s.mu.Lock()
	path := s.insightPathLocked(insightType, target)
	s.mu.Unlock()

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", fmt.Errorf("%w: %s report %s", ErrNotFound, insightType, target)
	}
	if err != nil {
		return "", fmt.Errorf("%w: read insight: %v", ErrStorage, err)
	}
	return string(content), nil
}
