package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNestedTarget indicates the migration target lives inside the current
// storage root.
var ErrNestedTarget = errors.New("target storage directory cannot be inside current storage directory")

// MigrationResult summarizes a completed storage-root switch.
type MigrationResult struct {
	Changed        bool   `json:"changed"`
	Source         string `json:"source"`
	Target         string `json:"target"`
	MovedEntries   int    `json:"moved_entries"`
	RenamedEntries int    `json:"renamed_entries"`
}

// SwitchBase moves every top-level entry of the storage root into newBase and
// repoints the store. Name collisions in the target are renamed with a
// timestamp suffix. The in-memory base path only changes after the move
// succeeds. Refuses to run while any task is queued or running, so no
// in-flight generation writes into a directory being relocated.
func (s *Store) SwitchBase(newBase string) (*MigrationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active, err := s.hasActiveTasksLocked()
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("%w: storage migration refused", ErrTasksActive)
	}

	oldBase := s.base
	target, err := filepath.Abs(expandHome(newBase))
	if err != nil {
		return nil, fmt.Errorf("resolve target dir: %w", err)
	}

	result := &MigrationResult{Source: oldBase, Target: target}
	if target == oldBase {
		return result, nil
	}
	if strings.HasPrefix(target, oldBase+string(filepath.Separator)) {
		return nil, ErrNestedTarget
	}
	if info, err := os.Stat(target); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("target storage path exists and is not a directory")
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create target dir: %v", ErrStorage, err)
	}

	entries, err := os.ReadDir(oldBase)
	if err != nil {
		return nil, fmt.Errorf("%w: list storage root: %v", ErrStorage, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		destination := filepath.Join(target, entry.Name())
		if _, err := os.Stat(destination); err == nil {
			destination = renamedMigrationPath(target, entry.Name())
			result.RenamedEntries++
		}
		if err := os.Rename(filepath.Join(oldBase, entry.Name()), destination); err != nil {
			return nil, fmt.Errorf("%w: move %s: %v", ErrStorage, entry.Name(), err)
		}
		result.MovedEntries++
	}

	s.base = target
	if err := s.ensureLayoutLocked(); err != nil {
		return nil, err
	}

	// Old root stays behind only if something else dropped files into it.
	_ = os.Remove(oldBase)

	result.Changed = true
	return result, nil
}

// renamedMigrationPath builds a collision-free destination name carrying a
// timestamp suffix, preserving the extension for plain files.
func renamedMigrationPath(targetDir, sourceName string) string {
	suffix := filepath.Ext(sourceName)
	stem := strings.TrimSuffix(sourceName, suffix)

	stamp := nowUTC().Format("20060102_150405")
	candidate := filepath.Join(targetDir, fmt.Sprintf("%s__migrated_%s%s", stem, stamp, suffix))
	for idx := 2; ; idx++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
		candidate = filepath.Join(targetDir, fmt.Sprintf("%s__migrated_%s_%d%s", stem, stamp, idx, suffix))
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
