// Package store implements the file-backed record store shared by the HTTP
// layer and the task orchestrator. Four JSON documents (problems, tasks,
// reports, settings) live under one base directory as whole-file key→record
// maps; a single process-wide mutex serializes every read-modify-write so no
// caller ever observes a half-updated document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Document names the four persisted JSON documents.
type Document string

const (
	DocProblems Document = "problems"
	DocTasks    Document = "tasks"
	DocReports  Document = "reports"
	DocSettings Document = "settings"
)

// Sentinel errors for store operations. Check with errors.Is().
var (
	// ErrStorage indicates a disk I/O failure on write (or a read failure
	// that is not "file absent"). These must propagate to the caller.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrTasksActive indicates an operation was refused because generation
	// tasks are queued or running.
	ErrTasksActive = errors.New("tasks are queued or running")
)

// Store is the atomic file-backed record store. All exported methods are safe
// for concurrent use; each acquires the store mutex for its full
// read-modify-write cycle.
type Store struct {
	mu     sync.Mutex
	base   string
	logger *slog.Logger
}

// New opens (or initializes) a store rooted at baseDir.
func New(baseDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base dir: %w", err)
	}
	s := &Store{base: abs, logger: logger}
	if err := s.ensureLayoutLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// BaseDir returns the current storage root.
func (s *Store) BaseDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

func (s *Store) docPath(doc Document) string {
	return filepath.Join(s.base, string(doc)+".json")
}

// ensureLayoutLocked creates the base directory and seeds absent documents.
// Caller must hold the mutex (or be the constructor).
func (s *Store) ensureLayoutLocked() error {
	if err := os.MkdirAll(s.base, 0o755); err != nil {
		return fmt.Errorf("%w: create base dir: %v", ErrStorage, err)
	}
	for _, doc := range []Document{DocProblems, DocTasks, DocReports} {
		path := s.docPath(doc)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			if err := s.writeDocLocked(doc, map[string]json.RawMessage{}); err != nil {
				return err
			}
		}
	}
	if _, err := os.Stat(s.docPath(DocSettings)); errors.Is(err, fs.ErrNotExist) {
		bundle := s.defaultSettingsLocked()
		if err := s.writeSettingsLocked(bundle); err != nil {
			return err
		}
	}
	return nil
}

// readDocLocked loads a whole document. An absent file or invalid JSON is
// silent-recovered to an empty map: the store is advisory cache-like state
// and the next write overwrites any corruption. Any other read failure is a
// storage error that must propagate. Caller must hold the mutex.
func (s *Store) readDocLocked(doc Document) (map[string]json.RawMessage, error) {
	raw, err := os.ReadFile(s.docPath(doc))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, doc, err)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("document is not valid JSON, treating as empty", "document", doc, "error", err)
		return map[string]json.RawMessage{}, nil
	}
	if out == nil {
		out = map[string]json.RawMessage{}
	}
	return out, nil
}

// writeDocLocked serializes and overwrites the whole document. Caller must
// hold the mutex.
func (s *Store) writeDocLocked(doc Document, records map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, doc, err)
	}
	if err := os.WriteFile(s.docPath(doc), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, doc, err)
	}
	return nil
}

// Read returns the full key→record map of a document.
func (s *Store) Read(doc Document) (map[string]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readDocLocked(doc)
}

// Write replaces the full key→record map of a document.
func (s *Store) Write(doc Document, records map[string]json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeDocLocked(doc, records)
}

// Upsert performs a read-mutate-write of a single key under the store lock.
func (s *Store) Upsert(doc Document, key string, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.readDocLocked(doc)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: encode record %s/%s: %v", ErrStorage, doc, key, err)
	}
	data[key] = raw
	return s.writeDocLocked(doc, data)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

// currentMonth returns the month directory name for new artifacts.
func currentMonth() string {
	return nowUTC().Format("2006-01")
}

func monthOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}
