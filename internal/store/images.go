package store

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rzhai/acmtrack/internal/models"
)

const (
	maxImageSizeBytes   = 5 * 1024 * 1024
	maxImagesPerProblem = 10
)

var allowedImageExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".webp": {}, ".gif": {},
}

// ErrImageRejected indicates the uploaded image violates the size, count, or
// type limits.
var ErrImageRejected = errors.New("image rejected")

func (s *Store) solutionImagesDirLocked(source, id string) string {
	return filepath.Join(s.base, currentMonth(), "solution_images", fmt.Sprintf("%s_%s", source, id))
}

// SaveSolutionImage stores an uploaded image and records its metadata on the
// problem.
func (s *Store) SaveSolutionImage(source, id, filename string, content []byte, mimeType string) (*models.SolutionImageMeta, error) {
	if len(content) > maxImageSizeBytes {
		return nil, fmt.Errorf("%w: too large (max %dMB)", ErrImageRejected, maxImageSizeBytes/1024/1024)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedImageExts[ext]; !ok {
		return nil, fmt.Errorf("%w: unsupported type %s", ErrImageRejected, ext)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.ProblemKey(source, id)
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
	if len(record.SolutionImages) >= maxImagesPerProblem {
		return nil, fmt.Errorf("%w: max %d images allowed", ErrImageRejected, maxImagesPerProblem)
	}

	dir := s.solutionImagesDirLocked(source, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create images dir: %v", ErrStorage, err)
	}
	fileID := strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(dir, fileID+ext)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("%w: write image: %v", ErrStorage, err)
	}

	relative, err := filepath.Rel(s.base, path)
	if err != nil {
		relative = path
	}
	meta := models.SolutionImageMeta{
		ID:           fileID,
		Filename:     filename,
		MimeType:     mimeType,
		SizeBytes:    len(content),
		RelativePath: filepath.ToSlash(relative),
		CreatedAt:    nowUTC(),
	}
	if _, err := s.mutateProblemLocked(key, func(record *models.ProblemRecord) {
		record.SolutionImages = append(record.SolutionImages, meta)
	}); err != nil {
		return nil, err
	}
	return &meta, nil
}

// DeleteSolutionImage removes an attached image and its metadata.
func (s *Store) DeleteSolutionImage(source, id, imageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.ProblemKey(source, id)
	var removed *models.SolutionImageMeta
	if _, err := s.mutateProblemLocked(key, func(record *models.ProblemRecord) {
		for idx, img := range record.SolutionImages {
			if img.ID == imageID {
				copied := img
				removed = &copied
				record.SolutionImages = append(record.SolutionImages[:idx], record.SolutionImages[idx+1:]...)
				return
			}
		}
	}); err != nil {
		return err
	}
	if removed == nil {
		return fmt.Errorf("%w: image %s", ErrNotFound, imageID)
	}
	if removed.RelativePath != "" {
		_ = os.Remove(filepath.Join(s.base, filepath.FromSlash(removed.RelativePath)))
	}
	return nil
}

// SolutionImagePath resolves a stored image path, rejecting traversal out of
// the storage root.
func (s *Store) SolutionImagePath(relativePath string) (string, error) {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	full := filepath.Join(base, filepath.FromSlash(relativePath))
	resolved, err := filepath.Abs(full)
	if err != nil || !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: image %s", ErrNotFound, relativePath)
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("%w: image %s", ErrNotFound, relativePath)
	}
	return resolved, nil
}

// SolutionImageBase64 reads an attached image back as base64 for multimodal
// prompts. Missing or unreadable images return "", so one bad attachment
// does not sink a generation.
func (s *Store) SolutionImageBase64(relativePath string) string {
	path, err := s.SolutionImagePath(relativePath)
	if err != nil {
		return ""
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(content)
}
