package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"detectionsite/internal/config"
	"detectionsite/internal/logger"

	"github.com/google/uuid"
)

const (
	// ImagesDir holds uploaded originals.
	ImagesDir = "images"
	// ProcessedImagesDir holds annotated copies.
	ProcessedImagesDir = "processed_images"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileStore keeps feed images on disk under a media root. Callers refer to
// files by paths relative to that root.
type FileStore struct {
	root   string
	logger *logger.Logger
}

// NewFileStore creates a FileStore rooted at the configured media directory.
func NewFileStore(config *config.Config, logger *logger.Logger) *FileStore {
	return &FileStore{
		root:   config.MediaDirectory,
		logger: logger,
	}
}

// Root returns the media root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Save writes data into dir under a cleaned version of name and returns the
// relative path. An existing file is never overwritten; a random suffix is
// appended instead.
func (s *FileStore) Save(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(filepath.Join(s.root, dir), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	base := CleanName(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	candidate := base
	for attempt := 0; attempt < 10; attempt++ {
		rel := filepath.ToSlash(filepath.Join(dir, candidate))
		full := filepath.Join(s.root, dir, candidate)

		file, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			candidate = fmt.Sprintf("%s_%s%s", stem, uuid.NewString()[:7], ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", rel, err)
		}

		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(full)
			return "", fmt.Errorf("failed to write %s: %w", rel, err)
		}
		if err := file.Close(); err != nil {
			os.Remove(full)
			return "", fmt.Errorf("failed to close %s: %w", rel, err)
		}

		s.logger.Info("Stored %s (%d bytes)", rel, len(data))
		return rel, nil
	}

	return "", fmt.Errorf("failed to find a free name for %s in %s", base, dir)
}

// Open reads the whole file at the relative path.
func (s *FileStore) Open(rel string) ([]byte, error) {
	full, err := s.Path(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rel, err)
	}
	return data, nil
}

// Path resolves a relative path inside the media root.
func (s *FileStore) Path(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty media path")
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("media path %q escapes the media root", rel)
	}
	return filepath.Join(s.root, clean), nil
}

// Exists reports whether a regular file is stored at the relative path.
func (s *FileStore) Exists(rel string) bool {
	full, err := s.Path(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// RemoveIfPresent deletes the file at the relative path when it exists.
// An empty path or a missing file is not an error.
func (s *FileStore) RemoveIfPresent(rel string) (bool, error) {
	if rel == "" || !s.Exists(rel) {
		return false, nil
	}

	full, _ := s.Path(rel)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to remove %s: %w", rel, err)
	}

	s.logger.Info("Removed %s", rel)
	return true, nil
}

// CleanName reduces an uploaded file name to a safe base name.
func CleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "image"
	}
	return name
}
