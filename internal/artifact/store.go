package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Store persists an artifact at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a Store for path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Path returns the artifact location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the whole artifact to a temp file and renames it into place,
// so readers see either the previous document or the complete new one.
func (s *Store) Save(a Artifact) error {
	data, err := Marshal(a)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	tempPath := s.path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync artifact: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.logger.Info("saved artifact", "path", s.path, "tasks", len(a), "bytes", len(data))
	return nil
}

// Load reads and validates the artifact.
func (s *Store) Load() (Artifact, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	a, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	s.logger.Debug("loaded artifact", "path", s.path, "tasks", len(a))
	return a, nil
}

// Info describes the artifact file on disk.
type Info struct {
	Exists    bool      `json:"exists"`
	Path      string    `json:"path"`
	Size      int64     `json:"size,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Info returns information about the saved artifact.
func (s *Store) Info() Info {
	info := Info{Path: s.path}

	stat, err := os.Stat(s.path)
	if err != nil {
		return info
	}

	info.Exists = true
	info.Size = stat.Size()
	info.UpdatedAt = stat.ModTime()
	return info
}
