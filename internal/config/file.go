package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileBackend stores the settings as a YAML file. Writes go through a
// temp file plus rename so a crash mid-write cannot corrupt the stored
// settings.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend storing settings at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads and parses the settings file. A missing file reports
// ok=false without an error.
func (f *FileBackend) Load() (Persisted, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Persisted{}, false, nil
	}
	if err != nil {
		return Persisted{}, false, fmt.Errorf("read %s: %w", f.path, err)
	}

	var p Persisted
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Persisted{}, false, fmt.Errorf("parse %s: %w", f.path, err)
	}
	return p, true, nil
}

// Save writes the settings file atomically.
func (f *FileBackend) Save(p Persisted) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
