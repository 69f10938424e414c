package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"tellcocli/internal/dataset"
)

// ErrDatasetExists matches fs.ErrExist as well
var ErrDatasetExists = fmt.Errorf("dataset already exists: %w", fs.ErrExist)

// Manager stores and removes dataset files in the data directory
type Manager struct {
	dataDir string
	logger  *slog.Logger
}

// NewManager creates a manager rooted at dataDir
func NewManager(dataDir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dataDir: dataDir, logger: logger.With(slog.String("component", "file_manager"))}
}

// SaveDataset copies r into the data directory under name. The content is
// written to a temporary file first and renamed into place, so readers never
// see a partial dataset. An existing file is only replaced when overwrite is
// set.
func (m *Manager) SaveDataset(name string, r io.Reader, overwrite bool) (FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return FileInfo{}, err
	}
	format, err := dataset.DetectFormat(name)
	if err != nil {
		return FileInfo{}, err
	}

	dst := filepath.Join(m.dataDir, name)
	if !overwrite {
		if _, err := os.Stat(dst); err == nil {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrDatasetExists, name)
		}
	}

	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(m.dataDir, ".upload-*")
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return FileInfo{}, fmt.Errorf("failed to write dataset %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return FileInfo{}, fmt.Errorf("failed to sync dataset %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return FileInfo{}, fmt.Errorf("failed to close dataset %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return FileInfo{}, fmt.Errorf("failed to move dataset %s into place: %w", name, err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return FileInfo{}, err
	}

	m.logger.Info("Dataset saved",
		slog.String("name", name),
		slog.Int64("size_bytes", size),
		slog.Bool("overwrite", overwrite))

	return FileInfo{
		Path:    dst,
		Name:    name,
		Format:  format,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// DeleteDataset removes a dataset file
func (m *Manager) DeleteDataset(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	path := filepath.Join(m.dataDir, name)

	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
		}
		return fmt.Errorf("failed to delete dataset %s: %w", name, err)
	}

	m.logger.Info("Dataset deleted", slog.String("name", name))
	return nil
}
