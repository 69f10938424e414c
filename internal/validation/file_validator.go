package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tellcocli/internal/dataset"
)

var (
	// ErrFileTooLarge is returned for datasets above the size limit
	ErrFileTooLarge = errors.New("file too large")
	// ErrNotAFile is returned when a path names a directory
	ErrNotAFile = errors.New("not a regular file")
)

// FileValidator checks input datasets and output locations before the
// pipeline touches them
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateInputDirectory validates that the input directory exists
func (v *FileValidator) ValidateInputDirectory(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Error("Input directory does not exist",
			slog.String("directory", dir))
		return fmt.Errorf("input directory %s does not exist: %w", dir, err)
	}
	if err != nil {
		v.logger.Error("Failed to stat input directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		v.logger.Error("Input path is not a directory",
			slog.String("path", dir))
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	// Verify it's writable by creating a test file
	file, err := os.CreateTemp(dir, ".write_test")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(file.Name())

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return nil, fmt.Errorf("file %s does not exist: %w", path, err)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return nil, fmt.Errorf("%s: %w", path, ErrNotAFile)
	}

	// Check if file is readable by opening it
	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	return info, nil
}

// ValidateDatasetFile checks that path is a readable file with a supported
// extension and, when maxSize is positive, at most maxSize bytes. Excel
// lock files are rejected.
func (v *FileValidator) ValidateDatasetFile(path string, maxSize int64) (dataset.Format, error) {
	format, err := dataset.DetectFormat(path)
	if err != nil {
		v.logger.Error("Unsupported dataset format",
			slog.String("file", path),
			slog.String("extension", filepath.Ext(path)))
		return "", err
	}

	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Skipping temporary Excel file",
			slog.String("file", path))
		return "", fmt.Errorf("file %s is a temporary Excel file: %w", path, dataset.ErrInvalidArgument)
	}

	info, err := v.ValidateFile(path)
	if err != nil {
		return "", err
	}

	if maxSize > 0 && info.Size() > maxSize {
		v.logger.Error("Dataset exceeds size limit",
			slog.String("file", path),
			slog.Int64("size", info.Size()),
			slog.Int64("limit", maxSize))
		return "", fmt.Errorf("%s is %d bytes, limit is %d: %w", path, info.Size(), maxSize, ErrFileTooLarge)
	}

	v.logger.Debug("Dataset file validated",
		slog.String("file", path),
		slog.String("format", string(format)),
		slog.Int64("size", info.Size()))
	return format, nil
}

// ValidateExportPath checks that path has an export extension (.csv or
// .xlsx) and that its directory can be written
func (v *FileValidator) ValidateExportPath(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".xlsx":
	default:
		return &dataset.UnsupportedFormatError{Path: path, Ext: ext}
	}
	return v.ValidateOutputDirectory(filepath.Dir(path))
}
