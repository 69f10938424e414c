package files

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"tellcocli/internal/dataset"
)

var (
	// ErrDatasetNotFound matches fs.ErrNotExist as well
	ErrDatasetNotFound = fmt.Errorf("dataset not found: %w", fs.ErrNotExist)
	// ErrInvalidName matches dataset.ErrInvalidArgument as well
	ErrInvalidName = fmt.Errorf("invalid dataset name: %w", dataset.ErrInvalidArgument)
)

// FileInfo represents a dataset file found in the data directory
type FileInfo struct {
	Path    string         `json:"-"`
	Name    string         `json:"name"`
	Format  dataset.Format `json:"format"`
	Size    int64          `json:"size_bytes"`
	ModTime time.Time      `json:"modified_at"`
}

// Discovery lists and resolves dataset files in one directory
type Discovery struct {
	dataDir string
	logger  *slog.Logger
}

// NewDiscovery creates a discovery rooted at dataDir
func NewDiscovery(dataDir string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{dataDir: dataDir, logger: logger.With(slog.String("component", "discovery"))}
}

// Dir returns the data directory
func (d *Discovery) Dir() string {
	return d.dataDir
}

// FindDatasets lists the supported dataset files sorted by name. Hidden
// files and Excel lock files are skipped. A missing data directory yields
// an empty list.
func (d *Discovery) FindDatasets() ([]FileInfo, error) {
	entries, err := os.ReadDir(d.dataDir)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Warn("Data directory does not exist", slog.String("directory", d.dataDir))
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", d.dataDir, err)
	}

	files := []FileInfo{}
	for _, entry := range entries {
		if entry.IsDir() || skipName(entry.Name()) {
			continue
		}
		format, err := dataset.DetectFormat(entry.Name())
		if err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(d.dataDir, entry.Name()),
			Name:    entry.Name(),
			Format:  format,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	d.logger.Debug("Datasets discovered",
		slog.String("directory", d.dataDir),
		slog.Int("count", len(files)))
	return files, nil
}

// Resolve maps a dataset name to its file. Names must be plain file names
// inside the data directory with a supported extension.
func (d *Discovery) Resolve(name string) (FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return FileInfo{}, err
	}
	format, err := dataset.DetectFormat(name)
	if err != nil {
		return FileInfo{}, err
	}

	path := filepath.Join(d.dataDir, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return FileInfo{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat dataset %s: %w", name, err)
	}

	return FileInfo{
		Path:    path,
		Name:    name,
		Format:  format,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// ValidateName rejects names that are empty, hidden or not a single path
// element
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if skipName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}

func skipName(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
}
