package usage

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// DefaultFile is the artifact name used when none is configured.
const DefaultFile = "global_usage.json"

// Store loads and saves a run's artifact.
type Store interface {
	// Load returns the persisted usages. A missing artifact is not an error.
	Load(ctx context.Context) ([]Usage, error)

	// Save replaces the persisted artifact with usages.
	Save(ctx context.Context, usages []Usage) error

	// Close releases backend resources.
	Close() error
}

// Raw returns the encoded artifact as stored, for serving it verbatim.
// A missing artifact yields an empty FeatureCollection.
type Raw interface {
	Raw(ctx context.Context) ([]byte, error)
}

// FileStore keeps the artifact as a GeoJSON file.
type FileStore struct {
	path   string
	logger *log.Logger
}

// NewFileStore creates a store at path. The file need not exist.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	if path == "" {
		path = DefaultFile
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the artifact path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context) ([]Usage, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	usages, skipped, err := Read(f)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed features", "path", s.path, "count", skipped)
	}
	return usages, nil
}

// Save writes to a temporary file next to the artifact and renames it into
// place, so readers never see a partial document.
func (s *FileStore) Save(ctx context.Context, usages []Usage) error {
	data, err := Marshal(usages)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) Raw(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		return Marshal(nil)
	}
	return data, err
}

// Close does nothing.
func (s *FileStore) Close() error { return nil }

var (
	_ Store = (*FileStore)(nil)
	_ Raw   = (*FileStore)(nil)
)
