package documents

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// LocalSource keeps résumés under a root directory.
type LocalSource struct {
	root string
}

// NewLocalSource creates a LocalSource rooted at dir.
func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{root: dir}
}

func (s *LocalSource) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if key == "" || strings.Contains(key, "..") || clean == string(filepath.Separator) {
		return "", eris.Wrapf(ErrBadPath, "%q", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Read returns the file contents for key.
func (s *LocalSource) Read(_ context.Context, key string) ([]byte, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrNotFound, "%s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "documents: open %s", key)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(f, MaxSize+1))
	if err != nil {
		return nil, eris.Wrapf(err, "documents: read %s", key)
	}
	if len(data) > MaxSize {
		return nil, eris.Wrapf(ErrTooLarge, "%s", key)
	}
	return data, nil
}

// Put writes data to key, creating parent directories.
func (s *LocalSource) Put(_ context.Context, key string, data []byte) error {
	if len(data) > MaxSize {
		return eris.Wrapf(ErrTooLarge, "%s", key)
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return eris.Wrapf(err, "documents: mkdir for %s", key)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return eris.Wrapf(err, "documents: write %s", key)
	}
	return nil
}
