package tokenstore

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileBackend stores each key as a file under a directory. Keys are encoded
// so arbitrary key names cannot escape the directory.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the backing directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("[NewFileBackend] dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileBackend] mkdir")
	}
	return &FileBackend{dir: dir}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, base64.RawURLEncoding.EncodeToString([]byte(key)))
}

func (b *FileBackend) Read(key string) (string, error) {
	data, err := os.ReadFile(b.path(key))
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(err, "[FileBackend.Read] read file")
	}
	return string(data), nil
}

func (b *FileBackend) Write(key, value string) error {
	if err := os.WriteFile(b.path(key), []byte(value), 0o600); err != nil {
		return errors.Wrap(err, "[FileBackend.Write] write file")
	}
	return nil
}

func (b *FileBackend) Delete(key string) error {
	err := os.Remove(b.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileBackend.Delete] remove file")
	}
	return nil
}
