package keystore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound means no material is stored under the requested name.
var ErrNotFound = errors.New("secure storage: not found")

// FileStorage keeps key material in 0600 files under a 0700 directory.
// It stands in for the platform keychain on systems without one; material
// is hex-encoded so the files survive naive backup tooling.
type FileStorage struct {
	dir string
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) Get(name string) ([]byte, error) {
	raw, err := os.ReadFile(f.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	value, err := hex.DecodeString(string(raw))
	if err != nil {
		return nil, fmt.Errorf("decode key material: %w", err)
	}
	return value, nil
}

func (f *FileStorage) Put(name string, value []byte) error {
	return os.WriteFile(f.path(name), []byte(hex.EncodeToString(value)), 0o600)
}

func (f *FileStorage) Delete(name string) error {
	if err := os.Remove(f.path(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (f *FileStorage) path(name string) string {
	return filepath.Join(f.dir, name)
}
