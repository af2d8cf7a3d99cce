package cache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// DiskStore is a Store backed by a plain directory tree, one file per
// path, for persistence tests that need a real round trip through the
// filesystem rather than a map.
type DiskStore struct {
	root string
}

// NewDiskStore returns a DiskStore rooted at dir. dir is created if
// missing.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "cache: creating disk store root")
	}
	return &DiskStore{root: dir}, nil
}

func (s *DiskStore) full(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func (s *DiskStore) Get(path string) ([]byte, error) {
	buf, err := ioutil.ReadFile(s.full(path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache: reading from disk store")
	}
	return buf, nil
}

func (s *DiskStore) Set(path string, data []byte) error {
	full := s.full(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.Wrap(err, "cache: creating parent directory")
	}
	if err := ioutil.WriteFile(full, data, 0o644); err != nil {
		return errors.Wrap(err, "cache: writing to disk store")
	}
	return nil
}

func (s *DiskStore) Delete(path string) error {
	err := os.Remove(s.full(path))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "cache: deleting from disk store")
	}
	return nil
}

func (s *DiskStore) List(prefix string) ([]string, error) {
	var out []string
	err := filepath.Walk(s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cache: listing disk store")
	}
	sort.Strings(out)
	return out, nil
}
