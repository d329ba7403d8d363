package devserver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/spf13/afero"
)

var errNotFound = errors.New("not found")

// Store keeps the site's files in an afero filesystem rooted at "/".
type Store struct {
	fs afero.Fs
	mu sync.RWMutex
}

// NewStore wraps fs. Use afero.NewBasePathFs to back a store with a directory.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

func storePath(rel string) string {
	return "/" + rel
}

// List returns every file and directory under dir ("" is the whole site),
// sorted by path.
func (s *Store) List(dir string) ([]neocities.RemoteFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := ""
	if dir != "" {
		clean, err := neocities.RelPath("", dir)
		if err != nil {
			return nil, err
		}
		prefix = clean + "/"
	}

	files := []neocities.RemoteFile{}
	err := afero.Walk(s.fs, "/", func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel := strings.TrimPrefix(filepath.ToSlash(p), "/")
		if rel == "" || !strings.HasPrefix(rel, prefix) {
			return nil
		}

		entry := neocities.RemoteFile{
			Path:        rel,
			IsDirectory: info.IsDir(),
			UpdatedAt:   neocities.Timestamp{Time: info.ModTime().UTC()},
		}
		if !info.IsDir() {
			size := info.Size()
			entry.Size = &size
			sum, err := s.hashLocked(rel)
			if err != nil {
				return err
			}
			entry.SHA1Hash = sum
		}
		files = append(files, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Write stores r under rel, creating parent directories.
func (s *Store) Write(rel string, r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := storePath(rel)
	if err := s.fs.MkdirAll(path.Dir(p), 0755); err != nil {
		return err
	}
	return afero.WriteReader(s.fs, p, r)
}

// Delete removes every path, or nothing if any of them is missing.
func (s *Store) Delete(rels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rel := range rels {
		if exists, _ := afero.Exists(s.fs, storePath(rel)); !exists {
			return fmt.Errorf("%s: %w", rel, errNotFound)
		}
	}
	for _, rel := range rels {
		if err := s.fs.RemoveAll(storePath(rel)); err != nil {
			return err
		}
	}
	return nil
}

// Read returns the contents of a file.
func (s *Store) Read(rel string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := storePath(rel)
	if isDir, err := afero.IsDir(s.fs, p); err != nil || isDir {
		return nil, fmt.Errorf("%s: %w", rel, errNotFound)
	}
	return afero.ReadFile(s.fs, p)
}

func (s *Store) hashLocked(rel string) (string, error) {
	f, err := s.fs.Open(storePath(rel))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return neocities.HashSHA1(f)
}
