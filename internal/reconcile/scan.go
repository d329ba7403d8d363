package reconcile

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/neocities-go/neocities/internal/config"
	"github.com/neocities-go/neocities/internal/services/neocities"
	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/afero"
)

// TempSuffix marks a download that has not been renamed into place yet.
const TempSuffix = ".neocities-download"

var defaultIgnoreLines = []string{
	".git",
	".svn",
	".hg",
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	"*.swp",
	"*.swo",
	"*~",
	".idea",
	".vscode",
}

// Scanner snapshots the local project directory.
type Scanner struct {
	fs     afero.Fs
	root   string
	ignore *gitignore.GitIgnore
}

// NewScanner builds a scanner for root. Patterns are added to the defaults and
// to the project's ignore file, if it has one.
func NewScanner(fs afero.Fs, root string, patterns []string) (*Scanner, error) {
	lines := append([]string{}, defaultIgnoreLines...)
	lines = append(lines, patterns...)

	fileLines, err := readIgnoreFile(fs, filepath.Join(root, config.IgnoreName))
	if err != nil {
		return nil, err
	}
	lines = append(lines, fileLines...)

	return &Scanner{
		fs:     fs,
		root:   root,
		ignore: gitignore.CompileIgnoreLines(lines...),
	}, nil
}

func readIgnoreFile(fs afero.Fs, p string) ([]string, error) {
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Root returns the directory being scanned.
func (s *Scanner) Root() string {
	return s.root
}

// ShouldIgnore reports whether rel, a root-relative slash path, is excluded from sync.
func (s *Scanner) ShouldIgnore(rel string, isDir bool) bool {
	switch rel {
	case config.RecordName, config.LockName, config.IgnoreName:
		return !isDir
	}
	if strings.HasSuffix(rel, TempSuffix) {
		return true
	}
	if isDir {
		return s.ignore.MatchesPath(rel) || s.ignore.MatchesPath(rel+"/")
	}
	return s.ignore.MatchesPath(rel)
}

// Scan walks the project directory and hashes every file that is not ignored.
// The result is sorted by path.
func (s *Scanner) Scan() ([]LocalFile, error) {
	var files []LocalFile

	err := afero.Walk(s.fs, s.root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.ShouldIgnore(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		hash, err := s.hash(p)
		if err != nil {
			return err
		}
		files = append(files, LocalFile{
			Path:    rel,
			Size:    info.Size(),
			Hash:    hash,
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) hash(p string) (string, error) {
	f, err := s.fs.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return neocities.HashSHA1(f)
}
