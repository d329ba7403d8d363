package neocities

import (
	"fmt"
	"path/filepath"
	"strings"
)

// RelPath converts p into a path relative to root, using forward slashes.
//
// A path under root (prefixed by it, or absolute and inside it) has the root
// stripped at a path-segment boundary. Any other relative path is taken to be
// root-relative already. Absolute paths outside root and paths climbing out
// with ".." are rejected with ErrPathOutsideRoot.
func RelPath(root, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathOutsideRoot)
	}

	cleanPath := filepath.Clean(filepath.FromSlash(p))
	cleanRoot := filepath.Clean(filepath.FromSlash(root))

	if rel, ok := under(cleanRoot, cleanPath); ok {
		return filepath.ToSlash(rel), nil
	}

	if filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRoot, p)
	}
	if cleanPath == "." || escapes(cleanPath) {
		return "", fmt.Errorf("%w: %s", ErrPathOutsideRoot, p)
	}
	return filepath.ToSlash(cleanPath), nil
}

// under reports whether p lies strictly inside root and returns the relative
// remainder. Mixed absolute/relative inputs are compared in absolute form.
func under(root, p string) (string, bool) {
	if filepath.IsAbs(root) != filepath.IsAbs(p) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", false
		}
		absPath, err := filepath.Abs(p)
		if err != nil {
			return "", false
		}
		root, p = absRoot, absPath
	}

	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || escapes(rel) {
		return "", false
	}
	return rel, true
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
