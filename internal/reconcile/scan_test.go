package reconcile

import (
	"strings"
	"testing"

	"github.com/neocities-go/neocities/internal/services/neocities"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
	}
}

func paths(files []LocalFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestScanner_Scan(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/site/index.html":                   "home",
		"/site/img/cat.png":                  "meow",
		"/site/config.toml":                  "site = 'x'",
		"/site/.neocities.lock":              "",
		"/site/page.html.neocities-download": "partial",
		"/site/.git/HEAD":                    "ref",
		"/site/.DS_Store":                    "junk",
	})

	scanner, err := NewScanner(fs, "/site", nil)
	require.NoError(t, err)

	files, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"img/cat.png", "index.html"}, paths(files))

	want, _ := neocities.HashSHA1(strings.NewReader("home"))
	assert.Equal(t, want, files[1].Hash)
	assert.Equal(t, int64(4), files[1].Size)
	assert.False(t, files[1].ModTime.IsZero())
}

func TestScanner_IgnorePatterns(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/site/index.html":       "home",
		"/site/draft.psd":        "layers",
		"/site/notes/todo.txt":   "later",
		"/site/build/out.html":   "built",
		"/site/.neocitiesignore": "# comment\nnotes/\n\n",
	})

	scanner, err := NewScanner(fs, "/site", []string{"*.psd", "build"})
	require.NoError(t, err)

	files, err := scanner.Scan()
	require.NoError(t, err)
	assert.Equal(t, []string{"index.html"}, paths(files))
}

func TestScanner_ShouldIgnore(t *testing.T) {
	scanner, err := NewScanner(afero.NewMemMapFs(), "/site", []string{"*.bak"})
	require.NoError(t, err)

	assert.True(t, scanner.ShouldIgnore("config.toml", false))
	assert.False(t, scanner.ShouldIgnore("docs/config.toml", false))
	assert.True(t, scanner.ShouldIgnore("a.html"+TempSuffix, false))
	assert.True(t, scanner.ShouldIgnore("old.bak", false))
	assert.True(t, scanner.ShouldIgnore(".git", true))
	assert.False(t, scanner.ShouldIgnore("index.html", false))
}

func TestScanner_EmptyDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/site", 0755))

	scanner, err := NewScanner(fs, "/site", nil)
	require.NoError(t, err)

	files, err := scanner.Scan()
	require.NoError(t, err)
	assert.Empty(t, files)
}
