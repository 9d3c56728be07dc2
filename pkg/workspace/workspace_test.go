package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanionMapping(t *testing.T) {
	assert.True(t, IsCompanion("main.go.coder"))
	assert.False(t, IsCompanion("main.go"))
	assert.Equal(t, "main.go", CompanionTarget("main.go.coder"))
	assert.Equal(t, "app.py", CompanionTarget("app.py"))
	assert.Equal(t, "app.py.coder", CompanionFor("app.py"))
}

func TestDiscoverHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	write(".gitignore", "vendor/\nignored.go.coder\n")
	write("main.go.coder", "/@ fix @/")
	write("ignored.go.coder", "/@ nope @/")
	write("vendor/dep.go.coder", "/@ nope @/")
	write("pkg/util.py.coder", "/@ doc @/")
	write("pkg/util.py", "pass")

	got, err := Discover(root)
	require.NoError(t, err)

	var rels []string
	for _, p := range got {
		rel, _ := filepath.Rel(root, p)
		rels = append(rels, rel)
	}
	assert.ElementsMatch(t, []string{"main.go.coder", filepath.Join("pkg", "util.py.coder")}, rels)
}

func TestDiscoverWithoutGitignore(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.js.coder"), []byte("x"), 0644))
	got, err := Discover(root)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLanguageDetection(t *testing.T) {
	assert.Equal(t, "go", Language("main.go.coder"))
	assert.Equal(t, "python", Language("app.py"))
	assert.Equal(t, "typescript", Language("ui.tsx"))
	assert.Equal(t, "text", Language("README.md"))
}
