package inject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inlay-dev/inlay/pkg/buffer"
)

func TestReplaceStrategy(t *testing.T) {
	buf := buffer.New("a.go", "one\ntwo\nthree")
	res, err := Inject(buf, "TWO-A\nTWO-B", Options{
		Strategy: StrategyReplace,
		Range:    &buffer.Range{StartLine: 2, EndLine: 2},
		Filetype: "go",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.BodyLines)
	assert.Equal(t, "one\nTWO-A\nTWO-B\nthree", buf.Text())
}

func TestInsertStrategy(t *testing.T) {
	buf := buffer.New("a.go", "one\ntwo")
	_, err := Inject(buf, "mid", Options{
		Strategy: StrategyInsert,
		Range:    &buffer.Range{StartLine: 2, EndLine: 2},
		Filetype: "go",
	})
	require.NoError(t, err)
	assert.Equal(t, "one\nmid\ntwo", buf.Text())
}

func TestAppendStrategy(t *testing.T) {
	buf := buffer.New("a.go", "one")
	_, err := Inject(buf, "\nlast\n", Options{Strategy: StrategyAppend, Filetype: "go"})
	require.NoError(t, err)
	assert.Equal(t, "one\nlast", buf.Text(), "blank edges trimmed")
}

func TestReplaceWithoutRangeFails(t *testing.T) {
	buf := buffer.New("a.go", "one")
	before := buf.Text()
	_, err := Inject(buf, "x", Options{Strategy: StrategyReplace, Filetype: "go"})
	require.Error(t, err)
	assert.Equal(t, before, buf.Text())
}

func TestGoImportMerge(t *testing.T) {
	buf := buffer.New("a.go", "package main\n\nimport (\n\t\"fmt\"\n)\n\nfunc main() {\n}")
	code := "import \"os\"\nimport \"fmt\"\nfunc helper() {\n\tfmt.Println(os.Args)\n}"

	res, err := Inject(buf, code, Options{
		Strategy:    StrategyAppend,
		Filetype:    "go",
		SortImports: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportsAdded, "os is new")
	assert.Equal(t, 1, res.ImportsMerged, "fmt already present")

	text := buf.Text()
	assert.Contains(t, text, "import (\n\t\"fmt\"\n\t\"os\"\n)")
	assert.Contains(t, text, "func helper()")
	// Imports must not appear mid-file where the body landed.
	assert.NotContains(t, text, "}\nimport")
}

func TestGoImportAddedWhenNoneExist(t *testing.T) {
	buf := buffer.New("a.go", "package main\n\nfunc main() {\n}")
	_, err := Inject(buf, "import \"errors\"\nvar x = errors.New(\"x\")", Options{
		Strategy:    StrategyAppend,
		Filetype:    "go",
		SortImports: true,
	})
	require.NoError(t, err)
	assert.Contains(t, buf.Text(), "import \"errors\"")
}

func TestPythonImportMerge(t *testing.T) {
	buf := buffer.New("a.py", "#!/usr/bin/env python\nimport os\n\ndef main():\n    pass")
	res, err := Inject(buf, "import sys\nimport os\ndef helper():\n    sys.exit(0)", Options{
		Strategy:    StrategyAppend,
		Filetype:    "python",
		SortImports: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ImportsAdded)
	assert.Equal(t, 1, res.ImportsMerged)

	lines := buf.Lines()
	assert.Equal(t, "import os", lines[1])
	assert.Equal(t, "import sys", lines[2])
}

func TestSortImportsDisabledLeavesCodeAlone(t *testing.T) {
	buf := buffer.New("a.go", "package main")
	_, err := Inject(buf, "import \"os\"", Options{Strategy: StrategyAppend, Filetype: "go"})
	require.NoError(t, err)
	assert.Equal(t, "package main\nimport \"os\"", buf.Text())
}
