// Package workspace handles companion ("coder") prompt files: discovering
// them in a project tree while honoring .gitignore, mapping them to their
// target source files, and watching them for changes.
package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// CompanionExt marks a companion prompt file: prompts written in
// "main.go.coder" target "main.go".
const CompanionExt = ".coder"

// IsCompanion reports whether path is a companion prompt file.
func IsCompanion(path string) bool {
	return strings.HasSuffix(path, CompanionExt)
}

// CompanionTarget maps a companion file to the source file its prompts
// target. Non-companion paths map to themselves.
func CompanionTarget(path string) string {
	return strings.TrimSuffix(path, CompanionExt)
}

// CompanionFor returns the companion path for a source file.
func CompanionFor(path string) string {
	return path + CompanionExt
}

// Discover walks root and returns every companion file not excluded by the
// project's .gitignore.
func Discover(root string) ([]string, error) {
	var matcher *ignore.GitIgnore
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		matcher = gi
	}

	var companions []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if d.IsDir() {
			if d.Name() == ".git" || (matcher != nil && matcher.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			return nil
		}
		if IsCompanion(path) {
			companions = append(companions, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover companion files under %s: %w", root, err)
	}
	return companions, nil
}

// Language guesses the language identifier for a path by extension, after
// unwrapping any companion suffix.
func Language(path string) string {
	switch filepath.Ext(CompanionTarget(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".rs":
		return "rust"
	case ".rb":
		return "ruby"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	default:
		return "text"
	}
}

// ReadCompanion loads a companion file's text.
func ReadCompanion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read companion file %s: %w", path, err)
	}
	return string(data), nil
}
