// Package executor implements discovery, sequential and bounded-parallel
// execution, and report writing shared by the audit/tasks/docs work kinds
// (spec §4.6, C7, §9 "Generic executor").
package executor

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// Discover resolves path to an ordered list of work items of kind (spec
// §4.6 "Discovery"). If path is a regular file, it is returned alone (if it
// matches include/exclude); if a directory, it is walked recursively.
func Discover(path string, kind model.WorkKind, include, exclude []string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if matchesIncludeExclude(path, include, exclude) {
			return []string{path}, nil
		}
		return nil, nil
	}

	var found []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(path, p)
		if relErr != nil {
			rel = p
		}
		if !matchesIncludeExclude(rel, include, exclude) {
			return nil
		}
		if kind == model.KindAudit && isSkippableInit(p) {
			return nil
		}
		found = append(found, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(found)
	return found, nil
}

// matchesIncludeExclude applies include globs, then excludes via both
// doublestar (Path.match equivalent) and filepath.Match (fnmatch
// equivalent) — spec §4.6 "exclude patterns applied by both Path.match and
// shell-style fnmatch".
func matchesIncludeExclude(relPath string, include, exclude []string) bool {
	normalized := filepath.ToSlash(relPath)

	included := len(include) == 0
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	for _, pattern := range exclude {
		if ok, _ := doublestar.Match(pattern, normalized); ok {
			return false
		}
		if ok, _ := filepath.Match(pattern, normalized); ok {
			return false
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(normalized)); ok {
			return false
		}
	}
	return true
}

// isSkippableInit implements spec §4.6's audit-only special rule: a Python
// __init__.py whose content strip is empty, or whose non-blank non-comment
// line count is zero, is skipped.
func isSkippableInit(path string) bool {
	if filepath.Base(path) != "__init__.py" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	if strings.TrimSpace(string(data)) == "" {
		return true
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return false
	}
	return true
}
