package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPatternsMissingFileReturnsEmpty(t *testing.T) {
	rules, err := LoadPatterns(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestLoadPatternsCompilesAndMatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := "patterns:\n  - pattern: 'rm -rf /'\n    message: 'dangerous'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadPatterns(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	match := FirstMatch(rules, "rm -rf / --no-preserve-root")
	require.NotNil(t, match)
	assert.Equal(t, "dangerous", match.Message)

	assert.Nil(t, FirstMatch(rules, "ls -la"))
}

func TestLoadPatternsEmptyPathReturnsEmpty(t *testing.T) {
	rules, err := LoadPatterns("")
	require.NoError(t, err)
	assert.Empty(t, rules)
}
