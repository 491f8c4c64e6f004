package hooks

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/agentcli"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/moderator"
)

func writeTestTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestCompletionModerator(invoke func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error)) *moderator.CompletionModerator {
	c := moderator.New(zap.NewNop(), agentcli.New(zap.NewNop()), time.Second, 2)
	return moderator.NewCompletionModerator(zap.NewNop(), c, true, invoke)
}

func TestResponseScannerAllowsMissingTranscript(t *testing.T) {
	v := NewResponseScanner(ResponseScannerPatterns{}, newTestCompletionModerator(nil), 120*time.Second, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestResponseScannerAllowsGreeting(t *testing.T) {
	path := writeTestTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"Hello! How can I help?"}]}}`)
	patterns := ResponseScannerPatterns{Greeting: []CompiledRule{{Regexp: regexp.MustCompile(`^hello`)}}}
	v := NewResponseScanner(patterns, newTestCompletionModerator(nil), 120*time.Second, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{TranscriptPath: path}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestResponseScannerBlocksProhibitedPhrase(t *testing.T) {
	path := writeTestTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"The issue is clear, it's definitely X. WORK DONE"}]}}`)
	patterns := ResponseScannerPatterns{Prohibited: []CompiledRule{{Regexp: regexp.MustCompile(`(?i)the issue is clear`), Description: "unverified definitive claim"}}}
	v := NewResponseScanner(patterns, newTestCompletionModerator(nil), 120*time.Second, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{TranscriptPath: path}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionBlock, res.Decision)
	assert.Contains(t, res.Reason, "unverified definitive claim")
}

func TestResponseScannerBlocksMissingCompletionMarker(t *testing.T) {
	path := writeTestTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"Still working on this."}]}}`)
	v := NewResponseScanner(ResponseScannerPatterns{}, newTestCompletionModerator(nil), 120*time.Second, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{TranscriptPath: path}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionBlock, res.Decision)
	assert.Contains(t, res.Reason, "COMPLETION MARKER REQUIRED")
}

func TestResponseScannerDefersToCompletionModerator(t *testing.T) {
	path := writeTestTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"WORK DONE"}]}}`)
	cm := newTestCompletionModerator(func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error) {
		_ = os.WriteFile(auditLogPath, []byte("=== FIRST OUTPUT: x\n"), 0o644)
		return "ALLOW: all good", nil
	})
	v := NewResponseScanner(ResponseScannerPatterns{}, cm, 120*time.Second, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{TranscriptPath: path, SessionID: "sess-nonexistent-todos"}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}
