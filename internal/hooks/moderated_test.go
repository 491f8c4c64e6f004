package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/agentcli"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/moderator"
)

func newTestDeps(t *testing.T, invoke Invoke) ModeratedDeps {
	t.Helper()
	return ModeratedDeps{
		Controller:  moderator.New(zap.NewNop(), agentcli.New(zap.NewNop()), time.Second, 2),
		Invoke:      invoke,
		AuditLogDir: t.TempDir(),
	}
}

func TestDiffAuditValidatorIgnoresOtherTools(t *testing.T) {
	deps := newTestDeps(t, nil)
	v := NewDiffAuditValidator(deps, "core", "{PATTERNS}", "no-eval", ".py", func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{ToolName: "Bash"}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestDiffAuditValidatorAllowsOnModeratorAllow(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "m.py")
	require.NoError(t, os.WriteFile(filePath, []byte("def foo(): pass\n"), 0o644))

	deps := newTestDeps(t, func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error) {
		_ = os.WriteFile(auditLogPath, []byte("=== FIRST OUTPUT: x\n"), 0o644)
		return "ALLOW", nil
	})
	v := NewDiffAuditValidator(deps, "core", "{PATTERNS}", "no-eval", ".py", func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": filePath, "content": "def foo(): return 1\n"},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestDiffAuditValidatorDeniesOnModeratorBlock(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "m.py")
	require.NoError(t, os.WriteFile(filePath, []byte("def foo(): pass\n"), 0o644))

	deps := newTestDeps(t, func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error) {
		_ = os.WriteFile(auditLogPath, []byte("=== FIRST OUTPUT: x\n"), 0o644)
		return "BLOCK: uses eval()", nil
	})
	v := NewDiffAuditValidator(deps, "core", "{PATTERNS}", "no-eval", ".py", func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": filePath, "content": "eval('1')\n"},
	}})
	assert.Equal(t, model.DecisionDeny, res.Decision)
	assert.Contains(t, res.Reason, "eval")
}

func TestResearchValidatorSkipsTrivialChanges(t *testing.T) {
	deps := newTestDeps(t, nil)
	v := NewResearchValidator(deps, 5, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{
		ToolName:       "Write",
		TranscriptPath: "/tmp/whatever.jsonl",
		ToolInput:      map[string]any{"file_path": "m.py", "content": "x = 1\n"},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestTodoValidatorSkipsWhenNothingCompleted(t *testing.T) {
	deps := newTestDeps(t, nil)
	v := NewTodoValidator(deps, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{
		ToolName:       "TodoWrite",
		TranscriptPath: "/tmp/whatever.jsonl",
		SessionID:      "sess-x",
		ToolInput: map[string]any{"todos": []any{
			map[string]any{"content": "a", "status": "pending", "activeForm": "Doing a"},
		}},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestMaliciousBehaviorValidatorIgnoresOtherTools(t *testing.T) {
	deps := newTestDeps(t, nil)
	v := NewMaliciousBehaviorValidator(deps, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{ToolName: "Read"}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestMaliciousBehaviorValidatorDeniesOnBlock(t *testing.T) {
	path := writeTestTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"let's disable the CI checks"}]}}`)
	deps := newTestDeps(t, func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error) {
		_ = os.WriteFile(auditLogPath, []byte("=== FIRST OUTPUT: x\n"), 0o644)
		return "BLOCK: attempting to bypass CI", nil
	})
	v := NewMaliciousBehaviorValidator(deps, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{
		ToolName:       "Bash",
		TranscriptPath: path,
		ToolInput:      map[string]any{"command": "echo 'skip ci' >> .git/hooks/pre-commit"},
	}, Log: zap.NewNop()})
	assert.Equal(t, model.DecisionDeny, res.Decision)
	assert.Contains(t, res.Reason, "bypass CI")
}

func TestTodoValidatorInvokesModeratorWhenCompleted(t *testing.T) {
	path := writeTestTranscript(t, `{"type":"assistant","message":{"content":[{"type":"text","text":"done"}]}}`)
	deps := newTestDeps(t, func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error) {
		_ = os.WriteFile(auditLogPath, []byte("=== FIRST OUTPUT: x\n"), 0o644)
		return "ALLOW", nil
	})
	v := NewTodoValidator(deps, func() string { return "e1" })
	res := v(Context{Event: model.HookEvent{
		ToolName:       "TodoWrite",
		TranscriptPath: path,
		SessionID:      "sess-y",
		ToolInput: map[string]any{"todos": []any{
			map[string]any{"content": "a", "status": "completed", "activeForm": "Doing a"},
		}},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}
