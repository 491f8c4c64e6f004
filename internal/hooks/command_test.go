package hooks

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func TestCommandValidatorIgnoresNonBashTools(t *testing.T) {
	v := NewCommandValidator(nil)
	res := v(Context{Event: model.HookEvent{ToolName: "Write"}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestCommandValidatorDeniesMatchingPattern(t *testing.T) {
	rules := []CompiledRule{{Regexp: regexp.MustCompile(`rm -rf /`), Message: "dangerous recursive delete"}}
	v := NewCommandValidator(rules)
	res := v(Context{Event: model.HookEvent{
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "rm -rf / --no-preserve-root"},
	}})
	assert.Equal(t, model.DecisionDeny, res.Decision)
	assert.Contains(t, res.Reason, "dangerous recursive delete")
}

func TestCommandValidatorAllowsNonMatchingCommand(t *testing.T) {
	rules := []CompiledRule{{Regexp: regexp.MustCompile(`rm -rf /`), Message: "x"}}
	v := NewCommandValidator(rules)
	res := v(Context{Event: model.HookEvent{
		ToolName:  "Bash",
		ToolInput: map[string]any{"command": "ls -la"},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestCommandValidatorOnlyChecksCommandField(t *testing.T) {
	rules := []CompiledRule{{Regexp: regexp.MustCompile(`rm -rf /`), Message: "x"}}
	v := NewCommandValidator(rules)
	res := v(Context{Event: model.HookEvent{
		ToolName: "Bash",
		ToolInput: map[string]any{
			"command":     "ls",
			"description": "rm -rf / mentioned only in description",
		},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}
