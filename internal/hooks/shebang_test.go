package hooks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentops-sh/orchestrator/internal/model"
)

func TestShebangValidatorIgnoresNonPythonFiles(t *testing.T) {
	res := ShebangValidator(Context{Event: model.HookEvent{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "main.go", "content": "#!/bin/sh\nsudo rm -rf /"},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestShebangValidatorDeniesSudo(t *testing.T) {
	res := ShebangValidator(Context{Event: model.HookEvent{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "run.py", "content": "#!/bin/sh\nsudo python run.py"},
	}})
	assert.Equal(t, model.DecisionDeny, res.Decision)
	assert.Contains(t, res.Reason, "sudo")
}

func TestShebangValidatorDeniesDirectPython3ShebangWithoutWrapper(t *testing.T) {
	res := ShebangValidator(Context{Event: model.HookEvent{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "run.py", "content": "#!/usr/bin/env python3\nprint('hi')"},
	}})
	assert.Equal(t, model.DecisionDeny, res.Decision)
}

func TestShebangValidatorAllowsDirectPython3ShebangWithWrapperMention(t *testing.T) {
	res := ShebangValidator(Context{Event: model.HookEvent{
		ToolName:  "Write",
		ToolInput: map[string]any{"file_path": "run.py", "content": "#!/usr/bin/env python3\n# uses ami-run\nprint('hi')"},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}

func TestShebangValidatorEditSkippedWhenNoShebangInvolved(t *testing.T) {
	res := ShebangValidator(Context{Event: model.HookEvent{
		ToolName: "Edit",
		ToolInput: map[string]any{
			"file_path":  "run.py",
			"old_string": "x = 1",
			"new_string": "x = 2",
		},
	}})
	assert.Equal(t, model.DecisionAllow, res.Decision)
}
