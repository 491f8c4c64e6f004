package hooks

import (
	"github.com/agentops-sh/orchestrator/internal/model"
)

// NewCommandValidator builds the PreToolUse command validator (spec §4.8
// "Command validator"): deny patterns loaded from YAML, applied only to
// the Bash tool's `command` field, first match wins.
func NewCommandValidator(denyPatterns []CompiledRule) Validator {
	return func(ctx Context) model.HookResult {
		event := ctx.Event
		if event.ToolName != "Bash" {
			return model.Allow()
		}
		if event.ToolInput == nil {
			return model.Allow()
		}

		command, _ := event.ToolInput["command"].(string)
		if rule := FirstMatch(denyPatterns, command); rule != nil {
			msg := rule.Message
			if msg == "" {
				msg = "Pattern violation detected"
			}
			return model.Deny(msg)
		}
		return model.Allow()
	}
}
