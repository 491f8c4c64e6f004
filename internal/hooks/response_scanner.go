package hooks

import (
	"context"
	"strings"
	"time"

	"github.com/agentops-sh/orchestrator/internal/markers"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/moderator"
	"github.com/agentops-sh/orchestrator/internal/transcript"
)

// ResponseScannerPatterns bundles the three YAML pattern sets the response
// scanner consults before deferring to the completion moderator
// (spec §4.9 steps 3–5).
type ResponseScannerPatterns struct {
	Greeting   []CompiledRule
	APILimit   []CompiledRule
	Prohibited []CompiledRule
}

// NewResponseScanner implements §4.9's seven-step Stop/SubagentStop
// validator: the front end to the completion moderator.
func NewResponseScanner(patterns ResponseScannerPatterns, cm *moderator.CompletionModerator, frameworkTimeout time.Duration, execIDFn func() string) Validator {
	return func(ctx Context) model.HookResult {
		event := ctx.Event

		// Step 1: missing/empty transcript path -> allow.
		if event.TranscriptPath == "" {
			return model.Allow()
		}

		messages, err := transcript.ReadMessages(ctx.Log, event.TranscriptPath)
		if err != nil || len(messages) == 0 {
			return model.Allow()
		}

		// Step 2: extract last assistant message.
		lastMessage := transcript.LastAssistantText(messages)
		if lastMessage == "" {
			return model.Allow()
		}

		// Step 3: greeting-only exchange -> allow.
		lastLower := strings.ToLower(strings.TrimSpace(lastMessage))
		if FirstMatch(patterns.Greeting, lastLower) != nil {
			return model.Allow()
		}

		// Step 4: API-limit pattern -> allow.
		if FirstMatch(patterns.APILimit, lastMessage) != nil {
			return model.Allow()
		}

		// Step 5: prohibited communication phrase -> block.
		if rule := FirstMatch(patterns.Prohibited, lastMessage); rule != nil {
			reason := rule.Description
			if reason == "" {
				reason = "prohibited communication pattern detected"
			}
			return model.Block(reason)
		}

		// Step 6: no completion marker -> block.
		marker := markers.ParseCompletionMarker(lastMessage)
		if marker.Type == model.MarkerNone {
			return model.Block("COMPLETION MARKER REQUIRED")
		}

		// Step 7: defer to the completion moderator.
		execID := execIDFn()
		return cm.Decide(context.Background(), event.SessionID, execID, event.TranscriptPath, marker, frameworkTimeout)
	}
}
