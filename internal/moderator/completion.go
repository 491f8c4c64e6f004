package moderator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/markers"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/tokencount"
	"github.com/agentops-sh/orchestrator/internal/transcript"
)

const (
	maxContextMessages = 100
	maxContextTokens   = 100_000
)

// CompletionModerator implements the §4.10 completion moderator (C8): the
// LLM-backed arbiter the Stop/SubagentStop response scanner defers to once
// a completion marker is present.
type CompletionModerator struct {
	log        *zap.Logger
	controller *Controller
	enabled    bool
	// invoke spawns the moderator agent CLI and streams its output to
	// auditLogPath, returning the captured text. Wired by the executor/CLI
	// layer to an agentcli.Driver-backed closure.
	invoke func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error)
}

// NewCompletionModerator builds a completion moderator. enabled mirrors the
// config flag `completion_moderator_enabled`.
func NewCompletionModerator(log *zap.Logger, controller *Controller, enabled bool, invoke func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error)) *CompletionModerator {
	return &CompletionModerator{log: log, controller: controller, enabled: enabled, invoke: invoke}
}

// Decide runs the full §4.10 pipeline for one assistant message that
// already carries a completion marker.
func (c *CompletionModerator) Decide(ctx context.Context, sessionID, execID, transcriptPath string, marker model.CompletionMarker, frameworkTimeout time.Duration) model.HookResult {
	if !c.enabled {
		return model.Allow()
	}

	if marker.Type == model.MarkerWorkDone {
		todos := LoadTodos(sessionID)
		incomplete := IncompleteTodos(todos)
		if len(incomplete) > 0 {
			return model.Block(formatIncompleteTodosReason(incomplete))
		}
	}

	convoContext, todos, err := c.buildContext(sessionID, transcriptPath)
	if err != nil {
		return model.Block(fmt.Sprintf("COMPLETION VALIDATION ERROR\n\nFailed to read conversation context: %v", err))
	}
	if convoContext == "" {
		return model.Allow()
	}

	auditLogPath := fmt.Sprintf("logs/agent-cli/completion-moderator-%s.log", execID)
	prompt := buildModeratorPrompt(convoContext, todos)

	if d := frameworkTimeout - 5*time.Second; d > 0 {
		time.AfterFunc(d, func() {
			c.log.Warn("completion moderator approaching framework timeout",
				zap.String("session_id", sessionID), zap.String("execution_id", execID))
		})
	}

	output, err := c.controller.RunWithRetry(ctx, auditLogPath, func(ctx context.Context, timeout time.Duration, logPath string) (string, error) {
		return c.invoke(ctx, prompt, logPath, timeout)
	})
	if err != nil {
		return c.classifyFailure(err)
	}

	decision := markers.ParseCompletionDecision(output)
	if decision.Allowed {
		return model.HookResult{Decision: model.DecisionAllow, SystemMessage: "✅ MODERATOR: " + decision.Reason}
	}
	return model.Block(decision.Reason)
}

func (c *CompletionModerator) classifyFailure(err error) model.HookResult {
	// Timeout vs execution-error distinction is carried in the error text
	// produced by agentcli (spec §7 TimeoutError/ExecutionError); the
	// moderator fails closed either way (spec §4.10 "Failure modes").
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return model.Block(fmt.Sprintf("COMPLETION VALIDATION ERROR\n\n%s", msg))
}

// buildContext implements §4.10's context-assembly precondition: load all
// messages, hard-cap at 100, then binary-search the window to fit the
// token budget, and append a todo-list section.
func (c *CompletionModerator) buildContext(sessionID, transcriptPath string) (string, []model.Todo, error) {
	messages, err := transcript.ReadMessages(c.log, transcriptPath)
	if err != nil {
		return "", nil, err
	}
	if len(messages) == 0 {
		return "", nil, nil
	}

	total := len(messages)
	window := messages
	if total > maxContextMessages {
		window = transcript.LastNMessages(messages, maxContextMessages)
		c.log.Warn("moderator_message_count_capped",
			zap.Int("original_messages", total), zap.Int("capped_messages", maxContextMessages))
	}

	formatted := transcript.FormatForPrompt(window)
	tokens := tokencount.Count(formatted)

	if tokens > maxContextTokens {
		best := 1
		left, right := 1, len(window)
		for left <= right {
			mid := (left + right) / 2
			test := transcript.LastNMessages(window, mid)
			testFormatted := transcript.FormatForPrompt(test)
			if tokencount.Count(testFormatted) <= maxContextTokens {
				best = mid
				left = mid + 1
			} else {
				right = mid - 1
			}
		}
		truncated := transcript.LastNMessages(window, best)
		formatted = transcript.FormatForPrompt(truncated)
		c.log.Warn("moderator_context_truncated",
			zap.Int("truncated_messages", best), zap.Int("max_tokens", maxContextTokens))
	}

	todos := LoadTodos(sessionID)
	formatted += FormatTodoSection(todos)
	return formatted, todos, nil
}

func buildModeratorPrompt(context string, todos []model.Todo) string {
	var b strings.Builder
	b.WriteString("Review the following conversation and decide whether the work is genuinely complete.\n\n")
	b.WriteString(context)
	b.WriteString("\n\nRespond with 'ALLOW: <explanation>' or 'BLOCK: <reason>'.\n")
	return b.String()
}

func formatIncompleteTodosReason(incomplete []model.Todo) string {
	var b strings.Builder
	b.WriteString("COMPLETION MARKER SEEN BUT TODOS INCOMPLETE:\n\n")
	for _, t := range incomplete {
		b.WriteString(fmt.Sprintf("- [%s] %s\n", t.Status, t.Content))
	}
	return b.String()
}

// WriteAuditLogHeader writes the prompt/context preamble and the
// "=== STREAMING OUTPUT ===" separator (spec §4.10 "Execution"). The
// moderator-with-retry controller does not scan for this separator; it
// looks for the "=== FIRST OUTPUT:" line written once streaming starts.
func WriteAuditLogHeader(path, prompt string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "=== PROMPT ===\n%s\n\n=== STREAMING OUTPUT ===\n", prompt)
	return err
}
