package hooks

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/agentops-sh/orchestrator/internal/markers"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/moderator"
	"github.com/agentops-sh/orchestrator/internal/transcript"
)

// Invoke spawns a moderator agent, writing streamed output to auditLogPath
// and returning the captured text. Supplied by the CLI layer, backed by an
// agentcli.Driver.
type Invoke func(ctx context.Context, prompt, auditLogPath string, timeout time.Duration) (string, error)

// ModeratedDeps bundles what every moderator-backed PreToolUse validator
// needs: the hang-detection controller, a way to invoke the moderator CLI,
// and a directory to write per-invocation audit logs under
// (spec §6.6 "<root>/logs/agent-cli/<kind>-<exec_id>.log").
type ModeratedDeps struct {
	Controller   *moderator.Controller
	Invoke       Invoke
	AuditLogDir  string
	FirstOutputTimeout time.Duration
}

func (d ModeratedDeps) auditLogPath(kind, execID string) string {
	return fmt.Sprintf("%s/%s-%s.log", strings.TrimRight(d.AuditLogDir, "/"), kind, execID)
}

// runModerator wraps one moderator-with-retry invocation and returns its
// captured output.
func (d ModeratedDeps) runModerator(ctx context.Context, kind, execID, prompt string) (string, error) {
	logPath := d.auditLogPath(kind, execID)
	return d.Controller.RunWithRetry(ctx, logPath, func(ctx context.Context, timeout time.Duration, auditLogPath string) (string, error) {
		return d.Invoke(ctx, prompt, auditLogPath, timeout)
	})
}

// NewDiffAuditValidator implements §4.8.1: the shared LLM diff-audit
// subroutine used by the "core" and "python quality" PreToolUse validators.
// patternsText is the contents of the relevant patterns file, substituted
// into the `{PATTERNS}` placeholder of template.
func NewDiffAuditValidator(deps ModeratedDeps, name, template, patternsText string, fileExtension string, execIDFn func() string) Validator {
	return func(ctx Context) model.HookResult {
		event := ctx.Event
		if event.ToolName != "Edit" && event.ToolName != "Write" {
			return model.Allow()
		}
		if event.ToolInput == nil {
			return model.Allow()
		}
		filePath, _ := event.ToolInput["file_path"].(string)
		if fileExtension != "" && !strings.HasSuffix(filePath, fileExtension) {
			return model.Allow()
		}

		oldContent, newContent, err := reconstructContent(event)
		if err != nil {
			return model.Allow()
		}

		prompt := strings.ReplaceAll(template, "{PATTERNS}", patternsText)
		prompt = fmt.Sprintf("%s\n\n--- OLD CONTENT ---\n%s\n\n--- NEW CONTENT ---\n%s\n", prompt, oldContent, newContent)

		execID := execIDFn()
		output, err := deps.runModerator(context.Background(), name, execID, prompt)
		if err != nil {
			return model.Deny(fmt.Sprintf("%s check failed: %v", name, err))
		}

		decision := markers.ParseValidatorDecision(output)
		if decision.Allowed {
			return model.Allow()
		}
		reason := decision.Reason
		if reason == "" {
			reason = fmt.Sprintf("%s check returned an unparseable response", name)
		}
		return model.Deny(reason)
	}
}

// reconstructContent builds the (old, new) full-file content pair for an
// Edit or Write tool call (spec §4.8 "reconstruct the full proposed new
// content").
func reconstructContent(event model.HookEvent) (oldContent, newContent string, err error) {
	filePath, _ := event.ToolInput["file_path"].(string)
	if event.ToolName == "Write" {
		newContent, _ = event.ToolInput["content"].(string)
		if data, readErr := os.ReadFile(filePath); readErr == nil {
			oldContent = string(data)
		}
		return oldContent, newContent, nil
	}

	oldString, _ := event.ToolInput["old_string"].(string)
	newString, _ := event.ToolInput["new_string"].(string)
	data, readErr := os.ReadFile(filePath)
	if readErr != nil {
		return "", "", readErr
	}
	oldContent = string(data)
	newContent = strings.Replace(oldContent, oldString, newString, 1)
	return oldContent, newContent, nil
}

// NewMaliciousBehaviorValidator implements §4.8 "Malicious-behaviour
// validator": runs before any edit, consulting the transcript context and
// the tool call description, fail-closed deny on timeout/error.
func NewMaliciousBehaviorValidator(deps ModeratedDeps, execIDFn func() string) Validator {
	return func(ctx Context) model.HookResult {
		event := ctx.Event
		if event.ToolName != "Write" && event.ToolName != "Edit" && event.ToolName != "Bash" {
			return model.Allow()
		}
		if event.TranscriptPath == "" {
			return model.Allow()
		}

		messages, err := transcript.ReadMessages(ctx.Log, event.TranscriptPath)
		if err != nil || len(messages) == 0 {
			return model.Allow()
		}
		convoContext := transcript.FormatForPrompt(transcript.LastNMessages(messages, 100))

		prompt := "Review this tool call for malicious bypass attempts (disabling CI/CD, hooks, or quality checks):\n\n" + convoContext +
			fmt.Sprintf("\n\nTool: %s\nInput: %v\n\nRespond ALLOW or BLOCK: <reason>.", event.ToolName, event.ToolInput)

		execID := execIDFn()
		output, err := deps.runModerator(context.Background(), "malicious-behavior", execID, prompt)
		if err != nil {
			return model.Deny(fmt.Sprintf("malicious behavior check timed out or errored: %v", err))
		}

		decision := markers.ParseValidatorDecision(output)
		if decision.Allowed {
			return model.Allow()
		}
		reason := decision.Reason
		if reason == "" {
			reason = "malicious behavior check returned an unparseable response"
		}
		return model.Deny(reason)
	}
}

// NewResearchValidator implements §4.8 "Research validator": only runs
// when the proposed change exceeds lineThreshold changed lines (the
// new_string of an Edit, the whole content of a Write).
func NewResearchValidator(deps ModeratedDeps, lineThreshold int, execIDFn func() string) Validator {
	return func(ctx Context) model.HookResult {
		event := ctx.Event
		if event.ToolName != "Edit" && event.ToolName != "Write" {
			return model.Allow()
		}
		if event.ToolInput == nil || event.TranscriptPath == "" {
			return model.Allow()
		}

		_, newContent, err := reconstructContent(event)
		if err != nil {
			return model.Allow()
		}
		changed := newContent
		if event.ToolName == "Edit" {
			changed, _ = event.ToolInput["new_string"].(string)
		}
		lines := strings.Count(changed, "\n") + 1
		if lines <= lineThreshold {
			return model.Allow()
		}

		messages, err := transcript.ReadMessages(ctx.Log, event.TranscriptPath)
		if err != nil || len(messages) == 0 {
			return model.Allow()
		}
		convoContext := transcript.FormatForPrompt(transcript.LastNMessages(messages, 30))

		prompt := "Did the assistant perform adequate research (reading docs or existing code) before this change?\n\n" + convoContext +
			"\n\nRespond ALLOW or BLOCK: <reason>."

		execID := execIDFn()
		output, err := deps.runModerator(context.Background(), "research-validator", execID, prompt)
		if err != nil {
			return model.Deny(fmt.Sprintf("research validation timed out or errored: %v", err))
		}

		decision := markers.ParseValidatorDecision(output)
		if decision.Allowed {
			return model.Allow()
		}
		reason := decision.Reason
		if reason == "" {
			reason = "Inadequate research before code changes. Read docs and existing code before implementing."
		}
		return model.Deny(reason)
	}
}

// NewTodoValidator implements §4.8 "Todo validator": triggers on
// TodoWrite, compares against the last persisted todo list, and invokes
// the moderator only when something transitioned to completed or had its
// text edited.
func NewTodoValidator(deps ModeratedDeps, execIDFn func() string) Validator {
	return func(ctx Context) model.HookResult {
		event := ctx.Event
		if event.ToolName != "TodoWrite" {
			return model.Allow()
		}
		if event.TranscriptPath == "" || event.ToolInput == nil {
			return model.Allow()
		}

		rawTodos, _ := event.ToolInput["todos"].([]any)
		if len(rawTodos) == 0 {
			return model.Allow()
		}

		current := decodeTodos(rawTodos)
		previous := moderator.LoadTodos(event.SessionID)

		changed := false
		for i, t := range current {
			if t.Status == model.TodoCompleted && (i >= len(previous) || previous[i].Status != model.TodoCompleted) {
				changed = true
				break
			}
			if i < len(previous) && t.Content != previous[i].Content {
				changed = true
				break
			}
		}
		if !changed {
			return model.Allow()
		}

		messages, err := transcript.ReadMessages(ctx.Log, event.TranscriptPath)
		if err != nil || len(messages) == 0 {
			return model.Allow()
		}
		convoContext := transcript.FormatForPrompt(transcript.LastNMessages(messages, 100))

		prompt := "Verify these todo completions/edits against the conversation below. " +
			"Were the claimed changes actually made?\n\n" + convoContext + "\n\nRespond ALLOW or BLOCK: <reason>."

		execID := execIDFn()
		output, err := deps.runModerator(context.Background(), "todo-validator", execID, prompt)
		if err != nil {
			return model.Deny(fmt.Sprintf("todo validation timed out or errored: %v", err))
		}

		decision := markers.ParseValidatorDecision(output)
		if decision.Allowed {
			return model.Allow()
		}
		reason := decision.Reason
		if reason == "" {
			reason = "todo validation returned an unparseable response"
		}
		return model.Deny(reason)
	}
}

func decodeTodos(raw []any) []model.Todo {
	todos := make([]model.Todo, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m["content"].(string)
		status, _ := m["status"].(string)
		activeForm, _ := m["activeForm"].(string)
		todos = append(todos, model.Todo{Content: content, Status: model.TodoStatus(status), ActiveForm: activeForm})
	}
	return todos
}
