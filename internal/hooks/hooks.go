// Package hooks implements the boundary protocol spoken with the agent
// runtime's hook subsystem (spec C4, §3.6, §3.7, §6.2, §6.4): read one JSON
// event from stdin, dispatch to a named validator, write one JSON decision
// to stdout, always exit 0 once a decision was produced.
package hooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// MaxHookInputSize bounds stdin reads against a malformed or hostile input
// stream (spec §6.2 "Size ≤ 10 MiB").
const MaxHookInputSize = 10 * 1024 * 1024

// Validator is one named hook check. It must never panic; any internal
// error should be converted to a fail-closed decision before returning.
type Validator func(ctx Context) model.HookResult

// Context bundles the parsed event with the dependencies a validator may
// need (logging, config-derived pattern files, moderator access). Built
// once per invocation by the CLI entry point.
type Context struct {
	Event  model.HookEvent
	Log    *zap.Logger
	Extra  map[string]any // per-validator wiring (pattern sets, moderators, etc.)
}

// ReadEvent reads and parses the hook event from r, enforcing the size cap
// (spec §6.2). A malformed or oversize payload is a HookInputError (spec §7)
// the caller converts to a synthetic deny/block rather than propagating.
func ReadEvent(r io.Reader) (model.HookEvent, error) {
	limited := io.LimitReader(r, MaxHookInputSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return model.HookEvent{}, fmt.Errorf("reading hook input: %w", err)
	}
	if len(data) > MaxHookInputSize {
		return model.HookEvent{}, fmt.Errorf("hook input exceeds %d bytes", MaxHookInputSize)
	}

	var event model.HookEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&event); err != nil {
		return model.HookEvent{}, fmt.Errorf("parsing hook input: %w", err)
	}
	return event, nil
}

// preToolUseOutput and stopOutput are the two wire shapes of §6.4.
type preToolUseOutput struct {
	HookSpecificOutput struct {
		HookEventName            string `json:"hookEventName"`
		PermissionDecision       string `json:"permissionDecision"`
		PermissionDecisionReason string `json:"permissionDecisionReason,omitempty"`
	} `json:"hookSpecificOutput"`
	SystemMessage string `json:"systemMessage,omitempty"`
}

type stopOutput struct {
	Decision      string `json:"decision"`
	Reason        string `json:"reason,omitempty"`
	SystemMessage string `json:"systemMessage,omitempty"`
}

// WriteDecision serialises result per §6.4, choosing the shape based on
// eventType, and writes it to w.
func WriteDecision(w io.Writer, eventType model.HookEventName, result model.HookResult) error {
	enc := json.NewEncoder(w)
	if eventType == model.HookPreToolUse {
		out := preToolUseOutput{SystemMessage: result.SystemMessage}
		out.HookSpecificOutput.HookEventName = string(eventType)
		switch result.Decision {
		case model.DecisionDeny:
			out.HookSpecificOutput.PermissionDecision = "deny"
			out.HookSpecificOutput.PermissionDecisionReason = result.Reason
		default: // allow, none
			out.HookSpecificOutput.PermissionDecision = "allow"
		}
		return enc.Encode(out)
	}

	out := stopOutput{Reason: result.Reason, SystemMessage: result.SystemMessage}
	if result.Decision == model.DecisionBlock {
		out.Decision = "block"
	} else {
		out.Decision = "approve"
	}
	return enc.Encode(out)
}

// Registry maps validator names (as named by --hook NAME) to Validator
// funcs, built once at CLI startup.
type Registry map[string]Validator

// Run executes one hook invocation end to end: decode, dispatch, encode.
// It never returns an error for a bad/unknown payload — per spec §7
// (HookInputError, ValidatorException) those become synthetic decisions,
// and the process always exits 0 once a decision was written. The one
// exception is an unknown validator name, which is itself the dispatcher's
// non-zero-exit condition (spec §6.1 "--hook NAME ... Unknown name").
func (reg Registry) Run(name string, stdin io.Reader, stdout io.Writer, log *zap.Logger) error {
	validator, ok := reg[name]
	if !ok {
		return fmt.Errorf("unknown hook validator %q", name)
	}

	event, err := ReadEvent(stdin)
	if err != nil {
		log.Warn("malformed hook input, failing closed", zap.Error(err))
		result := syntheticFailure(name, err)
		return WriteDecision(stdout, inferEventType(name, event), result)
	}

	result := safeRun(validator, Context{Event: event, Log: log}, log)
	return WriteDecision(stdout, event.HookEventName, result)
}

// safeRun calls v and converts a panic into a fail-closed decision (spec §7
// ValidatorException: "Fail-closed deny/block with exception text; never
// propagate to the agent runtime as a non-zero exit").
func safeRun(v Validator, ctx Context, log *zap.Logger) (result model.HookResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("validator panicked, failing closed", zap.Any("recover", r))
			result = failClosed(ctx.Event.HookEventName, fmt.Sprintf("validator exception: %v", r))
		}
	}()
	return v(ctx)
}

func syntheticFailure(hookName string, err error) model.HookResult {
	return model.HookResult{Decision: model.DecisionDeny, Reason: fmt.Sprintf("malformed hook input: %v", err)}
}

func inferEventType(hookName string, event model.HookEvent) model.HookEventName {
	if event.HookEventName != "" {
		return event.HookEventName
	}
	return model.HookPreToolUse
}

// failClosed builds the event-appropriate fail-closed decision.
func failClosed(eventType model.HookEventName, reason string) model.HookResult {
	if eventType == model.HookStop || eventType == model.HookSubagentStop {
		return model.Block(reason)
	}
	return model.Deny(reason)
}
