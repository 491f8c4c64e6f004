// Package retryloop implements the state machine that drives one work item
// through repeated worker invocations until it completes, yields feedback,
// times out, or fails outright (spec §4.4, C6). It is the core every
// executor (audit/tasks/docs) shares; the three executors differ only in
// the closures they pass in.
package retryloop

import (
	"context"
	"fmt"
	"time"

	"github.com/agentops-sh/orchestrator/internal/markers"
	"github.com/agentops-sh/orchestrator/internal/model"
)

// ExecuteAttempt runs one attempt of the worker for a given attempt number
// and accumulated extra context, returning raw output plus agent metadata.
type ExecuteAttempt func(ctx context.Context, attemptN int, extra string) (output string, meta *model.AgentMetadata, err error)

// ValidateWithModerator runs the moderator against one attempt's output and
// returns a pass/fail decision, the moderator's raw output, and its
// metadata.
type ValidateWithModerator func(ctx context.Context, itemName, output string, attemptN int) (model.ModeratorResult, string, *model.AgentMetadata, error)

// Options configures one run of the loop (spec §4.4 "Inputs").
type Options struct {
	ItemPath              string
	Execute               ExecuteAttempt
	ValidateWithModerator ValidateWithModerator // nil when moderator disabled
	ModeratorEnabled      bool
	Timeout               time.Duration
}

// noneExtra is appended to the retry context when the worker emitted
// neither WORK DONE nor FEEDBACK (spec §4.4 "none" branch).
const noneExtra = "MUST OUTPUT 'WORK DONE' OR 'FEEDBACK: <content>'"

// Run drives the retry-loop state machine for one work item to completion
// (spec §4.4). The returned ExecutionResult always satisfies the §3.8
// invariants: attempt_number == position+1, total_duration ≥ Σ attempt
// durations, and the status-specific shape constraints.
func Run(ctx context.Context, opts Options) model.ExecutionResult {
	start := time.Now()
	var attempts []model.ExecutionAttempt
	extra := ""
	attemptN := 0

	for {
		if time.Since(start) >= opts.Timeout {
			return model.ExecutionResult{
				ItemPath:      opts.ItemPath,
				Status:        model.StatusTimeout,
				Attempts:      attempts,
				TotalDuration: time.Since(start),
				Error:         fmt.Sprintf("deadline exceeded after %d attempt(s)", len(attempts)),
			}
		}

		attemptN++
		attemptStart := time.Now()

		output, meta, err := opts.Execute(ctx, attemptN, extra)
		if err != nil {
			return model.ExecutionResult{
				ItemPath:      opts.ItemPath,
				Status:        model.StatusFailed,
				Attempts:      attempts,
				TotalDuration: time.Since(start),
				Error:         err.Error(),
			}
		}

		attempt := model.ExecutionAttempt{
			AttemptNumber:  attemptN,
			WorkerOutput:   output,
			Timestamp:      attemptStart,
			Duration:       time.Since(attemptStart),
			WorkerMetadata: meta,
		}

		marker := markers.ParseCompletionMarker(output)

		switch marker.Type {
		case model.MarkerFeedback:
			attempts = append(attempts, attempt)
			return model.ExecutionResult{
				ItemPath:      opts.ItemPath,
				Status:        model.StatusFeedback,
				Attempts:      attempts,
				Feedback:      marker.Content,
				TotalDuration: time.Since(start),
			}

		case model.MarkerWorkDone:
			if !opts.ModeratorEnabled || opts.ValidateWithModerator == nil {
				attempts = append(attempts, attempt)
				return model.ExecutionResult{
					ItemPath:      opts.ItemPath,
					Status:        model.StatusCompleted,
					Attempts:      attempts,
					TotalDuration: time.Since(start),
				}
			}

			result, modOutput, modMeta, err := opts.ValidateWithModerator(ctx, opts.ItemPath, output, attemptN)
			attempt.ModeratorOutput = modOutput
			attempt.ModeratorMetadata = modMeta
			attempts = append(attempts, attempt)

			if err != nil {
				return model.ExecutionResult{
					ItemPath:      opts.ItemPath,
					Status:        model.StatusFailed,
					Attempts:      attempts,
					TotalDuration: time.Since(start),
					Error:         err.Error(),
				}
			}

			if result.Status == model.ModeratorPass {
				return model.ExecutionResult{
					ItemPath:      opts.ItemPath,
					Status:        model.StatusCompleted,
					Attempts:      attempts,
					TotalDuration: time.Since(start),
				}
			}

			extra = fmt.Sprintf("PREVIOUS ATTEMPT FAILED VALIDATION: %s", result.Reason)
			continue

		default: // MarkerNone
			attempts = append(attempts, attempt)
			extra = noneExtra
			continue
		}
	}
}
