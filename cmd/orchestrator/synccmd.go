package main

import (
	"context"
	"fmt"

	"github.com/agentops-sh/orchestrator/internal/gitsync"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/retryloop"
)

// runSyncAndExit implements `--sync DIR` (spec §6.1): drive a retry loop
// whose worker commits and pushes until the module reports StatusSynced.
func (a *app) runSyncAndExit(dir string, userInstruction string) {
	ctx := context.Background()
	if !gitsync.IsGitModule(ctx, dir) {
		fatalf("%s is not a git module", dir)
	}

	result := retryloop.Run(ctx, retryloop.Options{
		ItemPath: dir,
		Timeout:  a.cfg.Timeouts.Task(),
		Execute: func(ctx context.Context, attemptN int, extra string) (string, *model.AgentMetadata, error) {
			check, err := gitsync.Check(ctx, dir)
			if err != nil {
				return "", nil, err
			}
			if check.Status == gitsync.StatusSynced {
				return "WORK DONE", nil, nil
			}

			instruction := buildSyncInstruction(dir, userInstruction, check.Detail, extra)
			output, meta, err := a.spawnAgent(ctx, model.ProviderClaude, instruction, dir, a.cfg.Timeouts.Task(), nil)
			if err != nil {
				return "", nil, err
			}

			gitsync.WaitBriefly()
			recheck, recheckErr := gitsync.Check(ctx, dir)
			if recheckErr == nil && recheck.Status == gitsync.StatusSynced {
				return "WORK DONE", meta, nil
			}
			return output, meta, nil
		},
		ModeratorEnabled: false,
	})

	if result.Status != model.StatusCompleted {
		exitProcess(1)
	}
	exitProcess(0)
}

func buildSyncInstruction(dir, userInstruction, detail, extra string) string {
	instruction := fmt.Sprintf("Commit and push all outstanding changes in %s (%s). Respond with WORK DONE once the working tree is clean and pushed, or FEEDBACK: <content> if you cannot proceed.", dir, detail)
	if userInstruction != "" {
		instruction = userInstruction + "\n\n" + instruction
	}
	if extra != "" {
		instruction += "\n\n" + extra
	}
	return instruction
}
