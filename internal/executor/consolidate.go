package executor

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// ConsolidateFn invokes the consolidator agent with the current
// consolidated file content and the new report, returning its raw decision
// text ("UPDATED" or "NO_CHANGES") (spec §4.6 "Consolidation").
type ConsolidateFn func(ctx context.Context, consolidatedPath, newReportPath string) (string, error)

// consolidatedFileWeight bounds consolidation to exactly one in-flight
// invocation: every failed/timeout item's consolidator call reads and
// rewrites the same CONSOLIDATED.md, so concurrent runs would race
// (spec §5 "no cross-item shared mutable state other than append-only
// report files" — CONSOLIDATED.md is the one exception, and it is
// explicitly funneled through a single writer).
const consolidatedFileWeight = 1

// Consolidate runs the consolidator agent once per failed/timeout result,
// serialized via a weighted semaphore so CONSOLIDATED.md is never written
// concurrently, while still letting callers submit all invocations through
// one errgroup for uniform cancellation and error aggregation.
func Consolidate(ctx context.Context, consolidatedPath string, results []model.ExecutionResult, reportPathFor func(model.ExecutionResult) string, fn ConsolidateFn) error {
	if _, err := os.Stat(consolidatedPath); err != nil {
		if os.IsNotExist(err) {
			if werr := writeFileAtomicallyEnough(consolidatedPath, "# Consolidated Audit Findings\n\n"); werr != nil {
				return werr
			}
		} else {
			return err
		}
	}

	sem := semaphore.NewWeighted(consolidatedFileWeight)
	g, gctx := errgroup.WithContext(ctx)

	for _, result := range results {
		result := result
		if result.Status != model.StatusFailed && result.Status != model.StatusTimeout {
			continue
		}
		g.Go(func() error {
			if err := sem.Acquire(gctx, consolidatedFileWeight); err != nil {
				return err
			}
			defer sem.Release(consolidatedFileWeight)

			_, err := fn(gctx, consolidatedPath, reportPathFor(result))
			if err != nil {
				return fmt.Errorf("consolidating %s: %w", result.ItemPath, err)
			}
			return nil
		})
	}

	return g.Wait()
}
