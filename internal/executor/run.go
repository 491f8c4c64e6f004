package executor

import (
	"context"
	"sort"

	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/worker"
)

// WorkFn runs the full retry loop for one discovered file, producing its
// terminal result (spec §4.6, wired by the caller to retryloop.Run plus a
// kind-specific worker_fn/parse_fn/mod_fn).
type WorkFn func(ctx context.Context, path string) model.ExecutionResult

// RunSequential iterates files in lexicographic order (spec §4.6
// "Sequential mode"). Discover already returns a sorted list, but sorting
// again here keeps this function correct independent of caller discipline.
func RunSequential(ctx context.Context, files []string, fn WorkFn) []model.ExecutionResult {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	results := make([]model.ExecutionResult, 0, len(sorted))
	for _, f := range sorted {
		results = append(results, fn(ctx, f))
	}
	return results
}

// maxParallelWorkers is the hard cap on simultaneous in-flight work items
// regardless of configured max_workers (spec §5 "min(max_workers, 8)").
const maxParallelWorkers = 8

// RunParallel runs the bounded worker pool (spec §4.6 "Parallel mode",
// §5): at most min(maxWorkers, 8) files execute concurrently, a failure in
// one item never aborts others, and results are returned in submission
// (i.e. input slice) order regardless of completion order.
func RunParallel(ctx context.Context, files []string, maxWorkers int, fn WorkFn) []model.ExecutionResult {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if maxWorkers > maxParallelWorkers {
		maxWorkers = maxParallelWorkers
	}

	pool := worker.NewPool[string, model.ExecutionResult](maxWorkers)
	raw := pool.Process(ctx, files, func(path string) (model.ExecutionResult, error) {
		return fn(ctx, path), nil
	})

	results := make([]model.ExecutionResult, len(raw))
	for _, r := range raw {
		results[r.Index] = r.Value
	}
	return results
}
