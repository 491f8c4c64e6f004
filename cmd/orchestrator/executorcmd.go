package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentops-sh/orchestrator/internal/executor"
	"github.com/agentops-sh/orchestrator/internal/markers"
	"github.com/agentops-sh/orchestrator/internal/model"
	"github.com/agentops-sh/orchestrator/internal/retryloop"
)

// runAuditAndExit drives the audit executor (spec §4.6, C7): the worker's
// completion marker for an audit file IS the moderator-style PASS/FAIL:
// grammar (spec §4.11 example "Audit fail ... CLI returns FAIL: Use of
// eval"), so it is parsed with markers.ParseModeratorResult rather than the
// WORK DONE / FEEDBACK grammar used by tasks and docs.
func (a *app) runAuditAndExit(dir string, parallel, retryErrors bool, userInstruction string) {
	ctx := context.Background()
	files, err := executor.Discover(dir, model.KindAudit, a.cfg.Audit.IncludePatterns, a.cfg.Audit.ExcludePatterns)
	if err != nil {
		fatalf("discovering audit targets: %v", err)
	}

	auditBaseDir := filepath.Join(a.cfg.BaseDir, a.cfg.Audit.ReportDir)
	if retryErrors {
		prior, ok := latestReportDir(auditBaseDir)
		if !ok {
			a.log.Warn("--retry-errors given but no prior audit report directory found, auditing everything")
		} else {
			errored := erroredFilesFromReportDir(prior, dir)
			if len(errored) == 0 {
				a.log.Info("no errored files in prior audit run, nothing to retry")
				exitProcess(0)
			}
			files = errored
		}
	}

	reportDir := executor.ReportDir(auditBaseDir, time.Now())
	fn := func(ctx context.Context, path string) model.ExecutionResult {
		return a.runAuditFile(ctx, dir, path)
	}

	var results []model.ExecutionResult
	if parallel {
		results = executor.RunParallel(ctx, files, a.cfg.Audit.MaxWorkers, fn)
	} else {
		results = executor.RunSequential(ctx, files, fn)
	}

	consolidatedPath := filepath.Join(reportDir, "CONSOLIDATED.md")
	failed := writeAuditReportsAndConsolidate(ctx, a, dir, reportDir, consolidatedPath, results)

	exitProcess(boolToExit(failed))
}

func (a *app) runAuditFile(ctx context.Context, root, path string) model.ExecutionResult {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	start := time.Now()
	result := retryloop.Run(ctx, retryloop.Options{
		ItemPath: path,
		Timeout:  a.cfg.Timeouts.Audit(),
		Execute: func(ctx context.Context, attemptN int, extra string) (string, *model.AgentMetadata, error) {
			instruction := fmt.Sprintf("Audit %s for quality and security issues. Respond with PASS or FAIL: <reason>.\n%s", rel, extra)
			return a.spawnAgent(ctx, model.ProviderClaude, instruction, root, a.cfg.Timeouts.Audit(), nil)
		},
		ModeratorEnabled: false,
	})

	return auditResultFromRetry(path, result, start)
}

// auditResultFromRetry reinterprets a raw retry-loop pass over an audit
// file: the worker's own output is the PASS/FAIL verdict, so completed vs.
// failed is derived from markers.ParseModeratorResult of the final attempt,
// not from the WORK DONE marker retryloop.Run itself would have looked for.
func auditResultFromRetry(path string, result model.ExecutionResult, start time.Time) model.ExecutionResult {
	if len(result.Attempts) == 0 {
		return result
	}
	last := result.Attempts[len(result.Attempts)-1]
	verdict := markers.ParseModeratorResult(last.WorkerOutput)

	out := model.ExecutionResult{
		ItemPath:      path,
		Attempts:      result.Attempts,
		TotalDuration: time.Since(start),
	}
	if verdict.Status == model.ModeratorPass {
		out.Status = model.StatusCompleted
		return out
	}
	out.Status = model.StatusFailed
	out.Error = verdict.Reason
	out.Violations = []model.AuditViolation{{
		Line:      0,
		PatternID: "llm_audit",
		Severity:  model.SeverityCritical,
		Message:   last.WorkerOutput,
	}}
	return out
}

func writeAuditReportsAndConsolidate(ctx context.Context, a *app, root, reportDir, consolidatedPath string, results []model.ExecutionResult) bool {
	anyFailed := false
	now := time.Now()
	for _, r := range results {
		rel, err := filepath.Rel(root, r.ItemPath)
		if err != nil {
			rel = r.ItemPath
		}
		if err := executor.WriteReport(reportDir, rel, r, now); err != nil {
			a.log.Error("failed writing audit report", zapErr(err))
		}
		if r.Status == model.StatusFailed || r.Status == model.StatusTimeout {
			anyFailed = true
		}
	}

	reportPathFor := func(r model.ExecutionResult) string {
		rel, err := filepath.Rel(root, r.ItemPath)
		if err != nil {
			rel = r.ItemPath
		}
		return filepath.Join(reportDir, rel+".md")
	}

	err := executor.Consolidate(ctx, consolidatedPath, results, reportPathFor, func(ctx context.Context, consolidatedPath, newReportPath string) (string, error) {
		prompt := fmt.Sprintf("Update %s given the new report at %s. Respond with UPDATED or NO_CHANGES.", consolidatedPath, newReportPath)
		return a.spawnAgent(ctx, model.ProviderClaude, prompt, "", a.cfg.Timeouts.Framework(), nil)
	})
	if err != nil {
		a.log.Error("consolidation failed", zapErr(err))
	}

	return anyFailed
}

// runTasksAndExit drives the task executor (spec §4.7).
func (a *app) runTasksAndExit(path string, parallel bool, userInstruction string) {
	ctx := context.Background()
	files, err := executor.Discover(path, model.KindTask, a.cfg.Tasks.IncludePatterns, a.cfg.Tasks.ExcludePatterns)
	if err != nil {
		fatalf("discovering task files: %v", err)
	}

	var locker *executor.FileLocker
	if a.cfg.Tasks.FileLocking {
		locker = executor.NewFileLocker(a.log, sudoPasswordEnv())
	}

	fn := func(ctx context.Context, taskPath string) model.ExecutionResult {
		return a.runTaskFile(ctx, taskPath, locker, userInstruction)
	}

	var results []model.ExecutionResult
	if parallel {
		results = executor.RunParallel(ctx, files, a.cfg.Executor.DefaultMaxWorkers, fn)
	} else {
		results = executor.RunSequential(ctx, files, fn)
	}

	reportDir := executor.ReportDir(filepath.Join(a.cfg.BaseDir, "tasks"), time.Now())
	anyFailed := false
	now := time.Now()
	for _, r := range results {
		rel := filepath.Base(r.ItemPath)
		if err := executor.WriteReport(reportDir, rel, r, now); err != nil {
			a.log.Error("failed writing task report", zapErr(err))
		}
		if r.Status == model.StatusFailed || r.Status == model.StatusTimeout {
			anyFailed = true
		}
	}
	exitProcess(boolToExit(anyFailed))
}

func (a *app) runTaskFile(ctx context.Context, taskPath string, locker *executor.FileLocker, userInstruction string) model.ExecutionResult {
	runStarted := time.Now()
	progressPath := executor.ProgressFilePath(taskPath, runStarted)

	if locker != nil {
		if _, err := locker.Lock(taskPath); err != nil {
			a.log.Warn("task file lock failed, continuing unlocked", zapErr(err))
		}
		defer func() {
			if _, err := locker.Unlock(taskPath); err != nil {
				a.log.Warn("task file unlock failed", zapErr(err))
			}
		}()
	}

	cwd := filepath.Dir(taskPath)
	attemptNum := 0
	result := retryloop.Run(ctx, retryloop.Options{
		ItemPath: taskPath,
		Timeout:  a.cfg.Timeouts.Task(),
		Execute: func(ctx context.Context, attemptN int, extra string) (string, *model.AgentMetadata, error) {
			attemptNum = attemptN
			instruction := buildTaskInstruction(taskPath, userInstruction, extra)
			out, meta, err := a.spawnAgent(ctx, model.ProviderClaude, instruction, cwd, a.cfg.Timeouts.Task(), nil)
			if err == nil {
				if perr := executor.AppendProgress(progressPath, attemptNum, out); perr != nil {
					a.log.Warn("progress file append failed", zapErr(perr))
				}
			}
			return out, meta, err
		},
		ModeratorEnabled: a.cfg.Tasks.ModeratorEnabled,
		ValidateWithModerator: func(ctx context.Context, itemName, output string, attemptN int) (model.ModeratorResult, string, *model.AgentMetadata, error) {
			return a.validateWithModerator(ctx, itemName, output)
		},
	})

	if result.Status == model.StatusFeedback {
		feedbackPath := executor.FeedbackFilePath(taskPath, runStarted)
		if err := executor.WriteFeedbackFile(feedbackPath, result); err != nil {
			a.log.Warn("feedback file write failed", zapErr(err))
		}
	}
	return result
}

func buildTaskInstruction(taskPath, userInstruction, extra string) string {
	instruction := fmt.Sprintf("Complete the task described in %s. Respond with WORK DONE or FEEDBACK: <content>.", taskPath)
	if userInstruction != "" {
		instruction = userInstruction + "\n\n" + instruction
	}
	if extra != "" {
		instruction += "\n\n" + extra
	}
	return instruction
}

func (a *app) validateWithModerator(ctx context.Context, itemName, output string) (model.ModeratorResult, string, *model.AgentMetadata, error) {
	logPath := filepath.Join(auditLogDir(a.cfg.BaseDir), fmt.Sprintf("task-moderator-%s.log", sanitizeForFilename(itemName)))
	prompt := fmt.Sprintf("Review this worker output for %s and respond with PASS or FAIL: <reason>.\n\n%s", itemName, output)
	raw, err := a.controller.RunWithRetry(ctx, logPath, func(ctx context.Context, timeout time.Duration, auditLogPath string) (string, error) {
		return a.moderatorInvoke(ctx, prompt, auditLogPath, timeout)
	})
	if err != nil {
		return model.ModeratorResult{Status: model.ModeratorFail, Reason: err.Error()}, raw, nil, err
	}
	return markers.ParseModeratorResult(raw), raw, nil, nil
}

// runDocsAndExit drives the doc-maintenance executor.
func (a *app) runDocsAndExit(dir string, parallel bool, userInstruction string) {
	ctx := context.Background()
	files, err := executor.Discover(dir, model.KindDoc, a.cfg.Docs.IncludePatterns, a.cfg.Docs.ExcludePatterns)
	if err != nil {
		fatalf("discovering doc targets: %v", err)
	}

	fn := func(ctx context.Context, path string) model.ExecutionResult {
		return a.runDocFile(ctx, path, userInstruction)
	}

	var results []model.ExecutionResult
	if parallel {
		results = executor.RunParallel(ctx, files, a.cfg.Executor.DefaultMaxWorkers, fn)
	} else {
		results = executor.RunSequential(ctx, files, fn)
	}

	reportDir := executor.ReportDir(filepath.Join(a.cfg.BaseDir, "docs"), time.Now())
	anyFailed := false
	now := time.Now()
	for _, r := range results {
		rel := filepath.Base(r.ItemPath)
		if err := executor.WriteReport(reportDir, rel, r, now); err != nil {
			a.log.Error("failed writing doc report", zapErr(err))
		}
		if r.Status == model.StatusFailed || r.Status == model.StatusTimeout {
			anyFailed = true
		}
	}
	exitProcess(boolToExit(anyFailed))
}

func (a *app) runDocFile(ctx context.Context, path, userInstruction string) model.ExecutionResult {
	instruction := fmt.Sprintf("Review and maintain the document at %s. Respond with WORK DONE or FEEDBACK: <content>.", path)
	if userInstruction != "" {
		instruction = userInstruction + "\n\n" + instruction
	}
	return retryloop.Run(ctx, retryloop.Options{
		ItemPath: path,
		Timeout:  a.cfg.Timeouts.Doc(),
		Execute: func(ctx context.Context, attemptN int, extra string) (string, *model.AgentMetadata, error) {
			return a.spawnAgent(ctx, model.ProviderClaude, instruction+extra, filepath.Dir(path), a.cfg.Timeouts.Doc(), nil)
		},
		ModeratorEnabled: false,
	})
}

// latestReportDir finds the most recently dated report directory written by
// executor.ReportDir's "DD.MM.YYYY" naming (spec §4.6), used by
// --retry-errors to locate the prior audit run.
func latestReportDir(auditBaseDir string) (string, bool) {
	entries, err := os.ReadDir(auditBaseDir)
	if err != nil {
		return "", false
	}

	var dated []time.Time
	byStamp := map[time.Time]string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		day, err := time.Parse("02.01.2006", e.Name())
		if err != nil {
			continue
		}
		dated = append(dated, day)
		byStamp[day] = e.Name()
	}
	if len(dated) == 0 {
		return "", false
	}
	sort.Slice(dated, func(i, j int) bool { return dated[i].After(dated[j]) })
	return filepath.Join(auditBaseDir, byStamp[dated[0]]), true
}

// erroredFilesFromReportDir reads each report's "Status:" line and returns
// the original source paths (rooted at root) for anything that didn't
// finish StatusCompleted.
func erroredFilesFromReportDir(reportDir, root string) []string {
	var out []string
	filepath.Walk(reportDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(path, ".md") || filepath.Base(path) == "CONSOLIDATED.md" {
			return nil
		}
		status, ok := firstStatusLine(path)
		if !ok || status == string(model.StatusCompleted) {
			return nil
		}
		rel, err := filepath.Rel(reportDir, path)
		if err != nil {
			return nil
		}
		rel = strings.TrimSuffix(rel, ".md")
		out = append(out, filepath.Join(root, rel))
		return nil
	})
	return out
}

func firstStatusLine(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Status: ") {
			return strings.TrimPrefix(line, "Status: "), true
		}
	}
	return "", false
}

func boolToExit(failed bool) int {
	if failed {
		return 1
	}
	return 0
}
