package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// ProgressFilePath returns the path of the append-only progress file
// alongside a task file (spec §4.7 "progress-YYYYMMDDHHMMSS-<task>.md",
// one per run, never reused across runs).
func ProgressFilePath(taskPath string, runStarted time.Time) string {
	return siblingFile(taskPath, "progress", runStarted)
}

// FeedbackFilePath returns the path of the feedback file written only when
// a task run ends in StatusFeedback (spec §4.7
// "feedback-YYYYMMDDHHMMSS-<task>.md").
func FeedbackFilePath(taskPath string, runStarted time.Time) string {
	return siblingFile(taskPath, "feedback", runStarted)
}

func siblingFile(taskPath, prefix string, runStarted time.Time) string {
	dir := filepath.Dir(taskPath)
	base := strings.TrimSuffix(filepath.Base(taskPath), filepath.Ext(taskPath))
	stamp := runStarted.Format("20060102150405")
	return filepath.Join(dir, fmt.Sprintf("%s-%s-%s.md", prefix, stamp, base))
}

// AppendProgress appends one "## Attempt N (timestamp)" section holding the
// attempt's output to the run's progress file, creating it on first use. The file is append-only for the lifetime of one run — each
// attempt's raw agent output is recorded as it happens, independent of the
// eventual terminal status (spec §4.7).
func AppendProgress(path string, attemptNumber int, output string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "## Attempt %d (%s)\n\n%s\n\n", attemptNumber, time.Now().Format(time.RFC3339), output)
	return err
}

// WriteFeedbackFile writes the feedback file when a task run halts with
// StatusFeedback (spec §4.7). It is written once, at the end of the run,
// never appended to.
func WriteFeedbackFile(path string, result model.ExecutionResult) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Feedback: %s\n\n", result.ItemPath)
	fmt.Fprintf(&b, "Attempts: %d\n\n", len(result.Attempts))
	b.WriteString(result.Feedback)
	b.WriteString("\n")
	return writeFileAtomicallyEnough(path, b.String())
}
