package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// ReportDir returns the date-stamped report directory for one executor run
// (spec §4.6 "stamped DD.MM.YYYY/<relative-path>.md").
func ReportDir(baseDir string, day time.Time) string {
	return filepath.Join(baseDir, day.Format("02.01.2006"))
}

// WriteReport writes one work item's Markdown report, mirroring its source
// path under reportDir (spec §4.6 "Reports", §4.11 "atomically enough").
func WriteReport(reportDir, relPath string, result model.ExecutionResult, generatedAt time.Time) error {
	target := filepath.Join(reportDir, relPath+".md")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Report: %s\n\n", relPath)
	fmt.Fprintf(&b, "Status: %s\n", result.Status)
	fmt.Fprintf(&b, "Timestamp: %s\n", generatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Execution time: %s\n\n", result.TotalDuration)

	switch {
	case len(result.Violations) > 0:
		b.WriteString("## Violations\n\n")
		for _, v := range result.Violations {
			fmt.Fprintf(&b, "- line %d [%s] %s: %s\n", v.Line, v.Severity, v.PatternID, v.Message)
		}
	case result.Status == model.StatusCompleted && len(result.Violations) == 0 && result.Action == "":
		b.WriteString("✅ No violations detected.\n")
	}

	if result.Action != "" {
		fmt.Fprintf(&b, "## Action\n\n%s\n", result.Action)
	}

	if len(result.Attempts) > 0 {
		b.WriteString("\n## Attempts\n\n")
		for _, a := range result.Attempts {
			fmt.Fprintf(&b, "- attempt %d at %s (%s)\n", a.AttemptNumber, a.Timestamp.Format(time.RFC3339), a.Duration)
		}
	}

	if result.Feedback != "" {
		fmt.Fprintf(&b, "\n## Feedback\n\n%s\n", result.Feedback)
	}
	if result.Error != "" {
		fmt.Fprintf(&b, "\n## Error\n\n%s\n", result.Error)
	}

	return writeFileAtomicallyEnough(target, b.String())
}

// writeFileAtomicallyEnough opens, writes, and closes — no in-place edit
// (spec §4.11 "atomically enough for a crash-safe read").
func writeFileAtomicallyEnough(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
