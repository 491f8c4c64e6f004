// Package moderator implements the moderator-with-retry hang-detection
// controller (spec §4.5, C5) and the completion moderator built on top of
// it (spec §4.10, C8).
package moderator

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/agentcli"
	"github.com/agentops-sh/orchestrator/internal/markers"
)

// firstOutputMarker is the audit-log line the controller scans for to
// distinguish a startup hang from an analysis hang (spec §4.5).
const firstOutputMarker = "=== FIRST OUTPUT:"

var decisionTokenRe = regexp.MustCompile(`(?i)\b(ALLOW|BLOCK)\b`)

// RunFunc invokes the underlying agent driver once, writing streamed output
// (and the "=== FIRST OUTPUT: ..." marker on the first line) to auditLogPath,
// and returns the full captured output.
type RunFunc func(ctx context.Context, timeout time.Duration, auditLogPath string) (string, error)

// Controller wraps one moderator invocation with hang detection and bounded
// retry (spec §4.5).
type Controller struct {
	log                 *zap.Logger
	driver              *agentcli.Driver
	firstOutputTimeout  time.Duration
	maxAttempts         int
}

// New builds a moderator-with-retry controller.
func New(log *zap.Logger, driver *agentcli.Driver, firstOutputTimeout time.Duration, maxAttempts int) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Controller{log: log, driver: driver, firstOutputTimeout: firstOutputTimeout, maxAttempts: maxAttempts}
}

// hangDetectionTimeout returns max(2*firstOutputTimeout, 15s).
func (c *Controller) hangDetectionTimeout() time.Duration {
	doubled := 2 * c.firstOutputTimeout
	floor := 15 * time.Second
	if doubled > floor {
		return doubled
	}
	return floor
}

// RunWithRetry executes run up to maxAttempts times, truncating auditLogPath
// before each attempt, classifying startup vs analysis hangs by scanning the
// audit log and the returned output (spec §4.5 algorithm).
func (c *Controller) RunWithRetry(ctx context.Context, auditLogPath string, run RunFunc) (string, error) {
	timeout := c.hangDetectionTimeout()

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := truncateFile(auditLogPath); err != nil {
			c.log.Warn("failed to truncate moderator audit log", zap.String("path", auditLogPath), zap.Error(err))
		}

		output, err := run(ctx, timeout, auditLogPath)
		if err != nil {
			lastErr = err
			if attempt < c.maxAttempts {
				c.driver.KillCurrent()
				continue
			}
			return "", lastErr
		}

		hasFirst := auditLogContains(auditLogPath, firstOutputMarker)
		hasDecision := decisionTokenRe.MatchString(markers.StripOuterCodeFence(output))

		switch {
		case hasFirst && hasDecision:
			return output, nil
		case hasFirst && !hasDecision:
			if attempt < c.maxAttempts {
				c.driver.KillCurrent()
				continue
			}
			// last-ditch: return as-is, upstream decision parsing will fail-closed.
			return output, nil
		case !hasFirst:
			// completed without ever producing a first-output marker: an
			// anomaly, but the call did complete, so return it as-is.
			return output, nil
		}
	}
	return "", fmt.Errorf("moderator hang: exhausted %d attempt(s): %w", c.maxAttempts, lastErr)
}

func truncateFile(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

func auditLogContains(path, marker string) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return regexp.MustCompile(regexp.QuoteMeta(marker)).Match(data)
}
