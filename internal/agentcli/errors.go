package agentcli

import (
	"fmt"
	"strings"
	"time"
)

// CommandNotFoundError means the agent CLI binary could not be exec'd
// (spec §4.1, §7).
type CommandNotFoundError struct {
	Command string
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("agent command not found: %s", e.Command)
}

// ExecutionError means the child exited non-zero (spec §4.1, §7).
type ExecutionError struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Cmd      []string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent command failed with exit code %d: %s", e.ExitCode, strings.Join(e.Cmd, " "))
}

// TimeoutError means the overall deadline elapsed before the child exited
// (spec §4.1, §7).
type TimeoutError struct {
	Timeout  time.Duration
	Cmd      []string
	Duration time.Duration // actual elapsed time, if known
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("agent command timed out after %s: %s", e.Timeout, strings.Join(e.Cmd, " "))
	if e.Duration > 0 {
		msg += fmt.Sprintf(" (actual duration: %s)", e.Duration)
	}
	return msg
}

// ProcessKillError means a SIGKILL-equivalent on a hung child did not take
// effect (spec §4.1, §7). Per §7 this is logged and treated as an
// infrastructure bug, never propagated as an orchestrator-level failure.
type ProcessKillError struct {
	PID    int
	Reason string
}

func (e *ProcessKillError) Error() string {
	return fmt.Sprintf("failed to kill hung process %d: %s", e.PID, e.Reason)
}
