// Package agentcli spawns, streams, times out, and kills an external agent
// CLI child process (spec C2, §4.1). It never interprets the child's
// output beyond line splitting; that is the stream parser's job (package
// provider).
package agentcli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/agentops-sh/orchestrator/internal/model"
)

// LineHandler receives each line of streaming stdout as it arrives and may
// be nil. It returns nothing; classification happens in package provider.
type LineHandler func(line string)

// Driver spawns and supervises agent CLI child processes.
type Driver struct {
	log *zap.Logger

	mu      sync.Mutex
	current *exec.Cmd // the in-flight child, for KillCurrent
}

// New builds a Driver. log must not be nil; callers construct exactly one
// logger at the CLI entry point and thread it down (spec §9).
func New(log *zap.Logger) *Driver {
	return &Driver{log: log}
}

// firstLineThreshold and startupWindowCap implement the exact two-branch
// timeout-escalation formula recovered from original_source's
// calculate_timeout (SPEC_FULL §AMBIENT STACK / SUPPLEMENTED FEATURES #1).
const (
	firstLineThreshold = 5
	startupWindowCap   = 10 * time.Second
)

// calculateReadTimeout returns the per-read timeout for streaming mode: for
// the first firstLineThreshold lines, min(startupWindowCap, overall/2); from
// the next line on, the full overall timeout. overall == 0 means no timeout
// configured, in which case a generous fallback window is used so that the
// read loop still polls periodically.
func calculateReadTimeout(overall time.Duration, lineCount int) time.Duration {
	if lineCount < firstLineThreshold {
		if overall <= 0 {
			return startupWindowCap
		}
		half := overall / 2
		if half < startupWindowCap {
			return half
		}
		return startupWindowCap
	}
	if overall <= 0 {
		return 30 * time.Second
	}
	return overall
}

// validateCommand rejects non-string-safe argv entries: any argument
// beginning with "..", "/", or "~" that is not itself an absolute path is an
// injection attempt (spec §4.1).
func validateCommand(cmd []string) error {
	if len(cmd) == 0 {
		return fmt.Errorf("empty command")
	}
	for _, arg := range cmd {
		if strings.HasPrefix(arg, "..") || strings.HasPrefix(arg, "/") || strings.HasPrefix(arg, "~") {
			if !filepath.IsAbs(arg) {
				return fmt.Errorf("unsafe command path: %s", arg)
			}
		}
	}
	return nil
}

// buildEnv returns the process environment: either the inherited one, or,
// when cfg.UnprivilegedUser is set, a freshly-constructed HOME/USER/PATH/
// LANG/LC_ALL environment for that user (spec §4.1).
func buildEnv(cfg model.AgentConfig) []string {
	if cfg.UnprivilegedUser == "" {
		return os.Environ()
	}
	u, err := user.Lookup(cfg.UnprivilegedUser)
	if err != nil {
		return os.Environ()
	}
	return []string{
		"HOME=" + u.HomeDir,
		"USER=" + u.Username,
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"LANG=C.UTF-8",
		"LC_ALL=C.UTF-8",
	}
}

// Run spawns the agent CLI per cmd, and executes it in one of two modes
// (spec §4.1):
//   - fixed-stdin mode, when stdinData != nil: a single blocking call bounded
//     by the overall timeout;
//   - streaming mode, when stdinData == nil: a line-by-line read loop with
//     timeout escalation, invoking onLine per line.
//
// cmd is the fully-built argv (provider adapter's responsibility); cwd may
// be empty for the invoking process's working directory.
func (d *Driver) Run(ctx context.Context, cmd []string, stdinData *string, cwd string, cfg model.AgentConfig, onLine LineHandler) (string, *model.AgentMetadata, error) {
	if err := validateCommand(cmd); err != nil {
		return "", nil, err
	}

	log := d.log.With(zap.String("session_id", cfg.SessionID))

	if stdinData != nil {
		return d.runFixedStdin(ctx, cmd, *stdinData, cwd, cfg, log)
	}
	return d.runStreaming(ctx, cmd, cwd, cfg, onLine, log)
}

func (d *Driver) newCmd(ctx context.Context, argv []string, cwd string, cfg model.AgentConfig) *exec.Cmd {
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	c.Dir = cwd
	c.Env = buildEnv(cfg)
	return c
}

// runFixedStdin implements spec §4.1 "Fixed-stdin mode".
func (d *Driver) runFixedStdin(ctx context.Context, cmd []string, stdinData, cwd string, cfg model.AgentConfig, log *zap.Logger) (string, *model.AgentMetadata, error) {
	runCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout != nil {
		runCtx, cancel = context.WithTimeout(ctx, *cfg.Timeout)
		defer cancel()
	}

	c := d.newCmd(runCtx, cmd, cwd, cfg)
	c.Stdin = strings.NewReader(stdinData)

	var stdout, stderr strings.Builder
	c.Stdout = &stdout
	c.Stderr = &stderr

	d.setCurrent(c)
	defer d.clearCurrent()

	started := time.Now()
	err := c.Run()
	duration := time.Since(started)

	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr == context.DeadlineExceeded {
			return "", nil, &TimeoutError{Timeout: *cfg.Timeout, Cmd: cmd, Duration: duration}
		}
		var notFound *exec.Error
		if isExecNotFound(err, &notFound) {
			return "", nil, &CommandNotFoundError{Command: cmd[0]}
		}
		exitCode := -1
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return "", nil, &ExecutionError{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(), Cmd: cmd}
	}

	log.Info("agent_completed", zap.Duration("duration", duration), zap.Int("exit_code", 0))
	return stdout.String(), &model.AgentMetadata{}, nil
}

func isExecNotFound(err error, out **exec.Error) bool {
	if ee, ok := err.(*exec.Error); ok {
		*out = ee
		return true
	}
	return os.IsNotExist(err)
}

// runStreaming implements spec §4.1 "Streaming mode": line-by-line reads
// with escalating per-read timeout, an overall deadline, and
// terminate-then-kill on timeout.
func (d *Driver) runStreaming(ctx context.Context, cmd []string, cwd string, cfg model.AgentConfig, onLine LineHandler, log *zap.Logger) (string, *model.AgentMetadata, error) {
	var overall time.Duration
	if cfg.Timeout != nil {
		overall = *cfg.Timeout
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := d.newCmd(runCtx, cmd, cwd, cfg)

	stdoutPipe, err := c.StdoutPipe()
	if err != nil {
		return "", nil, err
	}
	var stderr strings.Builder
	c.Stderr = &stderr

	if err := c.Start(); err != nil {
		var notFound *exec.Error
		if isExecNotFound(err, &notFound) {
			return "", nil, &CommandNotFoundError{Command: cmd[0]}
		}
		return "", nil, err
	}

	d.setCurrent(c)
	defer d.clearCurrent()

	started := time.Now()

	lineCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		reader := bufio.NewReaderSize(stdoutPipe, 64*1024)
		for {
			line, readErr := reader.ReadString('\n')
			if line != "" {
				lineCh <- strings.TrimRight(line, "\r\n")
			}
			if readErr != nil {
				if readErr != io.EOF {
					errCh <- readErr
				}
				close(lineCh)
				return
			}
		}
	}()

	var output strings.Builder
	lineCount := 0
	timedOut := false

readLoop:
	for {
		timeout := calculateReadTimeout(overall, lineCount)
		timer := time.NewTimer(timeout)
		select {
		case line, ok := <-lineCh:
			timer.Stop()
			if !ok {
				break readLoop
			}
			output.WriteString(line)
			output.WriteString("\n")
			lineCount++
			if onLine != nil {
				onLine(line)
			}
		case <-timer.C:
			if overall > 0 && time.Since(started) >= overall {
				timedOut = true
				break readLoop
			}
			// Otherwise keep waiting for more output.
		}
	}

	if timedOut {
		d.terminateThenKill(c)
		_ = c.Wait()
		return "", nil, &TimeoutError{Timeout: overall, Cmd: cmd, Duration: time.Since(started)}
	}

	waitErr := c.Wait()
	duration := time.Since(started)

	if waitErr != nil {
		exitCode := -1
		if ee, ok := waitErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
		return output.String(), nil, &ExecutionError{ExitCode: exitCode, Stdout: output.String(), Stderr: stderr.String(), Cmd: cmd}
	}

	log.Info("agent_completed", zap.Duration("duration", duration), zap.Int("lines", lineCount))
	return output.String(), &model.AgentMetadata{}, nil
}

// terminateThenKill implements SIGTERM-then-SIGKILL with a 2-second grace
// window (spec §4.1). Errors killing the process are logged, never
// propagated as orchestrator failures (spec §7 ProcessKillError policy).
func (d *Driver) terminateThenKill(c *exec.Cmd) {
	if c.Process == nil {
		return
	}
	_ = c.Process.Signal(terminateSignal())
	done := make(chan struct{})
	go func() {
		_ = c.Wait()
		close(done)
	}()
	select {
	case <-done:
		return
	case <-time.After(2 * time.Second):
	}
	if err := c.Process.Kill(); err != nil {
		d.log.Warn("process_kill_failed", zap.Error(&ProcessKillError{PID: c.Process.Pid, Reason: err.Error()}))
	}
}

func (d *Driver) setCurrent(c *exec.Cmd) {
	d.mu.Lock()
	d.current = c
	d.mu.Unlock()
}

func (d *Driver) clearCurrent() {
	d.mu.Lock()
	d.current = nil
	d.mu.Unlock()
}

// KillCurrent forcefully resets the in-flight child, used by the
// moderator-with-retry controller between attempts (spec §4.1 "Kill API").
// Best-effort: failures are swallowed by callers per §4.5's algorithm.
func (d *Driver) KillCurrent() error {
	d.mu.Lock()
	c := d.current
	d.mu.Unlock()
	if c == nil || c.Process == nil {
		return nil
	}
	if err := c.Process.Kill(); err != nil {
		return &ProcessKillError{PID: c.Process.Pid, Reason: err.Error()}
	}
	return nil
}
