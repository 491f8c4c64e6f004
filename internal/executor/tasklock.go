package executor

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileLocker applies/releases filesystem-level immutability (chattr +i/-i)
// around a task file's execution (spec §4.7, §6.7 AMI_SUDO_PASSWORD). It
// silently no-ops on filesystems that don't support the immutable flag
// (spec §4.7 "silently continues if the filesystem does not support
// immutability flags") and is distinguished from an actual lock failure,
// which is a ConfigError-worthy condition the caller may choose to escalate
// (SUPPLEMENTED FEATURES #5).
type FileLocker struct {
	log          *zap.Logger
	sudoPassword string
	isRoot       bool

	mu                   sync.Mutex
	unsupportedMountDirs map[string]bool
}

// NewFileLocker builds a FileLocker. sudoPassword may be empty when running
// as root.
func NewFileLocker(log *zap.Logger, sudoPassword string) *FileLocker {
	return &FileLocker{log: log, sudoPassword: sudoPassword, isRoot: currentUserIsRoot(), unsupportedMountDirs: map[string]bool{}}
}

// Lock applies chattr +i to path. Returns (supported=false, nil) when the
// filesystem is known not to support it — a silent no-op, not an error.
func (l *FileLocker) Lock(path string) (supported bool, err error) {
	return l.chattr(path, "+i")
}

// Unlock applies chattr -i to path, guaranteed to be called on every exit
// path by the caller (spec §4.7 "releases it in a guaranteed-on-exit
// block").
func (l *FileLocker) Unlock(path string) (supported bool, err error) {
	return l.chattr(path, "-i")
}

func (l *FileLocker) chattr(path, flag string) (bool, error) {
	dir := parentMount(path)
	l.mu.Lock()
	unsupported := l.unsupportedMountDirs[dir]
	l.mu.Unlock()
	if unsupported {
		return false, nil
	}

	chattrPath, err := exec.LookPath("chattr")
	if err != nil {
		return false, fmt.Errorf("chattr not found in PATH: %w", err)
	}

	var cmd *exec.Cmd
	if l.isRoot {
		cmd = exec.Command(chattrPath, flag, path)
	} else {
		if l.sudoPassword == "" {
			return false, errors.New("AMI_SUDO_PASSWORD required to lock task files when not running as root")
		}
		sudoPath, err := exec.LookPath("sudo")
		if err != nil {
			return false, fmt.Errorf("sudo not found in PATH: %w", err)
		}
		cmd = exec.Command(sudoPath, "-S", chattrPath, flag, path)
		cmd.Stdin = strings.NewReader(l.sudoPassword + "\n")
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		if strings.Contains(string(output), "Operation not supported") {
			l.mu.Lock()
			l.unsupportedMountDirs[dir] = true
			l.mu.Unlock()
			l.log.Debug("filesystem does not support chattr, skipping lock", zap.String("path", path))
			return false, nil
		}
		return false, fmt.Errorf("chattr %s %s: %w: %s", flag, path, err, string(output))
	}
	return true, nil
}

func parentMount(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return filepath.Dir(abs)
	}
	return filepath.Dir(path)
}

// sudoPasswordFromEnv reads AMI_SUDO_PASSWORD, required iff task file
// locking is enabled and the process is not root (spec §6.7).
func sudoPasswordFromEnv() string {
	return os.Getenv("AMI_SUDO_PASSWORD")
}

// currentUserIsRoot reports whether the process is running as root.
func currentUserIsRoot() bool {
	return os.Geteuid() == 0
}
