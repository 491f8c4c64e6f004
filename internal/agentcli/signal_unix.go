//go:build !windows

package agentcli

import "syscall"

// terminateSignal is the graceful-shutdown signal sent before the
// SIGKILL-equivalent hard kill (spec §4.1).
func terminateSignal() syscall.Signal {
	return syscall.SIGTERM
}
