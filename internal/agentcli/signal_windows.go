//go:build windows

package agentcli

import "os"

// terminateSignal has no SIGTERM equivalent on Windows; os.Kill is used
// directly and the grace window in terminateThenKill becomes a no-op wait.
func terminateSignal() os.Signal {
	return os.Kill
}
