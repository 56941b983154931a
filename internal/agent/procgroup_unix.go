//go:build !windows

package agent

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup makes context cancellation kill the agent's whole process
// group. The pty start places the child in a new session, so its pid is also
// its process group id.
func setProcGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	// Grace period for children to drain after the group is killed.
	cmd.WaitDelay = 3 * time.Second
}
