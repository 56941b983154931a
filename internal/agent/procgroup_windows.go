//go:build windows

package agent

import (
	"os/exec"
	"time"
)

// setProcGroup only sets a wait delay on Windows, which has no Unix-style
// process groups. Pseudo-terminal start is unsupported there and Run fails
// with the pty package's error.
func setProcGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 3 * time.Second
}
