//go:build windows

package sandbox

import "os/exec"

func configureCommandProcess(cmd *exec.Cmd) {}

func terminateCommandProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	// Best effort: kills the direct child only.
	_ = cmd.Process.Kill()
}
