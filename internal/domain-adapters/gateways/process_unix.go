//go:build unix

package gateways

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup starts cmd in its own process group and kills the whole group
// when its context ends, so children spawned by a shell do not outlive it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
