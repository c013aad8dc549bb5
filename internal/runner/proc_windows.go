//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// configureProcess keeps the shell from opening a console window.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow,
	}
}

func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
