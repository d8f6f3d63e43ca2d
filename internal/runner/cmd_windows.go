//go:build windows

package runner

import (
	"os/exec"
	"syscall"
)

// CREATE_NO_WINDOW keeps supervised console programs from flashing a
// window on spawn.
func prepareCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: 0x08000000,
	}
}
