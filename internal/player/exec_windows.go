//go:build windows

package player

import (
	"os/exec"
	"syscall"
)

// configureCommand prevents a console window but allows the player's own
// window to show.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}
