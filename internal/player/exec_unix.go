//go:build !windows

package player

import "os/exec"

// configureCommand is a no-op on Unix
func configureCommand(cmd *exec.Cmd) {}
