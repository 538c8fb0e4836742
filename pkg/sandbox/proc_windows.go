//go:build windows

package sandbox

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"
)

func shellCommand(ctx context.Context, line string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "cmd.exe")
	// cmd.exe does its own parsing; hand it the line untouched.
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: "cmd.exe /C " + line}
	return cmd
}

// configureProcess makes cancellation kill the whole process tree rooted at
// cmd.exe, matching the process-group kill on Unix.
func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		if err := killTreeCommand(cmd.Process.Pid).Run(); err != nil {
			log.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("taskkill failed, killing shell only")
			return cmd.Process.Kill()
		}
		return nil
	}
}

func killTreeCommand(pid int) *exec.Cmd {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid))
}

// 9009 is cmd.exe's "is not recognized as an internal or external command"
func isShellNotFound(code int) bool { return code == 9009 }

func isShellNotExecutable(code int) bool { return false }
