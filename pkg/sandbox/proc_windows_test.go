//go:build windows

package sandbox

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureProcess_KillsTree(t *testing.T) {
	cmd := shellCommand(context.Background(), "ver")
	configureProcess(cmd)

	assert.NotNil(t, cmd.Cancel)
	assert.Equal(t, "cmd.exe /C ver", cmd.SysProcAttr.CmdLine)

	kill := killTreeCommand(4242)
	assert.Equal(t, []string{"/T", "/F", "/PID", "4242"}, kill.Args[1:])
}

func TestHostRunner_Execute_TimeoutKillsChildren(t *testing.T) {
	if _, err := exec.LookPath("taskkill"); err != nil {
		t.Skip("taskkill not available")
	}
	runner, err := NewHostRunner(DefaultConfig())
	require.NoError(t, err)

	start := time.Now()
	result, err := runner.Execute(context.Background(), ExecuteRequest{
		Shell:   "ping -n 30 127.0.0.1",
		Timeout: 200 * time.Millisecond,
	})

	assert.ErrorIs(t, err, ErrExecutionTimeout)
	assert.Equal(t, -1, result.ExitCode)
	// a surviving ping would hold the pipes open until WaitDelay
	assert.Less(t, time.Since(start), 2*time.Second)
}
