package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// HostRunner executes commands directly on the host
type HostRunner struct {
	config Config
	mu     sync.RWMutex
}

// NewHostRunner creates a new host runner
func NewHostRunner(config Config) (*HostRunner, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HostRunner{config: config}, nil
}

// GetConfig returns the runner configuration
func (h *HostRunner) GetConfig() Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// SetConfig updates the runner configuration
func (h *HostRunner) SetConfig(config Config) error {
	if err := ValidateConfig(config); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.config = config
	return nil
}

// Execute runs a command on the host. A non-zero exit status is reported
// through ExitCode, not as an error.
func (h *HostRunner) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	cfg := h.GetConfig()

	if (req.Shell == "") == (req.Command == "") {
		return ExecuteResult{ExitCode: -1, Error: ErrInvalidRequest}, ErrInvalidRequest
	}

	if err := checkFilesystemAccess(cfg.FilesystemAccess, req.WorkingDir); err != nil {
		return ExecuteResult{ExitCode: -1, Error: err}, err
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if req.Shell != "" {
		cmd = shellCommand(execCtx, req.Shell)
	} else {
		cmd = exec.CommandContext(execCtx, req.Command, req.Args...)
	}
	configureProcess(cmd)
	cmd.WaitDelay = 2 * time.Second

	if req.WorkingDir != "" {
		cmd.Dir = req.WorkingDir
	}

	cmd.Env = buildEnvironment(req.Env)

	limit := cfg.MaxOutputBytes
	if limit == 0 {
		limit = DefaultMaxOutputBytes
	}
	stdout := &limitedBuffer{limit: limit}
	stderr := &limitedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if len(req.Stdin) > 0 {
		cmd.Stdin = bytes.NewReader(req.Stdin)
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	result := ExecuteResult{
		Stdout:    strings.ToValidUTF8(stdout.String(), ""),
		Stderr:    strings.ToValidUTF8(stderr.String(), ""),
		Duration:  duration,
		Truncated: stdout.truncated || stderr.truncated,
	}

	// Check for timeout first
	if errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		result.ExitCode = -1
		result.Error = ErrExecutionTimeout
		log.Warn().
			Str("command", req.display()).
			Dur("timeout", timeout).
			Msg("Command timed out")
		return result, ErrExecutionTimeout
	}
	if ctx.Err() != nil {
		result.ExitCode = -1
		result.Error = ctx.Err()
		return result, ctx.Err()
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, os.ErrNotExist):
			result.ExitCode = -1
			result.Error = fmt.Errorf("%w: %v", ErrCommandNotFound, err)
			return result, result.Error
		case errors.Is(err, os.ErrPermission):
			result.ExitCode = -1
			result.Error = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			return result, result.Error
		default:
			result.ExitCode = -1
			result.Error = err
			return result, err
		}
	}

	if req.Shell != "" {
		switch {
		case isShellNotFound(result.ExitCode):
			result.Error = ErrCommandNotFound
			return result, ErrCommandNotFound
		case isShellNotExecutable(result.ExitCode):
			result.Error = ErrPermissionDenied
			return result, ErrPermissionDenied
		}
	}

	log.Debug().
		Str("command", req.display()).
		Int("exit_code", result.ExitCode).
		Dur("duration", duration).
		Bool("truncated", result.Truncated).
		Msg("Command executed on host")

	return result, nil
}

func (r ExecuteRequest) display() string {
	if r.Shell != "" {
		return r.Shell
	}
	if len(r.Args) == 0 {
		return r.Command
	}
	return r.Command + " " + strings.Join(r.Args, " ")
}

// checkFilesystemAccess checks if a working directory is allowed
func checkFilesystemAccess(rules FilesystemAccess, path string) error {
	if path == "" {
		return nil
	}

	cleanPath := filepath.Clean(path)

	// Check denied paths first
	for _, denied := range rules.DeniedPaths {
		if withinDir(cleanPath, denied) {
			return fmt.Errorf("%w: %s", ErrFilesystemAccessDenied, path)
		}
	}

	// If allowed paths is empty, allow all (except denied)
	if len(rules.AllowedPaths) == 0 {
		return nil
	}

	for _, allowed := range rules.AllowedPaths {
		if withinDir(cleanPath, allowed) {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrFilesystemAccessDenied, path)
}

func withinDir(path, dir string) bool {
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// buildEnvironment inherits the user's environment so diagnostics see the
// real PATH and profile variables such as %TEMP%
func buildEnvironment(env map[string]string) []string {
	result := os.Environ()
	for key, value := range env {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	return result
}

// limitedBuffer keeps the first limit bytes written to it and discards the rest
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
