package sandbox

import (
	"context"
	"time"
)

// DefaultTimeout bounds a single diagnostic command
const DefaultTimeout = 180 * time.Second

// DefaultMaxOutputBytes caps captured stdout and stderr each
const DefaultMaxOutputBytes = 1 << 20

// Config defines runner configuration
type Config struct {
	// Timeout limits execution time when a request does not set one
	Timeout time.Duration `json:"timeout"`

	// MaxOutputBytes caps how much of each output stream is kept
	MaxOutputBytes int `json:"max_output_bytes"`

	// FilesystemAccess restricts the working directories a request may use
	FilesystemAccess FilesystemAccess `json:"filesystem_access"`
}

// FilesystemAccess defines working directory rules
type FilesystemAccess struct {
	// AllowedPaths lists directories a command may run in (empty means any)
	AllowedPaths []string `json:"allowed_paths"`

	// DeniedPaths lists directories a command may not run in
	DeniedPaths []string `json:"denied_paths"`
}

// ExecuteRequest represents an execution request.
// Exactly one of Shell or Command must be set.
type ExecuteRequest struct {
	// Shell is a command line run through the platform shell
	Shell string `json:"shell,omitempty"`

	// Command is a program run directly with Args
	Command string `json:"command,omitempty"`

	// Args are the command arguments
	Args []string `json:"args,omitempty"`

	// Env are extra environment variables
	Env map[string]string `json:"env,omitempty"`

	// WorkingDir is the working directory
	WorkingDir string `json:"working_dir,omitempty"`

	// Stdin is the standard input
	Stdin []byte `json:"stdin,omitempty"`

	// Timeout is the execution timeout
	Timeout time.Duration `json:"timeout,omitempty"`
}

// ExecuteResult represents an execution result
type ExecuteResult struct {
	// Stdout is the standard output, invalid UTF-8 dropped
	Stdout string `json:"stdout"`

	// Stderr is the standard error, invalid UTF-8 dropped
	Stderr string `json:"stderr"`

	// ExitCode is the process exit code (-1 when the process did not finish)
	ExitCode int `json:"exit_code"`

	// Duration is the execution duration
	Duration time.Duration `json:"duration"`

	// Truncated is set when an output stream hit MaxOutputBytes
	Truncated bool `json:"truncated,omitempty"`

	// Error is any execution error
	Error error `json:"-"`
}

// Runner executes commands
type Runner interface {
	Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error)
}

// DefaultConfig returns a default runner configuration
func DefaultConfig() Config {
	return Config{
		Timeout:        DefaultTimeout,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// ValidateConfig validates a runner configuration
func ValidateConfig(cfg Config) error {
	if cfg.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if cfg.MaxOutputBytes < 0 {
		return ErrInvalidOutputLimit
	}

	return nil
}
