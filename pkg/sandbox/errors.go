package sandbox

import "errors"

var (
	// ErrInvalidTimeout is returned when the timeout is invalid
	ErrInvalidTimeout = errors.New("invalid timeout (must be >= 0)")

	// ErrInvalidOutputLimit is returned when the output limit is invalid
	ErrInvalidOutputLimit = errors.New("invalid output limit (must be >= 0)")

	// ErrInvalidRequest is returned when a request sets neither or both of Shell and Command
	ErrInvalidRequest = errors.New("exactly one of shell or command must be set")

	// ErrExecutionTimeout is returned when execution times out
	ErrExecutionTimeout = errors.New("execution timed out")

	// ErrCommandNotFound is returned when the program does not exist on this system
	ErrCommandNotFound = errors.New("command not found")

	// ErrPermissionDenied is returned when the program may not be executed
	ErrPermissionDenied = errors.New("permission denied")

	// ErrFilesystemAccessDenied is returned when the working directory is denied
	ErrFilesystemAccessDenied = errors.New("filesystem access denied")
)
