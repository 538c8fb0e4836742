package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/medic/internal/observability"
	"github.com/harun/medic/internal/tracing"
	"github.com/harun/medic/pkg/guardrail"
	"github.com/harun/medic/pkg/sandbox"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// SystemCommandToolName is the name the agent calls the command tool by
	SystemCommandToolName = "system_command"

	// SystemInfoToolName is the name of the host summary tool
	SystemInfoToolName = "system_info"
)

// SystemCommandOptions configures the diagnostic command tool
type SystemCommandOptions struct {
	Policy *guardrail.Policy
	Runner sandbox.Runner
	// Timeout per command; sandbox.DefaultTimeout when zero
	Timeout time.Duration
	// Release is shown next to the OS name in command output headers
	Release string
}

// SystemCommand runs agent-requested diagnostics through the guardrail
type SystemCommand struct {
	policy  *guardrail.Policy
	runner  sandbox.Runner
	timeout time.Duration
	release string
}

// NewSystemCommand creates the diagnostic command tool
func NewSystemCommand(opts SystemCommandOptions) (*SystemCommand, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("guardrail policy is required")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = sandbox.DefaultTimeout
	}

	return &SystemCommand{
		policy:  opts.Policy,
		runner:  opts.Runner,
		timeout: timeout,
		release: opts.Release,
	}, nil
}

// Definition returns the tool definition to register with a ToolExecutor
func (s *SystemCommand) Definition() ToolDefinition {
	return ToolDefinition{
		Name: SystemCommandToolName,
		Description: "System Diagnostic Command Executor. Executes safe, read-only system diagnostic commands " +
			"to gather system information for analysis. Use 'get_fix_commands' to retrieve available repair commands " +
			"for script generation.",
		Parameters: []ToolParameter{
			{
				Name:        "command",
				Type:        "string",
				Description: "The specific, safe command to execute. Must be one of the approved diagnostic commands or 'get_fix_commands' to retrieve available fix commands.",
				Required:    true,
			},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			command, _ := params["command"].(string)
			return s.Run(ctx, command), nil
		},
	}
}

// Run executes one command and renders the outcome as text for the agent.
// Failures are part of the text; Run never returns an error.
func (s *SystemCommand) Run(ctx context.Context, command string) string {
	command = strings.TrimSpace(command)
	platform := s.policy.Platform()

	if guardrail.IsFixCommandsRequest(command) {
		return guardrail.FormatFixCommands(platform)
	}

	decision := s.policy.Check(command)
	observability.RecordCommandCheck(decision.Allowed)
	if !decision.Allowed {
		log.Warn().
			Str("command", command).
			Str("reason", decision.Reason).
			Msg("Command blocked by guardrail")
		observability.RecordCommandAudit(ctx, command, "denied", map[string]interface{}{"reason": decision.Reason})
		return s.policy.FormatDenied(command)
	}

	req := sandbox.ExecuteRequest{Shell: command, Timeout: s.timeout}
	if fields := strings.Fields(command); strings.EqualFold(fields[0], "powershell") {
		if platform != guardrail.PlatformWindows {
			return "Error: PowerShell commands are only available on Windows systems."
		}
		req = sandbox.ExecuteRequest{
			Command: "powershell",
			Args:    []string{"-Command", strings.TrimSpace(command[len(fields[0]):])},
			Timeout: s.timeout,
		}
	}

	ctx, span := tracing.StartSpan(ctx, "command.execute",
		attribute.String("command", command),
		attribute.String("matched", decision.Matched),
	)
	result, err := s.runner.Execute(ctx, req)
	status := executionStatus(result, err)
	span.SetAttributes(attribute.String("status", status), attribute.Int("exit_code", result.ExitCode))
	tracing.End(span, err)
	observability.RecordCommandExecution(status, result.Duration)
	observability.RecordCommandAudit(ctx, command, status, map[string]interface{}{
		"exit_code":   result.ExitCode,
		"duration_ms": result.Duration.Milliseconds(),
		"matched":     decision.Matched,
	})

	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrExecutionTimeout):
			return fmt.Sprintf("Error: The command '%s' timed out after %d seconds.", command, int(s.timeout.Seconds()))
		case errors.Is(err, sandbox.ErrCommandNotFound):
			return fmt.Sprintf("Error: The command '%s' was not found on this system. This may indicate the required tool is not installed.", command)
		case errors.Is(err, sandbox.ErrPermissionDenied):
			return fmt.Sprintf("Error: Permission denied executing '%s'. This command may require administrator/root privileges.", command)
		default:
			return fmt.Sprintf("An unexpected error occurred while running '%s': %v", command, err)
		}
	}

	stderr := strings.TrimSpace(result.Stderr)
	if result.ExitCode != 0 && stderr != "" {
		if result.Stdout != "" {
			return fmt.Sprintf("Command completed with warnings.\nWarnings: %s\n\nOutput:\n%s", stderr, result.Stdout)
		}
		return fmt.Sprintf("Command failed with error: %s", stderr)
	}

	if strings.TrimSpace(result.Stdout) != "" {
		header := platform.DisplayName()
		if s.release != "" {
			header += " " + s.release
		}
		return fmt.Sprintf("--- Command Output for '%s' ---\nSystem: %s\n\n%s", command, header, result.Stdout)
	}

	return fmt.Sprintf("Command '%s' executed successfully but returned no output.", command)
}

func executionStatus(result sandbox.ExecuteResult, err error) string {
	switch {
	case errors.Is(err, sandbox.ErrExecutionTimeout):
		return "timeout"
	case errors.Is(err, sandbox.ErrCommandNotFound):
		return "not_found"
	case errors.Is(err, sandbox.ErrPermissionDenied):
		return "permission_denied"
	case err != nil:
		return "error"
	case result.ExitCode != 0:
		return "nonzero_exit"
	default:
		return "success"
	}
}
