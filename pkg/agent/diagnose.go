package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/harun/medic/pkg/guardrail"
	"github.com/harun/medic/pkg/prompts"
	"github.com/harun/medic/pkg/toolexecutor"
	"github.com/rs/zerolog/log"
)

// AgentID identifies the diagnostician in logs and tool execution contexts
const AgentID = "lead_diagnostician"

// Diagnostician runs the diagnostic agent for one problem description
type Diagnostician struct {
	runner   *Runner
	prompts  *prompts.Set
	platform guardrail.Platform
	config   AgentConfig
	tools    []string
}

// DiagnosticianConfig configures a Diagnostician
type DiagnosticianConfig struct {
	Runner   *Runner
	Prompts  *prompts.Set
	Platform guardrail.Platform
	Agent    AgentConfig
	// Tools offered to the model; defaults to system_command and system_info
	Tools []string
}

// Diagnosis is the outcome of one agent run
type Diagnosis struct {
	RunID     string      `json:"run_id"`
	Provider  string      `json:"provider,omitempty"`
	Report    string      `json:"report"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
	Fallback  bool        `json:"fallback,omitempty"`
}

// NewDiagnostician creates a diagnostician
func NewDiagnostician(cfg DiagnosticianConfig) (*Diagnostician, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	set := cfg.Prompts
	if set == nil {
		var err error
		if set, err = prompts.Default(); err != nil {
			return nil, err
		}
	}

	platform := cfg.Platform
	if platform == "" {
		platform = guardrail.CurrentPlatform()
	}

	tools := cfg.Tools
	if len(tools) == 0 {
		tools = []string{toolexecutor.SystemCommandToolName, toolexecutor.SystemInfoToolName}
	}

	return &Diagnostician{
		runner:   cfg.Runner,
		prompts:  set,
		platform: platform,
		config:   cfg.Agent,
		tools:    tools,
	}, nil
}

// Diagnose runs the agent on problem. When the agent fails the returned
// Diagnosis carries the fallback report and the error is returned alongside.
func (d *Diagnostician) Diagnose(ctx context.Context, problem string) (Diagnosis, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return Diagnosis{}, fmt.Errorf("problem description is required")
	}

	rendered := d.prompts.Render(problem, d.platform)

	log.Info().Str("problem", problem).Msg("Starting system diagnosis")

	result, err := d.runner.Run(ctx, RunParams{
		Prompt:       rendered.User,
		SystemPrompt: rendered.System,
		Config:       d.config,
		Tools:        d.tools,
		AgentID:      AgentID,
		ToolPolicy:   &toolexecutor.ToolPolicy{Allow: d.tools},
	})
	if err == nil && strings.TrimSpace(result.Response) == "" {
		err = fmt.Errorf("agent returned an empty report")
	}
	if err != nil {
		log.Error().Err(err).Str("run_id", result.RunID).Msg("Diagnosis failed, returning fallback report")
		return Diagnosis{
			RunID:    result.RunID,
			Report:   FallbackReport(problem, err, d.platform),
			Fallback: true,
		}, err
	}

	log.Info().
		Str("run_id", result.RunID).
		Str("provider", result.Provider).
		Int("tool_calls", len(result.ToolCalls)).
		Msg("Diagnosis complete")

	return Diagnosis{
		RunID:     result.RunID,
		Provider:  result.Provider,
		Report:    result.Response,
		ToolCalls: result.ToolCalls,
		Usage:     result.Usage,
	}, nil
}

// FallbackReport is shown when the automated diagnosis cannot complete
func FallbackReport(problem string, cause error, platform guardrail.Platform) string {
	steps, commands, shell := fallbackSteps(platform)

	var b strings.Builder
	fmt.Fprintf(&b, "**Problem Summary:** %s\n\n", problem)
	b.WriteString("**Diagnostic Results:** An error occurred during the automated diagnosis process.\n\n")
	fmt.Fprintf(&b, "**Root Cause Analysis:** Unable to complete automated diagnosis due to: %v\n\n", cause)
	b.WriteString("**Recommended Action:** Please try the following manual steps:\n")
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n**Manual Diagnostic Commands to Try:**\n```\n")
	for _, cmd := range commands {
		b.WriteString(cmd)
		b.WriteString("\n")
	}
	b.WriteString("```\n\n")
	fmt.Fprintf(&b, "Note: The automated script generation failed. Please run these commands manually in %s.\n", shell)
	return b.String()
}

func fallbackSteps(platform guardrail.Platform) (steps, commands []string, shell string) {
	switch platform {
	case guardrail.PlatformWindows:
		return []string{
				"Run Windows System File Checker",
				"Check for Windows Updates",
				"Restart your computer",
				"Contact technical support if issues persist",
			},
			[]string{"systeminfo", "sfc /scannow", "chkdsk C: /f"},
			"an Administrator Command Prompt"
	case guardrail.PlatformDarwin:
		return []string{
				"Run First Aid in Disk Utility",
				"Check for macOS software updates",
				"Restart your computer",
				"Contact technical support if issues persist",
			},
			[]string{"system_profiler SPSoftwareDataType", "df -h", "log show --last 1h --predicate 'messageType == error'"},
			"Terminal"
	default:
		return []string{
				"Check the system journal for errors",
				"Install pending package updates",
				"Restart your computer",
				"Contact technical support if issues persist",
			},
			[]string{"uname -a", "df -h", "journalctl -p err -b"},
			"a root shell"
	}
}
