package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/harun/medic/internal/observability"
	"github.com/harun/medic/pkg/toolexecutor"
	"github.com/spf13/cobra"
)

var (
	runStrict    bool
	runTraceFile string
)

var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run one allowed diagnostic command",
	Long: `Run a diagnostic command through the same guardrail and tool the agent
uses, and print what the agent would see. Denied commands are not executed.
Use "get_fix_commands" to print the repair command catalog.`,
	Example: `  medic run "df -h"
  medic run get_fix_commands`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runStrict, "strict", false, "allow only exact catalog commands")
	runCmd.Flags().StringVar(&runTraceFile, "trace-file", "", "append OpenTelemetry spans to this file as JSON")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{strict: runStrict, traceFile: runTraceFile})
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)

	result := a.executor.Execute(ctx, toolexecutor.SystemCommandToolName,
		map[string]interface{}{"command": strings.Join(args, " ")},
		&toolexecutor.ExecutionContext{RunID: runID, AgentID: "cli"},
	)
	if !result.Success {
		return fmt.Errorf("%s", result.Error)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Output)
	return nil
}
