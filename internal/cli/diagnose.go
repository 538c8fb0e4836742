package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/harun/medic/pkg/agent"
	"github.com/harun/medic/pkg/consent"
	"github.com/harun/medic/pkg/prompts"
	"github.com/harun/medic/pkg/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type diagnoseOptions struct {
	apiKey      string
	provider    string
	model       string
	strict      bool
	jsonOutput  bool
	metricsFile string
	traceFile   string
}

var diagnoseFlags diagnoseOptions

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [problem...]",
	Short: "Diagnose a system problem",
	Long: `Describe the problem in plain language, as arguments or when prompted.
The agent gathers facts with allow-listed diagnostic commands and prints a
diagnosis. If it proposes a repair script you are asked whether to see it:
y shows the script and offers to save it, n keeps the diagnosis only, and
r starts over with a new problem.`,
	Example: `  medic diagnose "my laptop is very slow after the last update"
  GEMINI_API_KEY=... medic diagnose --json wifi keeps dropping`,
	RunE: runDiagnose,
}

func init() {
	f := diagnoseCmd.Flags()
	f.StringVar(&diagnoseFlags.apiKey, "api-key", "", "API key for the provider (default from config or <PROVIDER>_API_KEY)")
	f.StringVar(&diagnoseFlags.provider, "provider", "", "LLM provider (gemini, anthropic, openai)")
	f.StringVar(&diagnoseFlags.model, "model", "", "model name (default per provider)")
	f.BoolVar(&diagnoseFlags.strict, "strict", false, "allow only exact catalog commands")
	f.BoolVar(&diagnoseFlags.jsonOutput, "json", false, "print the result as JSON on stdout; prompts go to stderr")
	f.StringVar(&diagnoseFlags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	f.StringVar(&diagnoseFlags.traceFile, "trace-file", "", "append OpenTelemetry spans to this file as JSON")

	rootCmd.AddCommand(diagnoseCmd)
}

// diagnoseOutput is the --json document
type diagnoseOutput struct {
	RunID     string            `json:"run_id,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	Problem   string            `json:"problem"`
	Platform  string            `json:"platform"`
	State     string            `json:"state"`
	Fallback  bool              `json:"fallback,omitempty"`
	Error     string            `json:"error,omitempty"`
	Report    report.Report     `json:"report"`
	SavedTo   string            `json:"saved_to,omitempty"`
	ToolCalls []agent.ToolCall  `json:"tool_calls,omitempty"`
	Usage     *agent.TokenUsage `json:"usage,omitempty"`
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(cmd, appOptions{
		strict:      diagnoseFlags.strict,
		metricsFile: diagnoseFlags.metricsFile,
		traceFile:   diagnoseFlags.traceFile,
	})
	if err != nil {
		return err
	}
	defer a.close()

	stdout := cmd.OutOrStdout()
	out := stdout
	if diagnoseFlags.jsonOutput {
		out = cmd.ErrOrStderr()
	}
	prompt := consent.NewPrompt(cmd.InOrStdin(), out)

	diagnostician, err := a.diagnostician(agentOptions{
		apiKey:   diagnoseFlags.apiKey,
		provider: diagnoseFlags.provider,
		model:    diagnoseFlags.model,
	})
	if err != nil {
		var missing *agent.MissingAPIKeyError
		if errors.As(err, &missing) {
			return fmt.Errorf("%w (use --api-key or set %s)", err, agent.APIKeyEnv(missing.Provider))
		}
		return err
	}

	problem := strings.TrimSpace(strings.Join(args, " "))
	if problem == "" {
		if problem, err = prompt.AskLine(ctx, "Describe the problem: "); err != nil {
			return err
		}
	}

	platform := a.policy.Platform()
	scriptKind := prompts.ScriptKind(platform)
	gate := consent.NewGate()

	for {
		if err := gate.Begin(problem); err != nil {
			return err
		}

		fmt.Fprintf(out, "\n🔍 Diagnosing on %s: %s\n", platform.DisplayName(), gate.Problem())
		diagnosis, diagErr := diagnostician.Diagnose(ctx, gate.Problem())
		gate.SetRunID(diagnosis.RunID)
		if diagErr != nil && !diagnosis.Fallback {
			_ = gate.Fail(diagErr)
			return diagErr
		}
		if err := gate.Complete(report.Parse(diagnosis.Report)); err != nil {
			return err
		}

		printDiagnosis(out, gate.Diagnosis())

		var savedTo string
		if gate.State() == consent.AwaitingApproval {
			choice, err := prompt.AskScript(ctx, scriptKind)
			if err != nil {
				_ = gate.Decline()
				return err
			}

			switch choice {
			case consent.ChoiceNewDiagnosis:
				gate.Reset()
				next, err := prompt.AskLine(ctx, "\nDescribe the new problem (Enter to quit): ")
				if err != nil || next == "" {
					return err
				}
				problem = next
				continue

			case consent.ChoiceApprove:
				if err := gate.Approve(); err != nil {
					return err
				}
				script, err := gate.Script()
				if err != nil {
					return err
				}
				printScript(out, scriptKind, script)

				path, save, err := prompt.AskSavePath(ctx, consent.DefaultScriptName())
				if err != nil {
					return err
				}
				if save {
					if savedTo, err = gate.Save(path); err != nil {
						return err
					}
					fmt.Fprintf(out, "\n💾 Script saved to %s\n", savedTo)
					fmt.Fprintln(out, "   Review it before running it with administrator privileges.")
				}

			default:
				if err := gate.Decline(); err != nil {
					return err
				}
			}
		}

		if diagErr != nil {
			log.Warn().Err(diagErr).Msg("Showing fallback diagnosis")
		}

		if diagnoseFlags.jsonOutput {
			doc := diagnoseOutput{
				RunID:     diagnosis.RunID,
				Provider:  diagnosis.Provider,
				Problem:   gate.Problem(),
				Platform:  platform.DisplayName(),
				State:     gate.State().String(),
				Fallback:  diagnosis.Fallback,
				Report:    gate.Report(),
				SavedTo:   savedTo,
				ToolCalls: diagnosis.ToolCalls,
				Usage:     diagnosis.Usage,
			}
			if diagErr != nil {
				doc.Error = diagErr.Error()
			}
			return writeJSON(stdout, doc)
		}
		return nil
	}
}

func printDiagnosis(w io.Writer, diagnosis string) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "═══════════════════════ DIAGNOSIS ═══════════════════════")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, strings.TrimSpace(diagnosis))
	fmt.Fprintln(w, "")
}

func printScript(w io.Writer, scriptKind, script string) {
	fmt.Fprintf(w, "─────────────── %s ───────────────\n", scriptKind)
	fmt.Fprintln(w, script)
	fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
