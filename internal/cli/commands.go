package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harun/medic/pkg/guardrail"
	"github.com/spf13/cobra"
)

// ErrCommandDenied is returned by check when the guardrail refuses the command
var ErrCommandDenied = errors.New("command denied")

var (
	commandsFix    bool
	commandsStrict bool
	commandsJSON   bool
	checkStrict    bool
	checkJSON      bool
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List allowed diagnostic commands",
	Long: `List the diagnostic commands the agent may run on this platform, including
extra entries from the config file. With --fix, list the repair command
categories the agent may use when writing a fix script.`,
	Args: cobra.NoArgs,
	RunE: runCommands,
}

var checkCmd = &cobra.Command{
	Use:   "check <command>",
	Short: "Check a command against the allow-list",
	Long:  `Print the guardrail decision for a command. Exits with status 1 when it is denied.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	commandsCmd.Flags().BoolVar(&commandsFix, "fix", false, "list repair command categories instead")
	commandsCmd.Flags().BoolVar(&commandsStrict, "strict", false, "load the policy in strict mode")
	commandsCmd.Flags().BoolVar(&commandsJSON, "json", false, "print as JSON")

	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "allow only exact catalog commands")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the decision as JSON")

	rootCmd.AddCommand(commandsCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCommands(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{strict: commandsStrict})
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	platform := a.policy.Platform()

	if commandsFix {
		if commandsJSON {
			return writeJSON(out, a.policy.FixCategories())
		}
		fmt.Fprint(out, guardrail.FormatFixCommands(platform))
		return nil
	}

	allowed := a.policy.Allowed()
	if commandsJSON {
		return writeJSON(out, allowed)
	}

	mode := "program match"
	if a.policy.Strict() {
		mode = "strict"
	}
	fmt.Fprintf(out, "Allowed diagnostic commands for %s (%s):\n", platform.DisplayName(), mode)
	for _, c := range allowed {
		fmt.Fprintf(out, "  - %s\n", c)
	}
	for _, entry := range a.cfg.Guardrail.Allow {
		if entry.Pattern != "" {
			fmt.Fprintf(out, "  - %s (pattern)\n", entry.Pattern)
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, appOptions{strict: checkStrict})
	if err != nil {
		return err
	}
	defer a.close()

	decision := a.policy.Check(strings.Join(args, " "))
	out := cmd.OutOrStdout()

	if checkJSON {
		if err := writeJSON(out, decision); err != nil {
			return err
		}
	} else {
		verdict := "allowed"
		if !decision.Allowed {
			verdict = "denied"
		}
		fmt.Fprintf(out, "%s: %s\n", verdict, decision.Command)
		if decision.Matched != "" {
			fmt.Fprintf(out, "  matched: %s\n", decision.Matched)
		}
		fmt.Fprintf(out, "  reason:  %s\n", decision.Reason)
	}

	if !decision.Allowed {
		return ErrCommandDenied
	}
	return nil
}
