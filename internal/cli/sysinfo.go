package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var sysinfoJSON bool

var sysinfoCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Show host information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		info, err := collectSystemInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to collect system information: %w", err)
		}
		if sysinfoJSON {
			return writeJSON(cmd.OutOrStdout(), info)
		}
		fmt.Fprint(cmd.OutOrStdout(), info.String())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "medic version %s\n", version)
	},
}

func init() {
	sysinfoCmd.Flags().BoolVar(&sysinfoJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(sysinfoCmd)
	rootCmd.AddCommand(versionCmd)
}
