// Package cmd provides the CLI commands for the orchestration service.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// verbose enables verbose output
	verbose bool
	// outputFormat specifies the output format (json, plain)
	outputFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "orchestrator",
	Short: "Warehouse workflow orchestration engine",
	Long: `Orchestrator runs long-lived warehouse workflows as sagas: each
step calls an execution service, failed steps retry with backoff, and
unrecoverable failures compensate the executed steps in reverse order.

The server command starts the HTTP API, the waveless admission
scheduler, and the delayed-retry worker in one process.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// NewRootCmd creates a fresh root command tree for tests.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "orchestrator",
		Short:        rootCmd.Short,
		Long:         rootCmd.Long,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "plain", "output format (json|plain)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServerCmd())

	return cmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "plain", "output format (json|plain)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServerCmd())
}
