package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/app"
)

var appInstance *app.App

var rootCmd = &cobra.Command{
	Use:   "timeledger",
	Short: "Time, billing and analytics for a consulting firm",
	Long: `Timeledger tracks consultant and subcontractor time, resolves billing
rates, issues sequentially numbered invoices, and reports on revenue.

By default, running timeledger without arguments launches the interactive TUI.
Use subcommands for CLI operations, or "timeledger serve" for the HTTP API.`,
	SilenceUsage: true,
	// Default behavior: launch TUI
	RunE: launchTUI,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetApp sets the app instance for commands to use
func SetApp(a *app.App) {
	appInstance = a
}

// NeedsApp reports whether the command line runs a command that touches the
// database. Help and config commands work without unlocking it.
func NeedsApp(args []string) bool {
	for _, a := range args {
		switch a {
		case "-h", "--help", "help", "completion":
			return false
		}
	}
	return len(args) == 0 || args[0] != "config"
}

func init() {
	// Add all subcommands
	rootCmd.AddCommand(timerCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(projectsCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(subcontractorsCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(invoicesCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(tuiCmd)
}
