package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/db"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset data in the database",
	Long: `Reset data in the database. Users are always kept.

Examples:
  timeledger reset invoices   # Delete all invoices and release their entries
  timeledger reset entries    # Delete all time entries and invoices
  timeledger reset all        # Wipe clients, projects, subcontractors, entries and invoices`,
}

// resetScopeCmd builds a reset subcommand for one scope
func resetScopeCmd(scope db.ResetScope, short, prompt, done string) *cobra.Command {
	return &cobra.Command{
		Use:   string(scope),
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmPrompt(prompt) {
				fmt.Println("Cancelled.")
				return nil
			}

			if err := appInstance.DB.Reset(cmd.Context(), scope); err != nil {
				return err
			}

			fmt.Println(done)
			return nil
		},
	}
}

func confirmPrompt(message string) bool {
	fmt.Printf("%s [y/N] ", message)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	input = strings.TrimSpace(strings.ToLower(input))
	return input == "y" || input == "yes"
}

func init() {
	resetCmd.AddCommand(resetScopeCmd(db.ResetInvoices,
		"Delete all invoices and release associated time entries",
		"This will delete ALL invoices and return their entries to unbilled. Continue?",
		"All invoices have been deleted and time entries released."))
	resetCmd.AddCommand(resetScopeCmd(db.ResetEntries,
		"Delete all time entries, timers and invoices",
		"This will delete ALL time entries, timers and invoices. Continue?",
		"All time entries, timers and invoices have been deleted."))
	resetCmd.AddCommand(resetScopeCmd(db.ResetAll,
		"Delete ALL data except users",
		"This will delete ALL data (clients, projects, entries, invoices, everything but users). Continue?",
		"All data has been deleted."))
}
