package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage clients",
	Long:  `List, add, edit, deactivate and reactivate clients.`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		includeInactive, _ := cmd.Flags().GetBool("inactive")

		clients, err := appInstance.Clients.List(cmd.Context(), includeInactive)
		if err != nil {
			return fmt.Errorf("failed to list clients: %w", err)
		}

		if len(clients) == 0 {
			fmt.Println("No clients found")
			return nil
		}

		// Print table header
		fmt.Printf("%-5s %-30s %-8s %-12s %-12s %-6s %-10s\n", "ID", "Name", "Code", "Billing", "Default", "Terms", "Status")
		fmt.Println("--------------------------------------------------------------------------------------")

		for _, client := range clients {
			status := "Active"
			if !client.IsActive {
				status = "Inactive"
			}
			fmt.Printf("%-5d %-30s %-8s %-12s %-12s %-6d %-10s\n",
				client.ID,
				truncate(client.Name, 30),
				truncate(client.Code, 8),
				optionalMoney(client.BillingRate),
				optionalMoney(client.DefaultRate),
				client.PaymentTerms,
				status,
			)
		}

		fmt.Printf("\nTotal: %d client(s)\n", len(clients))
		return nil
	},
}

var clientsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := clientPatchFromFlags(cmd)
		if err != nil {
			return err
		}

		client := domain.NewClient(args[0])
		client.Apply(patch)
		if err := client.Validate(); err != nil {
			return fmt.Errorf("invalid client: %w", err)
		}

		if err := appInstance.Clients.Create(cmd.Context(), client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}

		fmt.Printf("✓ Client created: %s (ID: %d)\n", client.Name, client.ID)
		if client.BillingRate.Valid {
			fmt.Printf("  Billing Rate: %s\n", money(client.BillingRate.Decimal))
		}
		return nil
	},
}

var clientsEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit an existing client",
	Long: `Edit an existing client. Only the flags given are changed.
Pass "none" to a rate flag to clear it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("client", args[0])
		if err != nil {
			return err
		}

		patch, err := clientPatchFromFlags(cmd)
		if err != nil {
			return err
		}
		patch.Name = stringFlag(cmd, "name")

		client, err := appInstance.Clients.Update(cmd.Context(), id, patch)
		if err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}

		fmt.Printf("✓ Client updated: %s\n", client.Name)
		return nil
	},
}

var clientsDeactivateCmd = &cobra.Command{
	Use:     "deactivate [id]",
	Aliases: []string{"archive"},
	Short:   "Deactivate a client",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("client", args[0])
		if err != nil {
			return err
		}

		client, err := appInstance.Clients.Get(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get client: %w", err)
		}

		if err := appInstance.Clients.Deactivate(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to deactivate client: %w", err)
		}

		fmt.Printf("✓ Client deactivated: %s\n", client.Name)
		return nil
	},
}

var clientsReactivateCmd = &cobra.Command{
	Use:     "reactivate [id]",
	Aliases: []string{"unarchive"},
	Short:   "Reactivate a client",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("client", args[0])
		if err != nil {
			return err
		}

		if err := appInstance.Clients.Reactivate(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to reactivate client: %w", err)
		}

		fmt.Printf("✓ Client reactivated (ID: %d)\n", id)
		return nil
	},
}

func clientPatchFromFlags(cmd *cobra.Command) (domain.ClientPatch, error) {
	var (
		patch domain.ClientPatch
		err   error
	)
	if patch.BillingRate, err = nullableDecimalFlag(cmd, "billing-rate"); err != nil {
		return patch, err
	}
	if patch.DefaultRate, err = nullableDecimalFlag(cmd, "default-rate"); err != nil {
		return patch, err
	}
	if code := stringFlag(cmd, "code"); code != nil {
		patch.Code = domain.SetTo(*code)
	}
	patch.InvoiceEmail = stringFlag(cmd, "email")
	patch.InvoiceCC = stringFlag(cmd, "cc")
	patch.InvoiceRecipientName = stringFlag(cmd, "recipient")
	patch.Notes = stringFlag(cmd, "notes")
	if cmd.Flags().Changed("terms") {
		terms, _ := cmd.Flags().GetInt("terms")
		patch.PaymentTerms = &terms
	}
	return patch, nil
}

func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String("billing-rate", "", "Client billing rate per hour")
	cmd.Flags().String("default-rate", "", "Fallback rate for projects without their own")
	cmd.Flags().String("code", "", "Short client code")
	cmd.Flags().String("email", "", "Invoice email")
	cmd.Flags().String("cc", "", "Invoice CC addresses")
	cmd.Flags().String("recipient", "", "Invoice recipient name")
	cmd.Flags().Int("terms", domain.DefaultPaymentTerms, "Payment terms in days")
	cmd.Flags().String("notes", "", "Notes about the client")
}

func init() {
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsAddCmd)
	clientsCmd.AddCommand(clientsEditCmd)
	clientsCmd.AddCommand(clientsDeactivateCmd)
	clientsCmd.AddCommand(clientsReactivateCmd)

	// List flags
	clientsListCmd.Flags().Bool("inactive", false, "Include inactive clients")

	addClientFlags(clientsAddCmd)

	// Edit flags
	clientsEditCmd.Flags().String("name", "", "New name")
	addClientFlags(clientsEditCmd)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
