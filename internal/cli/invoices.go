package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Manage invoices",
	Long:  `Bill unbilled time, and list, send, record payment for and render invoices.`,
}

var invoicesUnbilledCmd = &cobra.Command{
	Use:   "unbilled",
	Short: "Summarize unbilled time per client",
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := appInstance.Invoices.UnbilledSummary(cmd.Context(), appInstance.Scope(), int64Flag(cmd, "client"))
		if err != nil {
			return fmt.Errorf("failed to load unbilled time: %w", err)
		}

		if len(groups) == 0 {
			fmt.Println("Nothing to bill")
			return nil
		}

		fmt.Printf("%-5s %-25s %-8s %-10s %-12s %-23s\n", "ID", "Client", "Entries", "Hours", "Amount", "Period")
		fmt.Println("------------------------------------------------------------------------------------")
		for _, g := range groups {
			fmt.Printf("%-5d %-25s %-8d %-10s %-12s %s - %s\n",
				g.ClientID,
				truncate(g.ClientName, 25),
				g.EntryCount,
				g.Hours.StringFixed(2),
				money(g.Amount),
				domain.FormatDate(g.OldestDate),
				domain.FormatDate(g.NewestDate),
			)
		}
		return nil
	},
}

var invoicesCreateCmd = &cobra.Command{
	Use:   "create [client_id]",
	Short: "Create an invoice from a client's unbilled entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := parseID("client", args[0])
		if err != nil {
			return err
		}

		req := service.CreateInvoiceRequest{ClientID: clientID}
		req.EntryIDs, _ = cmd.Flags().GetInt64Slice("entries")
		req.Notes, _ = cmd.Flags().GetString("notes")
		if tax, ok, err := decimalFlag(cmd, "tax"); err != nil {
			return err
		} else if ok {
			req.TaxRate = &tax
		}
		if req.InvoiceDate, err = dateFlag(cmd, "date"); err != nil {
			return err
		}

		invoice, err := appInstance.Invoices.CreateInvoice(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		fmt.Printf("✓ Invoice created: %s\n", invoice.InvoiceNumber)
		fmt.Printf("  Items: %d\n", len(invoice.Items))
		fmt.Printf("  Subtotal: %s\n", money(invoice.Subtotal))
		if invoice.TaxAmount.IsPositive() {
			fmt.Printf("  Tax: %s\n", money(invoice.TaxAmount))
		}
		fmt.Printf("  Total: %s\n", money(invoice.Total))
		fmt.Printf("  Due: %s\n", domain.FormatDate(invoice.DueDate))
		return nil
	},
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := repository.InvoiceFilter{ClientID: int64Flag(cmd, "client")}
		if s := stringFlag(cmd, "status"); s != nil {
			status := domain.InvoiceStatus(*s)
			filter.Status = &status
		}
		if s := stringFlag(cmd, "payment"); s != nil {
			payment := domain.PaymentStatus(*s)
			filter.PaymentStatus = &payment
		}
		var err error
		if filter.From, err = dateFlag(cmd, "from"); err != nil {
			return err
		}
		if filter.To, err = dateFlag(cmd, "to"); err != nil {
			return err
		}

		invoices, err := appInstance.Invoices.ListInvoices(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}

		if len(invoices) == 0 {
			fmt.Println("No invoices found")
			return nil
		}

		// Print table header
		fmt.Printf("%-5s %-10s %-20s %-10s %-10s %-12s %-10s %-8s\n", "ID", "Number", "Client", "Date", "Due", "Total", "Status", "Payment")
		fmt.Println("--------------------------------------------------------------------------------------------")

		for _, invoice := range invoices {
			clientName := fmt.Sprintf("Client #%d", invoice.ClientID)
			if invoice.Client != nil {
				clientName = invoice.Client.Name
			}
			fmt.Printf("%-5d %-10s %-20s %-10s %-10s %-12s %-10s %-8s\n",
				invoice.ID,
				invoice.InvoiceNumber,
				truncate(clientName, 20),
				domain.FormatDate(invoice.InvoiceDate),
				domain.FormatDate(invoice.DueDate),
				money(invoice.Total),
				invoice.Status,
				invoice.PaymentStatus,
			)
		}

		fmt.Printf("\nTotal: %d invoice(s)\n", len(invoices))
		return nil
	},
}

var invoicesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show invoice details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("invoice", args[0])
		if err != nil {
			return err
		}

		invoice, err := appInstance.Invoices.GetInvoice(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		fmt.Printf("Invoice: %s\n", invoice.InvoiceNumber)
		if invoice.Client != nil {
			fmt.Printf("Client: %s\n", invoice.Client.Name)
		}
		fmt.Printf("Date: %s (due %s)\n", domain.FormatDate(invoice.InvoiceDate), domain.FormatDate(invoice.DueDate))
		fmt.Printf("Status: %s, %s\n", invoice.Status, invoice.PaymentStatus)
		if invoice.PaymentDate != nil {
			fmt.Printf("Paid: %s\n", domain.FormatDate(*invoice.PaymentDate))
		}
		fmt.Println()

		fmt.Printf("%-40s %8s %10s %12s\n", "Description", "Hours", "Rate", "Amount")
		fmt.Println(strings.Repeat("-", 73))
		for _, item := range invoice.Items {
			fmt.Printf("%-40s %8s %10s %12s\n",
				truncate(item.Description, 40),
				item.Quantity.StringFixed(2),
				money(item.Rate),
				money(item.Amount),
			)
		}

		fmt.Println()
		fmt.Printf("Subtotal: %s\n", money(invoice.Subtotal))
		if invoice.TaxAmount.IsPositive() {
			fmt.Printf("Tax (%s%%): %s\n", invoice.TaxRate.String(), money(invoice.TaxAmount))
		}
		fmt.Printf("Total: %s\n", money(invoice.Total))
		if invoice.Notes != "" {
			fmt.Printf("\n%s\n", invoice.Notes)
		}
		return nil
	},
}

var invoicesStatusCmd = &cobra.Command{
	Use:   "status [id] [draft|sent|cancelled]",
	Short: "Change the status of an invoice",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("invoice", args[0])
		if err != nil {
			return err
		}

		invoice, err := appInstance.Invoices.UpdateStatus(cmd.Context(), id, domain.InvoiceStatus(args[1]))
		if err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		fmt.Printf("✓ Invoice %s marked as %s\n", invoice.InvoiceNumber, invoice.Status)
		return nil
	},
}

var invoicesPayCmd = &cobra.Command{
	Use:   "pay [id]",
	Short: "Record payment for an invoice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("invoice", args[0])
		if err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		date, err := dateFlag(cmd, "date")
		if err != nil {
			return err
		}

		invoice, err := appInstance.Invoices.UpdatePayment(cmd.Context(), id, domain.PaymentStatus(status), date)
		if err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		if invoice.PaymentDate != nil {
			fmt.Printf("✓ Invoice %s marked as %s on %s\n", invoice.InvoiceNumber, invoice.PaymentStatus, domain.FormatDate(*invoice.PaymentDate))
		} else {
			fmt.Printf("✓ Invoice %s marked as %s\n", invoice.InvoiceNumber, invoice.PaymentStatus)
		}
		return nil
	},
}

var invoicesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a draft invoice and release its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("invoice", args[0])
		if err != nil {
			return err
		}

		if force, _ := cmd.Flags().GetBool("yes"); !force {
			if !confirmPrompt(fmt.Sprintf("Delete invoice %d and return its entries to unbilled?", id)) {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		if err := appInstance.Invoices.DeleteInvoice(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}

		fmt.Printf("✓ Invoice %d deleted\n", id)
		return nil
	},
}

var invoicesPDFCmd = &cobra.Command{
	Use:   "pdf [id]",
	Short: "Render an invoice as PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("invoice", args[0])
		if err != nil {
			return err
		}

		invoice, err := appInstance.Invoices.GetInvoice(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		dir, _ := cmd.Flags().GetString("dir")
		if dir == "" {
			dir = appInstance.Config.Invoice.OutputDir
		}

		path, err := export.SaveInvoicePDF(dir, invoice, appInstance.Issuer())
		if err != nil {
			return fmt.Errorf("failed to render invoice: %w", err)
		}

		fmt.Printf("✓ Invoice written to %s\n", path)
		return nil
	},
}

func init() {
	invoicesCmd.AddCommand(invoicesUnbilledCmd)
	invoicesCmd.AddCommand(invoicesCreateCmd)
	invoicesCmd.AddCommand(invoicesListCmd)
	invoicesCmd.AddCommand(invoicesShowCmd)
	invoicesCmd.AddCommand(invoicesStatusCmd)
	invoicesCmd.AddCommand(invoicesPayCmd)
	invoicesCmd.AddCommand(invoicesDeleteCmd)
	invoicesCmd.AddCommand(invoicesPDFCmd)

	invoicesUnbilledCmd.Flags().Int64("client", 0, "Only this client")

	// Create flags
	invoicesCreateCmd.Flags().Int64Slice("entries", nil, "Bill only these entry IDs")
	invoicesCreateCmd.Flags().String("tax", "", "Tax rate percent (defaults to the configured rate)")
	invoicesCreateCmd.Flags().String("date", "", "Invoice date (YYYY-MM-DD, defaults to today)")
	invoicesCreateCmd.Flags().String("notes", "", "Notes printed on the invoice")

	// List flags
	invoicesListCmd.Flags().Int64("client", 0, "Filter by client ID")
	invoicesListCmd.Flags().String("status", "", "Filter by status (draft, sent, cancelled)")
	invoicesListCmd.Flags().String("payment", "", "Filter by payment status (unpaid, partial, paid)")
	invoicesListCmd.Flags().String("from", "", "First invoice date (YYYY-MM-DD)")
	invoicesListCmd.Flags().String("to", "", "Last invoice date (YYYY-MM-DD)")

	invoicesPayCmd.Flags().String("status", string(domain.PaymentStatusPaid), "Payment status (unpaid, partial, paid)")
	invoicesPayCmd.Flags().String("date", "", "Payment date (defaults to today when paid)")

	invoicesDeleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation")

	invoicesPDFCmd.Flags().String("dir", "", "Output directory (defaults to the configured invoice directory)")
}
