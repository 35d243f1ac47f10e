package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/export"
	"github.com/andy/timeledger/internal/repository"
	"github.com/andy/timeledger/internal/service"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Manage time entries",
	Long:  `List, log, edit, review and export time entries.`,
}

var entriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := entryFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		entries, err := appInstance.Entries.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries found")
			return nil
		}

		// Print table header
		fmt.Printf("%-5s %-10s %-15s %-15s %-15s %-6s %-10s %-10s %-10s\n",
			"ID", "Date", "Client", "Project", "Performer", "Hours", "Amount", "Status", "Invoice")
		fmt.Println("------------------------------------------------------------------------------------------------------")

		totalHours := decimal.Zero
		totalAmount := decimal.Zero
		for _, entry := range entries {
			invoice := "-"
			if entry.InvoiceNumber != "" {
				invoice = entry.InvoiceNumber
			}
			fmt.Printf("%-5d %-10s %-15s %-15s %-15s %-6s %-10s %-10s %-10s\n",
				entry.ID,
				domain.FormatDate(entry.WorkDate),
				truncate(entry.ClientName, 15),
				truncate(entry.ProjectName, 15),
				truncate(entry.PerformerLabel(), 15),
				entry.Hours.StringFixed(2),
				money(entry.Amount),
				entry.Status,
				invoice,
			)
			totalHours = totalHours.Add(entry.Hours)
			totalAmount = totalAmount.Add(entry.Amount)
		}

		fmt.Println("------------------------------------------------------------------------------------------------------")
		fmt.Printf("Total: %d entries, %s hours, %s\n", len(entries), totalHours.StringFixed(2), money(totalAmount))
		return nil
	},
}

var entriesAddCmd = &cobra.Command{
	Use:   "add [project_id] [hours] [description]",
	Short: "Log time manually",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}
		hours, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid hours: %q", args[1])
		}

		req := service.NewEntry{
			ProjectID: projectID,
			Hours:     hours,
		}
		if len(args) > 2 {
			req.Description = args[2]
		}
		if req.WorkDate, err = workDateFlag(cmd); err != nil {
			return err
		}
		if req.Rate, err = rateFlag(cmd); err != nil {
			return err
		}
		req.Billable = billableFlag(cmd)
		if id := int64Flag(cmd, "user"); id != nil {
			req.UserID = *id
		}

		entry, err := appInstance.Entries.Create(cmd.Context(), appInstance.Scope(), req)
		if err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}

		printEntryCreated(entry)
		return nil
	},
}

var entriesLogSubCmd = &cobra.Command{
	Use:   "log-sub [subcontractor_id] [project_id] [hours] [description]",
	Short: "Log time on behalf of a subcontractor",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		subID, err := parseID("subcontractor", args[0])
		if err != nil {
			return err
		}
		projectID, err := parseID("project", args[1])
		if err != nil {
			return err
		}
		hours, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid hours: %q", args[2])
		}

		req := service.NewSubcontractorEntry{
			SubcontractorID: subID,
			ProjectID:       projectID,
			Hours:           hours,
		}
		if len(args) > 3 {
			req.Description = args[3]
		}
		if req.WorkDate, err = workDateFlag(cmd); err != nil {
			return err
		}
		if req.Rate, err = rateFlag(cmd); err != nil {
			return err
		}
		req.Billable = billableFlag(cmd)

		entry, err := appInstance.Entries.LogSubcontractor(cmd.Context(), appInstance.Scope(), req)
		if err != nil {
			return fmt.Errorf("failed to log subcontractor time: %w", err)
		}

		printEntryCreated(entry)
		return nil
	},
}

var entriesEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a draft or rejected entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("entry", args[0])
		if err != nil {
			return err
		}

		var patch domain.EntryPatch
		patch.ProjectID = int64Flag(cmd, "project")
		patch.WorkDate = stringFlag(cmd, "date")
		patch.Description = stringFlag(cmd, "description")
		if h, ok, err := decimalFlag(cmd, "hours"); err != nil {
			return err
		} else if ok {
			patch.Hours = &h
		}
		if r, ok, err := decimalFlag(cmd, "rate"); err != nil {
			return err
		} else if ok {
			patch.Rate = &r
		}
		if cmd.Flags().Changed("billable") {
			b, _ := cmd.Flags().GetBool("billable")
			patch.IsBillable = &b
		}
		patch.RecomputeRate, _ = cmd.Flags().GetBool("recompute-rate")

		if patch.Empty() {
			return fmt.Errorf("nothing to change")
		}
		reason, _ := cmd.Flags().GetString("reason")

		entry, err := appInstance.Entries.Update(cmd.Context(), appInstance.Scope(), id, patch, reason)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}

		fmt.Printf("✓ Entry updated (ID: %d)\n", entry.ID)
		fmt.Printf("  Hours: %s at %s = %s\n", entry.Hours.StringFixed(2), money(entry.Rate), money(entry.Amount))
		return nil
	},
}

var entriesDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete an unbilled entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("entry", args[0])
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")

		if err := appInstance.Entries.Delete(cmd.Context(), appInstance.Scope(), id, reason); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}

		fmt.Printf("✓ Entry %d deleted\n", id)
		return nil
	},
}

var entriesHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show the change history of an entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("entry", args[0])
		if err != nil {
			return err
		}

		history, err := appInstance.Entries.History(cmd.Context(), appInstance.Scope(), id)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(history) == 0 {
			fmt.Println("No changes recorded")
			return nil
		}

		fmt.Printf("%-20s %-15s %-15s %-15s %s\n", "Changed", "Field", "Old", "New", "Reason")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, h := range history {
			fmt.Printf("%-20s %-15s %-15s %-15s %s\n",
				h.ChangedAt.Format("2006-01-02 15:04:05"),
				h.FieldName,
				truncate(h.OldValue, 15),
				truncate(h.NewValue, 15),
				h.ChangeReason,
			)
		}
		return nil
	},
}

// transitionCmd builds a review workflow command
func transitionCmd(use, short, done string, run func(cmd *cobra.Command, id int64) (*domain.TimeEntry, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("entry", args[0])
			if err != nil {
				return err
			}
			entry, err := run(cmd, id)
			if err != nil {
				return fmt.Errorf("failed to %s entry: %w", use, err)
			}
			fmt.Printf("✓ Entry %d %s (%s)\n", entry.ID, done, entry.Status)
			return nil
		},
	}
}

var entriesSubmitCmd = transitionCmd("submit", "Submit an entry for approval", "submitted",
	func(cmd *cobra.Command, id int64) (*domain.TimeEntry, error) {
		return appInstance.Entries.Submit(cmd.Context(), appInstance.Scope(), id)
	})

var entriesApproveCmd = transitionCmd("approve", "Approve a submitted entry", "approved",
	func(cmd *cobra.Command, id int64) (*domain.TimeEntry, error) {
		return appInstance.Entries.Approve(cmd.Context(), appInstance.Scope(), id)
	})

var entriesReopenCmd = transitionCmd("reopen", "Move an entry back to draft", "reopened",
	func(cmd *cobra.Command, id int64) (*domain.TimeEntry, error) {
		return appInstance.Entries.Reopen(cmd.Context(), appInstance.Scope(), id)
	})

var entriesRejectCmd = transitionCmd("reject", "Reject a submitted entry", "rejected",
	func(cmd *cobra.Command, id int64) (*domain.TimeEntry, error) {
		reason, _ := cmd.Flags().GetString("reason")
		return appInstance.Entries.Reject(cmd.Context(), appInstance.Scope(), id, reason)
	})

var entriesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := entryFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		entries, err := appInstance.Entries.List(cmd.Context(), filter)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			defer f.Close()
			out = f
		}

		if err := export.EntriesCSV(out, entries); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
		if out != os.Stdout {
			fmt.Printf("✓ Exported %d entries to %s\n", len(entries), out.Name())
		}
		return nil
	},
}

func printEntryCreated(entry *domain.TimeEntry) {
	fmt.Printf("✓ Entry created (ID: %d)\n", entry.ID)
	fmt.Printf("  Date: %s\n", domain.FormatDate(entry.WorkDate))
	fmt.Printf("  Hours: %s\n", entry.Hours.StringFixed(2))
	fmt.Printf("  Rate: %s\n", money(entry.Rate))
	fmt.Printf("  Amount: %s\n", money(entry.Amount))
}

func entryFilterFromFlags(cmd *cobra.Command) (repository.EntryFilter, error) {
	filter := repository.EntryFilter{
		Scope:           appInstance.Scope(),
		UserID:          int64Flag(cmd, "user"),
		SubcontractorID: int64Flag(cmd, "subcontractor"),
		ClientID:        int64Flag(cmd, "client"),
		ProjectID:       int64Flag(cmd, "project"),
		InvoiceID:       int64Flag(cmd, "invoice"),
	}
	var err error
	if filter.From, err = dateFlag(cmd, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = dateFlag(cmd, "to"); err != nil {
		return filter, err
	}
	if s := stringFlag(cmd, "status"); s != nil {
		status := domain.EntryStatus(*s)
		filter.Status = &status
	}
	filter.UnbilledOnly, _ = cmd.Flags().GetBool("unbilled")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	return filter, nil
}

func addEntryFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("user", 0, "Filter by user ID")
	cmd.Flags().Int64("subcontractor", 0, "Filter by subcontractor ID")
	cmd.Flags().Int64("client", 0, "Filter by client ID")
	cmd.Flags().Int64("project", 0, "Filter by project ID")
	cmd.Flags().Int64("invoice", 0, "Filter by invoice ID")
	cmd.Flags().String("from", "", "First work date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last work date (YYYY-MM-DD)")
	cmd.Flags().String("status", "", "Filter by status (draft, submitted, approved, rejected)")
	cmd.Flags().Bool("unbilled", false, "Only entries not yet invoiced")
	cmd.Flags().Int("limit", 0, "Maximum number of entries")
}

func addManualEntryFlags(cmd *cobra.Command) {
	cmd.Flags().String("date", "today", "Work date (YYYY-MM-DD, today or yesterday)")
	cmd.Flags().String("rate", "", "Fixed hourly rate instead of the project rate")
	cmd.Flags().Bool("non-billable", false, "Mark the entry non-billable")
}

func workDateFlag(cmd *cobra.Command) (time.Time, error) {
	raw, _ := cmd.Flags().GetString("date")
	d, err := parseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date: %w", err)
	}
	return d, nil
}

func rateFlag(cmd *cobra.Command) (domain.Rate, error) {
	r, ok, err := decimalFlag(cmd, "rate")
	if err != nil || !ok {
		return domain.PendingRate(), err
	}
	return domain.FixedRate(r), nil
}

func billableFlag(cmd *cobra.Command) *bool {
	if !cmd.Flags().Changed("non-billable") {
		return nil
	}
	nonBillable, _ := cmd.Flags().GetBool("non-billable")
	billable := !nonBillable
	return &billable
}

func init() {
	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesAddCmd)
	entriesCmd.AddCommand(entriesLogSubCmd)
	entriesCmd.AddCommand(entriesEditCmd)
	entriesCmd.AddCommand(entriesDeleteCmd)
	entriesCmd.AddCommand(entriesHistoryCmd)
	entriesCmd.AddCommand(entriesSubmitCmd)
	entriesCmd.AddCommand(entriesApproveCmd)
	entriesCmd.AddCommand(entriesRejectCmd)
	entriesCmd.AddCommand(entriesReopenCmd)
	entriesCmd.AddCommand(entriesExportCmd)

	addEntryFilterFlags(entriesListCmd)
	addEntryFilterFlags(entriesExportCmd)
	entriesExportCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	addManualEntryFlags(entriesAddCmd)
	entriesAddCmd.Flags().Int64("user", 0, "Log for another user (admin only)")
	addManualEntryFlags(entriesLogSubCmd)

	// Edit flags
	entriesEditCmd.Flags().Int64("project", 0, "Move to another project")
	entriesEditCmd.Flags().String("date", "", "New work date (YYYY-MM-DD)")
	entriesEditCmd.Flags().String("hours", "", "New hours")
	entriesEditCmd.Flags().String("description", "", "New description")
	entriesEditCmd.Flags().String("rate", "", "Fixed hourly rate")
	entriesEditCmd.Flags().Bool("billable", true, "Whether the entry is billable")
	entriesEditCmd.Flags().Bool("recompute-rate", false, "Resolve the rate again from the project")
	entriesEditCmd.Flags().String("reason", "", "Reason for the change")

	// Delete flags
	entriesDeleteCmd.Flags().String("reason", "", "Reason for deletion")

	entriesRejectCmd.Flags().String("reason", "", "Reason for rejection (required)")
	entriesRejectCmd.MarkFlagRequired("reason")
}

// parseDate parses a date string in various formats
func parseDate(s string) (time.Time, error) {
	today := domain.CivilDate(time.Now())
	switch s {
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	default:
		t, err := domain.ParseDate(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("expected format: YYYY-MM-DD, 'today', or 'yesterday'")
		}
		return t, nil
	}
}
