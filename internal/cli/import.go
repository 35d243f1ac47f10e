package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/importer"
	"github.com/andy/timeledger/internal/service"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import historical billing spreadsheets",
	Long: `Import time from a legacy CSV export.

Run "import analyze" first to see how companies map to existing clients,
then "import run" with any --map overrides.`,
}

var importAnalyzeCmd = &cobra.Command{
	Use:   "analyze [file.csv]",
	Short: "Preview a spreadsheet without writing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analysis, err := analyzeFile(cmd, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Rows: %d (%d invalid)\n\n", len(analysis.Records), analysis.Invalid)
		fmt.Printf("%-25s %-6s %10s %12s %10s %-25s\n", "Company", "Rows", "Hours", "Revenue", "Rate", "Proposed Client")
		fmt.Println(strings.Repeat("-", 94))
		for _, c := range analysis.Companies {
			proposed := "(new)"
			if c.ProposedClientID != nil {
				proposed = fmt.Sprintf("%s (#%d)", c.ProposedClientName, *c.ProposedClientID)
			}
			fmt.Printf("%-25s %-6d %10s %12s %10s %-25s\n",
				truncate(c.Company, 25),
				c.RowCount,
				c.TotalHours.StringFixed(2),
				money(c.TotalRevenue),
				money(c.ImpliedRate),
				truncate(proposed, 25),
			)
		}
		return nil
	},
}

var importRunCmd = &cobra.Command{
	Use:   "run [file.csv]",
	Short: "Import a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		analysis, err := analyzeFile(cmd, args[0])
		if err != nil {
			return err
		}

		overrides, _ := cmd.Flags().GetStringToString("map")
		defaultProject, _ := cmd.Flags().GetString("default-project")

		rows := importRows(analysis, overrides, defaultProject)

		if force, _ := cmd.Flags().GetBool("yes"); !force {
			if !confirmPrompt(fmt.Sprintf("Import %d rows from %s?", len(rows), args[0])) {
				fmt.Println("Cancelled.")
				return nil
			}
		}

		result, err := appInstance.Import.Import(cmd.Context(), service.ImportRequest{
			UserID: appInstance.User.ID,
			Rows:   rows,
		})
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("✓ Import %s finished\n", result.BatchID)
		fmt.Printf("  Entries: %d imported, %d skipped, %d errors\n",
			result.Entries.Imported, result.Entries.Skipped, result.Entries.Errors)
		fmt.Printf("  Invoices: %d created, %d reused\n", result.Invoices.Created, result.Invoices.Reused)
		fmt.Printf("  Clients created: %d, projects created: %d\n", result.ClientsCreated, result.ProjectsCreated)
		for _, e := range result.ErrorDetails {
			fmt.Printf("  line %d: %s\n", e.Line, e.Message)
		}
		return nil
	},
}

func analyzeFile(cmd *cobra.Command, path string) (*importer.Analysis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	analysis, err := appInstance.Import.Analyze(cmd.Context(), f)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze %s: %w", path, err)
	}
	return analysis, nil
}

// importRows maps analyzed records onto clients. Overrides are keyed by
// legacy company name and hold a client ID or a new client name.
func importRows(analysis *importer.Analysis, overrides map[string]string, defaultProject string) []service.ImportRow {
	proposed := make(map[string]*int64, len(analysis.Companies))
	for _, c := range analysis.Companies {
		proposed[strings.ToLower(c.Company)] = c.ProposedClientID
	}

	mapped := make(map[string]string, len(overrides))
	for company, target := range overrides {
		mapped[strings.ToLower(strings.TrimSpace(company))] = strings.TrimSpace(target)
	}

	rows := make([]service.ImportRow, 0, len(analysis.Records))
	for _, rec := range analysis.Records {
		if !rec.Valid() {
			continue
		}
		row := service.ImportRow{Record: rec, ProjectName: rec.Project}
		if row.ProjectName == "" {
			row.ProjectName = defaultProject
		}

		key := strings.ToLower(rec.Company)
		if target, ok := mapped[key]; ok {
			if id, err := parseID("client", target); err == nil {
				row.ClientID = &id
			} else {
				row.ClientName = target
			}
		} else if id := proposed[key]; id != nil {
			row.ClientID = id
		} else {
			row.ClientName = rec.Company
		}
		rows = append(rows, row)
	}
	return rows
}

func init() {
	importCmd.AddCommand(importAnalyzeCmd)
	importCmd.AddCommand(importRunCmd)

	importRunCmd.Flags().StringToString("map", nil, "Map a company to a client ID or name (Company=12)")
	importRunCmd.Flags().String("default-project", "General", "Project for rows without one")
	importRunCmd.Flags().BoolP("yes", "y", false, "Skip confirmation")
}
