package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/service"
)

var analyticsCmd = &cobra.Command{
	Use:     "analytics",
	Aliases: []string{"report"},
	Short:   "Revenue, hours and utilization reports",
	Long: `Aggregate time entries over a date window.

The window defaults to January 1 of the current year through today.`,
}

var analyticsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Totals for the window",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := analyticsWindow(cmd)
		if err != nil {
			return err
		}

		s, err := appInstance.Analytics.Summary(cmd.Context(), appInstance.Scope(), from, to)
		if err != nil {
			return fmt.Errorf("failed to build summary: %w", err)
		}

		fmt.Printf("Summary %s to %s\n", domain.FormatDate(s.From), domain.FormatDate(s.To))
		fmt.Println(strings.Repeat("-", 40))
		fmt.Printf("%-20s %s\n", "Entries", fmt.Sprint(s.EntryCount))
		fmt.Printf("%-20s %s\n", "Hours", s.Hours.StringFixed(2))
		fmt.Printf("%-20s %s\n", "Billable Hours", s.BillableHours.StringFixed(2))
		fmt.Printf("%-20s %s%%\n", "Utilization", s.Utilization.StringFixed(1))
		fmt.Printf("%-20s %s\n", "Revenue", money(s.Revenue))
		fmt.Printf("%-20s %s\n", "Invoiced", money(s.InvoicedRevenue))
		fmt.Printf("%-20s %s\n", "Unbilled", money(s.UnbilledRevenue))
		if appInstance.Scope().Privileged {
			fmt.Printf("%-20s %s\n", "Outstanding", money(s.Outstanding))
		}
		return nil
	},
}

var analyticsRevenueCmd = &cobra.Command{
	Use:   "revenue",
	Short: "Revenue per period",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := analyticsWindow(cmd)
		if err != nil {
			return err
		}
		g, err := granularityFlag(cmd)
		if err != nil {
			return err
		}

		points, err := appInstance.Analytics.RevenueSeries(cmd.Context(), appInstance.Scope(), g, from, to)
		if err != nil {
			return fmt.Errorf("failed to build revenue series: %w", err)
		}

		fmt.Printf("%-12s %10s %10s %12s %12s\n", "Period", "Hours", "Billable", "Revenue", "Unbilled")
		fmt.Println(strings.Repeat("-", 60))
		for _, p := range points {
			fmt.Printf("%-12s %10s %10s %12s %12s\n",
				p.Label,
				p.Hours.StringFixed(2),
				p.BillableHours.StringFixed(2),
				money(p.Revenue),
				money(p.UnbilledRevenue),
			)
		}
		return nil
	},
}

var analyticsBreakdownCmd = &cobra.Command{
	Use:   "breakdown",
	Short: "Revenue by client, project or consultant",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := analyticsWindow(cmd)
		if err != nil {
			return err
		}
		by, _ := cmd.Flags().GetString("by")
		entity, err := service.ParseBreakdownEntity(by)
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")

		rows, err := appInstance.Analytics.Breakdown(cmd.Context(), appInstance.Scope(), entity, from, to, top)
		if err != nil {
			return fmt.Errorf("failed to build breakdown: %w", err)
		}

		if len(rows) == 0 {
			fmt.Println("No time recorded")
			return nil
		}

		fmt.Printf("%-30s %10s %12s %8s\n", "Name", "Hours", "Revenue", "Util")
		fmt.Println(strings.Repeat("-", 63))
		for _, r := range rows {
			fmt.Printf("%-30s %10s %12s %7s%%\n",
				truncate(r.Name, 30),
				r.Hours.StringFixed(2),
				money(r.Revenue),
				r.Utilization.StringFixed(1),
			)
		}
		return nil
	},
}

var analyticsStackedCmd = &cobra.Command{
	Use:   "stacked",
	Short: "Revenue per period split by top clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, to, err := analyticsWindow(cmd)
		if err != nil {
			return err
		}
		g, err := granularityFlag(cmd)
		if err != nil {
			return err
		}
		top, _ := cmd.Flags().GetInt("top")

		stacked, err := appInstance.Analytics.StackedSeries(cmd.Context(), appInstance.Scope(), g, from, to, top)
		if err != nil {
			return fmt.Errorf("failed to build stacked series: %w", err)
		}

		fmt.Printf("%-20s", "Client")
		for _, p := range stacked.Periods {
			fmt.Printf(" %12s", p)
		}
		fmt.Println()
		for _, row := range stacked.Series {
			fmt.Printf("%-20s", truncate(row.Name, 20))
			for _, v := range row.Values {
				fmt.Printf(" %12s", money(v))
			}
			fmt.Println()
		}
		return nil
	},
}

// analyticsWindow reads --from and --to, defaulting to year to date
func analyticsWindow(cmd *cobra.Command) (time.Time, time.Time, error) {
	today := domain.CivilDate(time.Now())
	from := domain.NewDate(today.Year(), time.January, 1)
	to := today

	if d, err := dateFlag(cmd, "from"); err != nil {
		return from, to, err
	} else if d != nil {
		from = *d
	}
	if d, err := dateFlag(cmd, "to"); err != nil {
		return from, to, err
	} else if d != nil {
		to = *d
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("--to must not be before --from")
	}
	return from, to, nil
}

func granularityFlag(cmd *cobra.Command) (domain.Granularity, error) {
	raw, _ := cmd.Flags().GetString("by")
	return domain.ParseGranularity(raw)
}

func init() {
	analyticsCmd.AddCommand(analyticsSummaryCmd)
	analyticsCmd.AddCommand(analyticsRevenueCmd)
	analyticsCmd.AddCommand(analyticsBreakdownCmd)
	analyticsCmd.AddCommand(analyticsStackedCmd)

	analyticsCmd.PersistentFlags().String("from", "", "Window start (YYYY-MM-DD)")
	analyticsCmd.PersistentFlags().String("to", "", "Window end (YYYY-MM-DD)")

	analyticsRevenueCmd.Flags().String("by", string(domain.GranularityMonth), "Period (day, week, month, quarter, year)")
	analyticsStackedCmd.Flags().String("by", string(domain.GranularityMonth), "Period (day, week, month, quarter, year)")
	analyticsStackedCmd.Flags().Int("top", service.DefaultTopN, "Number of clients before Other")

	analyticsBreakdownCmd.Flags().String("by", string(service.BreakdownClient), "Group by client, project or consultant")
	analyticsBreakdownCmd.Flags().Int("top", service.DefaultTopN, "Number of rows before Other")
}
