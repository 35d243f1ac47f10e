package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/andy/timeledger/internal/domain"
	"github.com/andy/timeledger/internal/service"
)

var timerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Manage running timers",
	Long: `Start, pause, resume, commit or discard timers.

Commands that take a timer ID use your only active timer when the ID is omitted.`,
}

var timerStartCmd = &cobra.Command{
	Use:   "start [project_id] [description]",
	Short: "Start a new timer on a project",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, err := parseID("project", args[0])
		if err != nil {
			return err
		}

		// Description is everything after the project
		description := strings.Join(args[1:], " ")
		nonBillable, _ := cmd.Flags().GetBool("non-billable")

		entry, err := appInstance.Timers.Start(cmd.Context(), appInstance.User.ID, projectID, description, !nonBillable)
		if err != nil {
			return fmt.Errorf("failed to start timer: %w", err)
		}

		fmt.Printf("✓ Timer %d started for %s\n", entry.ID, projectLabel(cmd.Context(), projectID))
		if description != "" {
			fmt.Printf("  Description: %s\n", description)
		}
		return nil
	},
}

var timerPauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a running timer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := timerID(cmd.Context(), args)
		if err != nil {
			return err
		}

		entry, err := appInstance.Timers.Pause(cmd.Context(), id, appInstance.User.ID)
		if err != nil {
			return fmt.Errorf("failed to pause timer: %w", err)
		}

		fmt.Printf("✓ Timer paused at %s\n", formatDuration(time.Duration(entry.ElapsedSeconds)*time.Second))
		return nil
	},
}

var timerResumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused timer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := timerID(cmd.Context(), args)
		if err != nil {
			return err
		}

		if _, err := appInstance.Timers.Resume(cmd.Context(), id, appInstance.User.ID); err != nil {
			return fmt.Errorf("failed to resume timer: %w", err)
		}

		fmt.Println("✓ Timer resumed")
		return nil
	},
}

var timerCommitCmd = &cobra.Command{
	Use:     "commit [id]",
	Aliases: []string{"stop"},
	Short:   "Stop a timer and save the time entry",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := timerID(cmd.Context(), args)
		if err != nil {
			return err
		}

		entry, err := appInstance.Timers.Commit(cmd.Context(), id, appInstance.User.ID)
		if err != nil {
			return fmt.Errorf("failed to stop timer: %w", err)
		}

		fmt.Printf("✓ Timer stopped\n")
		fmt.Printf("  Project: %s\n", projectLabel(cmd.Context(), entry.ProjectID))
		fmt.Printf("  Duration: %s\n", formatDuration(time.Duration(entry.ElapsedSeconds)*time.Second))
		fmt.Printf("  Hours: %s\n", entry.Hours.StringFixed(2))
		fmt.Printf("  Amount: %s\n", money(entry.Amount))
		return nil
	},
}

var timerDiscardCmd = &cobra.Command{
	Use:   "discard [id]",
	Short: "Discard a timer without saving",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := timerID(cmd.Context(), args)
		if err != nil {
			return err
		}

		if err := appInstance.Timers.Discard(cmd.Context(), id, appInstance.User.ID); err != nil {
			return fmt.Errorf("failed to discard timer: %w", err)
		}

		fmt.Println("✓ Timer discarded")
		return nil
	},
}

var timerStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show active timers",
	RunE: func(cmd *cobra.Command, args []string) error {
		timers, err := appInstance.Timers.Active(cmd.Context(), appInstance.Scope())
		if err != nil {
			return fmt.Errorf("failed to get active timers: %w", err)
		}

		if len(timers) == 0 {
			fmt.Println("No active timer")
			return nil
		}

		for _, t := range timers {
			printTimer(t)
		}
		return nil
	},
}

func printTimer(t service.ActiveTimer) {
	fmt.Printf("Timer %d: %s\n", t.Entry.ID, t.State)
	fmt.Printf("  Project: %s / %s\n", t.Entry.ClientName, t.Entry.ProjectName)
	if t.Entry.Description != "" {
		fmt.Printf("  Description: %s\n", t.Entry.Description)
	}
	if t.Entry.PerformerName != "" {
		fmt.Printf("  Performer: %s\n", t.Entry.PerformerName)
	}
	if t.Entry.TimerStart != nil {
		fmt.Printf("  Started: %s\n", t.Entry.TimerStart.Local().Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("  Elapsed: %s\n", formatDuration(t.Elapsed()))
	fmt.Printf("  Current Value: %s\n", money(t.AccruedValue))
}

func init() {
	timerCmd.AddCommand(timerStartCmd)
	timerCmd.AddCommand(timerPauseCmd)
	timerCmd.AddCommand(timerResumeCmd)
	timerCmd.AddCommand(timerCommitCmd)
	timerCmd.AddCommand(timerDiscardCmd)
	timerCmd.AddCommand(timerStatusCmd)

	timerStartCmd.Flags().Bool("non-billable", false, "Track non-billable time")
}

// timerID returns the timer named by args, or the caller's only active timer
func timerID(ctx context.Context, args []string) (int64, error) {
	if len(args) == 1 {
		return parseID("timer", args[0])
	}

	timers, err := appInstance.Timers.Active(ctx, domain.Scope{UserID: appInstance.User.ID})
	if err != nil {
		return 0, fmt.Errorf("failed to get active timers: %w", err)
	}
	switch len(timers) {
	case 0:
		return 0, fmt.Errorf("no active timer")
	case 1:
		return timers[0].Entry.ID, nil
	}
	ids := make([]string, 0, len(timers))
	for _, t := range timers {
		ids = append(ids, fmt.Sprint(t.Entry.ID))
	}
	return 0, fmt.Errorf("%d active timers (%s), pass a timer ID", len(timers), strings.Join(ids, ", "))
}

// projectLabel describes a project for display, falling back to its ID
func projectLabel(ctx context.Context, projectID int64) string {
	project, err := appInstance.Projects.Get(ctx, projectID)
	if err != nil {
		return fmt.Sprintf("Project #%d", projectID)
	}
	if project.ClientName != "" {
		return project.ClientName + " / " + project.Name
	}
	return project.Name
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	} else if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
